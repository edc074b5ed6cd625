package commands

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/booking/application/services"
	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
	"github.com/google/uuid"
)

// CreateRecurringCommand books a weekly group class series.
type CreateRecurringCommand struct {
	Pattern       domain.RecurrencePattern
	Title         string
	ServiceTypeID int64
	MainClientID  *int64
	ResourceKeys  []domain.ResourceKey
	GuestSpecs    []int64
}

// CreateRecurringResult is the outcome of a series booking.
type CreateRecurringResult struct {
	SeriesID uuid.UUID
	Created  []*domain.Reservation
	Skipped  []domain.SkippedDate
}

// CreateRecurringHandler handles CreateRecurringCommand.
type CreateRecurringHandler struct {
	deps     Deps
	expander *services.RecurrenceExpander
}

// NewCreateRecurringHandler creates a new CreateRecurringHandler.
func NewCreateRecurringHandler(deps Deps, expander *services.RecurrenceExpander) *CreateRecurringHandler {
	return &CreateRecurringHandler{deps: deps.withDefaults(), expander: expander}
}

// Handle prices the participants once, then creates one occurrence per free
// date, each in its own transaction. When an unexpected failure stops the
// batch, the occurrences already committed are returned with the error.
// Zero created occurrences yield *domain.AllDatesConflictedError.
func (h *CreateRecurringHandler) Handle(ctx context.Context, cmd CreateRecurringCommand) (*CreateRecurringResult, error) {
	if cmd.ServiceTypeID <= 0 {
		return nil, sharedDomain.NewValidationError("serviceTypeId", "is required")
	}
	if err := validateMainClient(cmd.MainClientID); err != nil {
		return nil, err
	}
	keys, err := domain.NormalizeResourceKeys(cmd.ResourceKeys)
	if err != nil {
		return nil, err
	}

	now := h.deps.Now()
	pricing, err := h.deps.mainQuote(ctx, cmd.MainClientID, cmd.ServiceTypeID, now)
	if err != nil {
		return nil, err
	}
	guests, err := h.deps.Guests.NormalizeRaw(ctx, cmd.GuestSpecs, cmd.ServiceTypeID, now)
	if err != nil {
		return nil, unknownServiceType(err)
	}

	seriesID := uuid.New()
	factory := func(txCtx context.Context, _ time.Time, window domain.TimeWindow) (*domain.Reservation, error) {
		r, err := domain.NewReservation(domain.NewReservationParams{
			Kind:          domain.KindGroupClass,
			Title:         cmd.Title,
			ServiceTypeID: cmd.ServiceTypeID,
			MainClientID:  cmd.MainClientID,
			Pricing:       pricing,
			Resources:     keys,
			Window:        window,
			Guests:        guests,
			SeriesID:      &seriesID,
		})
		if err != nil {
			return nil, err
		}
		if err := h.deps.persist(txCtx, r, true); err != nil {
			return nil, err
		}
		return r, nil
	}

	expansion, err := h.expander.ExpandAndCreate(ctx, cmd.Pattern, keys, factory)
	var result *CreateRecurringResult
	if expansion != nil {
		result = &CreateRecurringResult{SeriesID: seriesID, Created: expansion.Created, Skipped: expansion.Skipped}
		for _, r := range expansion.Created {
			h.deps.Metrics.Counter(observability.MetricReservationsCreated, 1, observability.T("kind", string(r.Kind())))
			h.deps.Notifier.ReservationChanged(ctx, ChangeCreated, r)
		}
	}
	if err != nil {
		var allConflicted *domain.AllDatesConflictedError
		if !errors.As(err, &allConflicted) {
			h.deps.Logger.Error("recurring booking incomplete", "series_id", seriesID, "error", err)
		}
		return result, err
	}

	h.deps.Logger.Info("recurring series booked",
		"series_id", seriesID,
		"created", len(result.Created),
		"skipped", len(result.Skipped),
	)
	return result, nil
}
