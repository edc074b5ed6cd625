package commands

import (
	"context"

	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	sharedApplication "github.com/felixgeelhaar/studiobook/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
)

// CreateReservationCommand books one reservation.
type CreateReservationCommand struct {
	Kind          domain.ReservationKind
	Title         string
	ServiceTypeID int64
	MainClientID  *int64
	ResourceKeys  []domain.ResourceKey
	Window        domain.TimeWindow
	GuestSpecs    []int64
	ForceOverride bool
}

// CreateReservationResult carries the new reservation and, when the caller
// forced it through, the conflicts it was booked over.
type CreateReservationResult struct {
	Reservation *domain.Reservation
	Overridden  []domain.ConflictInfo
}

// CreateReservationHandler handles CreateReservationCommand.
type CreateReservationHandler struct {
	deps Deps
}

// NewCreateReservationHandler creates a new CreateReservationHandler.
func NewCreateReservationHandler(deps Deps) *CreateReservationHandler {
	return &CreateReservationHandler{deps: deps.withDefaults()}
}

// Handle prices the participants, re-checks conflicts under the resource
// locks and writes the reservation with its attendance slots.
func (h *CreateReservationHandler) Handle(ctx context.Context, cmd CreateReservationCommand) (*CreateReservationResult, error) {
	timer := observability.StartTimer("create_reservation").
		WithLogger(h.deps.Logger).
		WithMetrics(h.deps.Metrics, observability.MetricOperationDuration, observability.T("operation", "create_reservation"))
	defer timer.Stop()

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

	result, err := sharedApplication.InUnitOfWork(ctx, h.deps.UoW, func(txCtx context.Context) (*CreateReservationResult, error) {
		if err := h.deps.Reservations.LockResources(txCtx, keys); err != nil {
			return nil, err
		}
		conflicts, err := h.deps.Detector.DetectConflicts(txCtx, keys, cmd.Window, nil)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 && !cmd.ForceOverride {
			return nil, &domain.ConflictError{Conflicts: conflicts}
		}

		r, err := domain.NewReservation(domain.NewReservationParams{
			Kind:          cmd.Kind,
			Title:         cmd.Title,
			ServiceTypeID: cmd.ServiceTypeID,
			MainClientID:  cmd.MainClientID,
			Pricing:       pricing,
			Resources:     keys,
			Window:        cmd.Window,
			Guests:        guests,
		})
		if err != nil {
			return nil, err
		}
		if err := h.deps.persist(txCtx, r, true); err != nil {
			return nil, err
		}
		return &CreateReservationResult{Reservation: r, Overridden: conflicts}, nil
	})
	if err != nil {
		return nil, err
	}

	r := result.Reservation
	if len(result.Overridden) > 0 {
		h.deps.Logger.Warn("reservation booked over conflicts",
			"reservation_id", r.ID(),
			"conflicts", len(result.Overridden),
		)
	}
	h.deps.Metrics.Counter(observability.MetricReservationsCreated, 1, observability.T("kind", string(r.Kind())))
	h.deps.Notifier.ReservationChanged(ctx, ChangeCreated, r)
	return result, nil
}
