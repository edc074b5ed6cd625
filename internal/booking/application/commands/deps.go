// Package commands holds the reservation write paths. Every handler runs
// its mutation in one unit of work, records domain events to the outbox in
// that same transaction, and notifies only after commit.
package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/booking/application/services"
	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	pricingDomain "github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	sharedApplication "github.com/felixgeelhaar/studiobook/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
)

// Change names a committed reservation mutation.
type Change string

const (
	ChangeCreated   Change = "reservation_created"
	ChangeUpdated   Change = "reservation_updated"
	ChangeCancelled Change = "reservation_cancelled"
)

// Notifier is told about committed changes. Implementations must not block
// the caller or report failures back.
type Notifier interface {
	ReservationChanged(ctx context.Context, change Change, r *domain.Reservation)
}

type noopNotifier struct{}

func (noopNotifier) ReservationChanged(context.Context, Change, *domain.Reservation) {}

// Deps are the collaborators shared by the reservation handlers.
type Deps struct {
	Reservations domain.ReservationRepository
	Slots        domain.ParticipantSlots
	Detector     *services.ConflictDetector
	Guests       *services.GuestAggregator
	Pricing      services.PriceResolver
	Events       sharedApplication.EventRecorder
	UoW          sharedApplication.UnitOfWork
	Notifier     Notifier
	Metrics      observability.Metrics
	Logger       *slog.Logger
	Now          func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Notifier == nil {
		d.Notifier = noopNotifier{}
	}
	if d.Metrics == nil {
		d.Metrics = observability.NoopMetrics{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// persist stores a new or changed reservation, brings its attendance slots
// in line and records its events. It must run inside a unit of work.
func (d Deps) persist(ctx context.Context, r *domain.Reservation, isNew bool) error {
	var err error
	if isNew {
		err = d.Reservations.Create(ctx, r)
	} else {
		err = d.Reservations.Update(ctx, r)
	}
	if err != nil {
		return err
	}
	if d.Slots != nil {
		if err := d.Slots.SyncSlots(ctx, r); err != nil {
			return err
		}
	}
	return sharedApplication.RecordEvents(ctx, d.Events, r)
}

// mainQuote prices the main participant. Reservations without a main client
// are priced at the service default.
func (d Deps) mainQuote(ctx context.Context, mainClientID *int64, serviceTypeID int64, at time.Time) (pricingDomain.PriceQuote, error) {
	var (
		quote pricingDomain.PriceQuote
		err   error
	)
	if mainClientID != nil {
		quote, err = d.Pricing.ResolveForClient(ctx, *mainClientID, serviceTypeID, at)
	} else {
		quote, err = d.Pricing.ResolveForTechnicalGuest(ctx, serviceTypeID)
	}
	return quote, unknownServiceType(err)
}

// unknownServiceType reports a missing service type as bad input.
func unknownServiceType(err error) error {
	if errors.Is(err, pricingDomain.ErrServiceTypeNotFound) {
		return sharedDomain.NewValidationError("serviceTypeId", "unknown or inactive service type")
	}
	return err
}

func validateMainClient(id *int64) error {
	if id != nil && *id <= 0 {
		return sharedDomain.NewValidationError("mainClientId", "must be a positive client id")
	}
	return nil
}
