package commands

import (
	"context"

	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	sharedApplication "github.com/felixgeelhaar/studiobook/internal/shared/application"
	"github.com/google/uuid"
)

// CancelReservationCommand soft-deletes a reservation.
type CancelReservationCommand struct {
	ReservationID uuid.UUID
}

// CancelReservationHandler handles CancelReservationCommand.
type CancelReservationHandler struct {
	deps Deps
}

// NewCancelReservationHandler creates a new CancelReservationHandler.
func NewCancelReservationHandler(deps Deps) *CancelReservationHandler {
	return &CancelReservationHandler{deps: deps.withDefaults()}
}

// Handle cancels the reservation. Attendance records are kept. Cancelling
// an already cancelled reservation returns it unchanged.
func (h *CancelReservationHandler) Handle(ctx context.Context, cmd CancelReservationCommand) (*domain.Reservation, error) {
	var changed bool
	r, err := sharedApplication.InUnitOfWork(ctx, h.deps.UoW, func(txCtx context.Context) (*domain.Reservation, error) {
		r, err := h.deps.Reservations.FindByID(txCtx, cmd.ReservationID)
		if err != nil {
			return nil, err
		}
		if r.IsCancelled() {
			return r, nil
		}
		r.Cancel(h.deps.Now())
		if err := h.deps.Reservations.Update(txCtx, r); err != nil {
			return nil, err
		}
		changed = true
		return r, sharedApplication.RecordEvents(txCtx, h.deps.Events, r)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		h.deps.Logger.Info("reservation cancelled", "reservation_id", r.ID())
		h.deps.Notifier.ReservationChanged(ctx, ChangeCancelled, r)
	}
	return r, nil
}
