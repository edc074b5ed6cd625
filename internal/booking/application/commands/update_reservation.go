package commands

import (
	"context"

	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	sharedApplication "github.com/felixgeelhaar/studiobook/internal/shared/application"
	"github.com/google/uuid"
)

// UpdateReservationCommand patches a reservation. Nil fields keep their
// current value. A non-nil GuestSpecs replaces the whole guest list.
type UpdateReservationCommand struct {
	ReservationID uuid.UUID
	Window        *domain.TimeWindow
	ResourceKeys  []domain.ResourceKey
	GuestSpecs    *[]int64
	ForceOverride bool
}

// UpdateReservationResult reports what the update did.
type UpdateReservationResult struct {
	Reservation *domain.Reservation
	Rescheduled bool
	GuestDiff   domain.GuestDiff
	Overridden  []domain.ConflictInfo
}

// UpdateReservationHandler handles UpdateReservationCommand.
type UpdateReservationHandler struct {
	deps Deps
}

// NewUpdateReservationHandler creates a new UpdateReservationHandler.
func NewUpdateReservationHandler(deps Deps) *UpdateReservationHandler {
	return &UpdateReservationHandler{deps: deps.withDefaults()}
}

// Handle reschedules and syncs guests in one transaction. Conflicts are
// checked against every other reservation only when the window or the
// resource set changes.
func (h *UpdateReservationHandler) Handle(ctx context.Context, cmd UpdateReservationCommand) (*UpdateReservationResult, error) {
	result, err := sharedApplication.InUnitOfWork(ctx, h.deps.UoW, func(txCtx context.Context) (*UpdateReservationResult, error) {
		r, err := h.deps.Reservations.FindByID(txCtx, cmd.ReservationID)
		if err != nil {
			return nil, err
		}
		if r.IsCancelled() {
			return nil, domain.ErrReservationCancelled
		}

		out := &UpdateReservationResult{Reservation: r}
		if cmd.Window != nil || cmd.ResourceKeys != nil {
			window := r.Window()
			if cmd.Window != nil {
				window = *cmd.Window
			}
			keys := r.Resources()
			if cmd.ResourceKeys != nil {
				if keys, err = domain.NormalizeResourceKeys(cmd.ResourceKeys); err != nil {
					return nil, err
				}
			}

			if err := h.deps.Reservations.LockResources(txCtx, keys); err != nil {
				return nil, err
			}
			id := r.ID()
			conflicts, err := h.deps.Detector.DetectConflicts(txCtx, keys, window, &id)
			if err != nil {
				return nil, err
			}
			if len(conflicts) > 0 && !cmd.ForceOverride {
				return nil, &domain.ConflictError{Conflicts: conflicts}
			}
			out.Overridden = conflicts

			if out.Rescheduled, err = r.Reschedule(window, keys); err != nil {
				return nil, err
			}
		}

		if cmd.GuestSpecs != nil {
			next, err := h.deps.Guests.NormalizeRaw(txCtx, *cmd.GuestSpecs, r.ServiceTypeID(), h.deps.Now())
			if err != nil {
				return nil, unknownServiceType(err)
			}
			if out.GuestDiff, err = r.SyncGuests(next); err != nil {
				return nil, err
			}
		}

		if !out.Rescheduled && out.GuestDiff.IsEmpty() {
			return out, nil
		}
		if err := h.deps.persist(txCtx, r, false); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	if result.Rescheduled || !result.GuestDiff.IsEmpty() {
		h.deps.Logger.Info("reservation updated",
			"reservation_id", result.Reservation.ID(),
			"rescheduled", result.Rescheduled,
			"guests_added", len(result.GuestDiff.ToAdd),
			"guests_removed", len(result.GuestDiff.ToRemove),
		)
		h.deps.Notifier.ReservationChanged(ctx, ChangeUpdated, result.Reservation)
	}
	return result, nil
}
