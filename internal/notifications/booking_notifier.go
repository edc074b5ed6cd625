package notifications

import (
	"context"

	"github.com/felixgeelhaar/studiobook/internal/booking/application/commands"
	"github.com/felixgeelhaar/studiobook/internal/booking/application/queries"
	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
)

// BookingNotifier forwards committed reservation changes.
type BookingNotifier struct {
	dispatcher *Dispatcher
}

var _ commands.Notifier = (*BookingNotifier)(nil)

// NewBookingNotifier creates a notifier backed by d.
func NewBookingNotifier(d *Dispatcher) *BookingNotifier {
	return &BookingNotifier{dispatcher: d}
}

// ReservationChanged publishes notifications.<change> with the reservation.
func (n *BookingNotifier) ReservationChanged(ctx context.Context, change commands.Change, r *domain.Reservation) {
	n.dispatcher.Dispatch(ctx, Notification{
		Type:    string(change),
		Payload: queries.NewReservationDTO(r),
	})
}
