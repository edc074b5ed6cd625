package commands

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelReservationHandler_Handle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	r := seed(t, f, "Session", hours(t, 6, 10, 11), nil)
	handler := NewCancelReservationHandler(f.deps)

	cancelled, err := handler.Handle(ctx, CancelReservationCommand{ReservationID: r.ID()})
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelledAt())
	assert.Equal(t, fixedNow, *cancelled.CancelledAt())

	again, err := handler.Handle(ctx, CancelReservationCommand{ReservationID: r.ID()})
	require.NoError(t, err)
	assert.Equal(t, cancelled.CancelledAt(), again.CancelledAt())

	assert.Equal(t, []string{domain.RoutingKeyReservationCancelled}, f.events.routingKeys())
	assert.Equal(t, []Change{ChangeCancelled}, f.notifier.changes)

	// The freed window can be booked again.
	_, err = NewCreateReservationHandler(f.deps).Handle(ctx, CreateReservationCommand{
		ServiceTypeID: 3,
		ResourceKeys:  []domain.ResourceKey{domain.RoomKey(1)},
		Window:        hours(t, 6, 10, 11),
	})
	assert.NoError(t, err)
}
