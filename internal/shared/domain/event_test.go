package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	domain.BaseEvent
	Change domain.Change `json:"change"`
}

func TestNewBaseEvent(t *testing.T) {
	aggregateID := uuid.New()
	before := time.Now().UTC()

	event := domain.NewBaseEvent(aggregateID, "Reservation", "booking.reservation.created")

	after := time.Now().UTC()

	assert.NotEqual(t, uuid.Nil, event.EventID())
	assert.Equal(t, aggregateID, event.AggregateID())
	assert.Equal(t, "Reservation", event.AggregateType())
	assert.Equal(t, "booking.reservation.created", event.RoutingKey())
	assert.False(t, event.OccurredAt().Before(before))
	assert.False(t, event.OccurredAt().After(after))
}

func TestBaseEvent_SetMetadata(t *testing.T) {
	correlationID := uuid.New()
	causationID := uuid.New()

	event := domain.NewBaseEvent(uuid.New(), "Reservation", "booking.reservation.created")
	event.SetMetadata(domain.EventMetadata{
		CorrelationID: correlationID,
		CausationID:   causationID,
		Actor:         "staff-7",
	})

	metadata := event.Metadata()
	assert.Equal(t, correlationID, metadata.CorrelationID)
	assert.Equal(t, causationID, metadata.CausationID)
	assert.Equal(t, "staff-7", metadata.Actor)
}

func TestChange_MarshalsBeforeAndAfter(t *testing.T) {
	event := testEvent{
		BaseEvent: domain.NewBaseEvent(uuid.New(), "Reservation", "booking.reservation.rescheduled"),
		Change: domain.Change{
			Before: domain.Snapshot{"start": "10:00"},
			After:  domain.Snapshot{"start": "11:00"},
		},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]map[string]map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "10:00", decoded["change"]["before"]["start"])
	assert.Equal(t, "11:00", decoded["change"]["after"]["start"])
}
