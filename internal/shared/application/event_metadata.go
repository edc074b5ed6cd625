package application

import (
	"context"

	"github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
	"github.com/google/uuid"
)

type metadataSetter interface {
	SetMetadata(metadata domain.EventMetadata)
}

// EventRecorder persists domain events in the caller's unit of work.
type EventRecorder interface {
	Record(ctx context.Context, events []domain.DomainEvent) error
}

// NewEventMetadata builds event metadata from the request context. The
// correlation ID is reused when it parses as a UUID.
func NewEventMetadata(ctx context.Context) domain.EventMetadata {
	correlationID, err := uuid.Parse(observability.CorrelationIDFromContext(ctx))
	if err != nil {
		correlationID = uuid.New()
	}
	return domain.EventMetadata{
		CorrelationID: correlationID,
		CausationID:   uuid.New(),
		Actor:         observability.ActorFromContext(ctx),
	}
}

// ApplyEventMetadata sets metadata on all events that support it.
func ApplyEventMetadata(events []domain.DomainEvent, metadata domain.EventMetadata) {
	for _, event := range events {
		if setter, ok := event.(metadataSetter); ok {
			setter.SetMetadata(metadata)
		}
	}
}

// RecordEvents stamps metadata on the aggregate's pending events and hands
// them to the recorder. A nil recorder drops them.
func RecordEvents(ctx context.Context, recorder EventRecorder, aggregate domain.AggregateRoot) error {
	events := aggregate.PullDomainEvents()
	if recorder == nil || len(events) == 0 {
		return nil
	}
	ApplyEventMetadata(events, NewEventMetadata(ctx))
	return recorder.Record(ctx, events)
}
