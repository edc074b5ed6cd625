package outbox

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/studiobook/internal/shared/domain"
)

// Recorder writes domain events into the outbox inside the caller's
// transaction, which makes them the change log of every mutation.
type Recorder struct {
	repo Repository
}

// NewRecorder creates a recorder backed by repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Record implements application.EventRecorder.
func (r *Recorder) Record(ctx context.Context, events []domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]*Message, 0, len(events))
	for _, event := range events {
		msg, err := NewMessage(event)
		if err != nil {
			return fmt.Errorf("encode %s: %w", event.RoutingKey(), err)
		}
		msgs = append(msgs, msg)
	}
	return r.repo.SaveBatch(ctx, msgs)
}
