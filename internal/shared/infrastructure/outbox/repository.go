package outbox

import (
	"context"
	"time"
)

// Repository persists outbox messages.
type Repository interface {
	// SaveBatch stores messages in the caller's transaction when one is present.
	SaveBatch(ctx context.Context, msgs []*Message) error
	// GetUnpublished returns due messages, oldest first.
	GetUnpublished(ctx context.Context, limit int) ([]*Message, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error
	MarkDead(ctx context.Context, id int64, reason string) error
	// DeleteOld removes published messages older than the retention period.
	DeleteOld(ctx context.Context, olderThanDays int) (int64, error)
}
