package domain

import (
	"context"

	"github.com/google/uuid"
)

// ReservationRepository persists reservations and their guest allocations.
type ReservationRepository interface {
	Create(ctx context.Context, r *Reservation) error
	// Update fails with ErrConcurrentModification on a stale version.
	Update(ctx context.Context, r *Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	// LockResources serialises writers on the keys until the enclosing
	// transaction ends. It is a no-op on stores with a single writer.
	LockResources(ctx context.Context, keys []ResourceKey) error
}

// ConflictReader finds non-cancelled reservations that share a resource
// with keys and overlap window.
type ConflictReader interface {
	FindOverlapping(ctx context.Context, keys []ResourceKey, window TimeWindow, excludeID *uuid.UUID) ([]ConflictCandidate, error)
}

// ParticipantSlots keeps attendance slots in step with a reservation's
// participants. It runs inside the reservation's transaction.
type ParticipantSlots interface {
	SyncSlots(ctx context.Context, r *Reservation) error
}
