package domain

import (
	"context"

	"github.com/google/uuid"
)

// RecordRepository persists attendance records.
type RecordRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Record, error)
	FindBySlot(ctx context.Context, reservationID uuid.UUID, slotKey string) (*Record, error)
	ListForReservation(ctx context.Context, reservationID uuid.UUID) ([]*Record, error)
	// SaveStatus writes the status fields. The credit flag is never
	// written here.
	SaveStatus(ctx context.Context, r *Record) error
	// ClaimDeduction sets the credit flag only if it is still false, the
	// record is attended and its slot is not removed. It reports whether
	// this call set it.
	ClaimDeduction(ctx context.Context, recordID, passID uuid.UUID) (bool, error)
}

// PassRepository persists passes.
type PassRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Pass, error)
	FindForClient(ctx context.Context, clientID int64) ([]Pass, error)
	Save(ctx context.Context, p *Pass) error
	// Decrement subtracts credits only if the balance covers them and
	// reports whether it did.
	Decrement(ctx context.Context, passID uuid.UUID, credits int) (bool, error)
}
