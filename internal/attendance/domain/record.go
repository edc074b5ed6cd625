package domain

import (
	"errors"
	"fmt"
	"time"

	bookingDomain "github.com/felixgeelhaar/studiobook/internal/booking/domain"
	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	// ErrRegistrationNotFound is returned when no attendance record matches.
	ErrRegistrationNotFound = fmt.Errorf("registration %w", sharedDomain.ErrNotFound)
	ErrInvalidStatus        = errors.New("invalid attendance status")
)

// Status is the attendance state of one participant slot.
type Status string

const (
	StatusUnset    Status = "unset"
	StatusAttended Status = "attended"
	StatusNoShow   Status = "no_show"
)

// ParseStatus accepts the two states a caller may set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusAttended, StatusNoShow:
		return Status(s), nil
	default:
		return "", sharedDomain.NewValidationError("attendanceStatus", fmt.Sprintf("must be %q or %q", StatusAttended, StatusNoShow))
	}
}

// Record tracks attendance for one participant slot. The credit flag is
// independent of the status so corrections never charge twice.
type Record struct {
	sharedDomain.BaseAggregateRoot
	slot           bookingDomain.ParticipantKey
	clientID       *int64
	status         Status
	checkedInAt    *time.Time
	creditDeducted bool
	passID         *uuid.UUID
	removedAt      *time.Time
}

// NewRecord creates an unset record for a slot.
func NewRecord(slot bookingDomain.ParticipantKey, clientID *int64) *Record {
	return &Record{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		slot:              slot,
		clientID:          clientID,
		status:            StatusUnset,
	}
}

// RecordState is the persisted form of a Record.
type RecordState struct {
	ID             uuid.UUID
	Slot           bookingDomain.ParticipantKey
	ClientID       *int64
	Status         Status
	CheckedInAt    *time.Time
	CreditDeducted bool
	PassID         *uuid.UUID
	RemovedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RehydrateRecord rebuilds a record without emitting events.
func RehydrateRecord(s RecordState) *Record {
	return &Record{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(s.ID, s.CreatedAt, s.UpdatedAt), 0),
		slot:           s.Slot,
		clientID:       s.ClientID,
		status:         s.Status,
		checkedInAt:    s.CheckedInAt,
		creditDeducted: s.CreditDeducted,
		passID:         s.PassID,
		removedAt:      s.RemovedAt,
	}
}

func (r *Record) Slot() bookingDomain.ParticipantKey { return r.slot }
func (r *Record) ReservationID() uuid.UUID           { return r.slot.ReservationID }
func (r *Record) ClientID() *int64                   { return r.clientID }
func (r *Record) Status() Status                     { return r.status }
func (r *Record) CheckedInAt() *time.Time            { return r.checkedInAt }
func (r *Record) CreditDeducted() bool               { return r.creditDeducted }
func (r *Record) PassID() *uuid.UUID                 { return r.passID }
func (r *Record) RemovedAt() *time.Time              { return r.removedAt }
func (r *Record) IsRemoved() bool                    { return r.removedAt != nil }

// SetStatus records a status. Setting the current status again is a no-op
// and returns false.
func (r *Record) SetStatus(status Status, at time.Time) (bool, error) {
	if status != StatusAttended && status != StatusNoShow {
		return false, ErrInvalidStatus
	}
	if r.IsRemoved() {
		return false, fmt.Errorf("%w: slot %s was removed", ErrRegistrationNotFound, r.slot.SlotKey())
	}
	if r.status == status {
		return false, nil
	}

	before := r.snapshot()
	r.status = status
	at = at.UTC()
	r.checkedInAt = &at
	r.Touch()
	r.AddDomainEvent(NewParticipantCheckedIn(r, before))
	return true, nil
}

// NeedsDeduction reports whether the persisted state calls for a charge:
// attended, not yet charged, and tied to a real client. Technical guests
// are never charged.
func (r *Record) NeedsDeduction() bool {
	return r.status == StatusAttended && !r.creditDeducted && r.clientID != nil
}

// MarkCreditDeducted sets the credit flag once.
func (r *Record) MarkCreditDeducted(passID uuid.UUID, credits int) error {
	if r.creditDeducted {
		return ErrAlreadyDeducted
	}
	r.creditDeducted = true
	r.passID = &passID
	r.Touch()
	r.AddDomainEvent(NewCreditDeducted(r, passID, credits))
	return nil
}

func (r *Record) snapshot() sharedDomain.Snapshot {
	s := sharedDomain.Snapshot{
		"slot":           r.slot.SlotKey(),
		"status":         string(r.status),
		"creditDeducted": r.creditDeducted,
	}
	if r.checkedInAt != nil {
		s["checkedInAt"] = *r.checkedInAt
	}
	return s
}
