package domain

import (
	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	AggregateType = "AttendanceRecord"

	RoutingKeyParticipantCheckedIn = "attendance.participant.checked_in"
	RoutingKeyCreditDeducted       = "attendance.credit.deducted"
)

// ParticipantCheckedIn is emitted on every status change.
type ParticipantCheckedIn struct {
	sharedDomain.BaseEvent
	RecordID      uuid.UUID           `json:"record_id"`
	ReservationID uuid.UUID           `json:"reservation_id"`
	SlotKey       string              `json:"slot_key"`
	ClientID      *int64              `json:"client_id,omitempty"`
	Status        Status              `json:"status"`
	Change        sharedDomain.Change `json:"change"`
}

// NewParticipantCheckedIn creates a ParticipantCheckedIn event.
func NewParticipantCheckedIn(r *Record, before sharedDomain.Snapshot) *ParticipantCheckedIn {
	return &ParticipantCheckedIn{
		BaseEvent:     sharedDomain.NewBaseEvent(r.ID(), AggregateType, RoutingKeyParticipantCheckedIn),
		RecordID:      r.ID(),
		ReservationID: r.ReservationID(),
		SlotKey:       r.slot.SlotKey(),
		ClientID:      r.clientID,
		Status:        r.status,
		Change:        sharedDomain.Change{Before: before, After: r.snapshot()},
	}
}

// CreditDeducted is emitted once per record when a pass is charged.
type CreditDeducted struct {
	sharedDomain.BaseEvent
	RecordID      uuid.UUID `json:"record_id"`
	ReservationID uuid.UUID `json:"reservation_id"`
	ClientID      int64     `json:"client_id"`
	PassID        uuid.UUID `json:"pass_id"`
	Credits       int       `json:"credits"`
}

// NewCreditDeducted creates a CreditDeducted event.
func NewCreditDeducted(r *Record, passID uuid.UUID, credits int) *CreditDeducted {
	var clientID int64
	if r.clientID != nil {
		clientID = *r.clientID
	}
	return &CreditDeducted{
		BaseEvent:     sharedDomain.NewBaseEvent(r.ID(), AggregateType, RoutingKeyCreditDeducted),
		RecordID:      r.ID(),
		ReservationID: r.ReservationID(),
		ClientID:      clientID,
		PassID:        passID,
		Credits:       credits,
	}
}
