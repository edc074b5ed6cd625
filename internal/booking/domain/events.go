package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	AggregateType = "Reservation"

	RoutingKeyReservationCreated     = "booking.reservation.created"
	RoutingKeyReservationRescheduled = "booking.reservation.rescheduled"
	RoutingKeyReservationCancelled   = "booking.reservation.cancelled"
	RoutingKeyGuestsSynced           = "booking.reservation.guests_synced"
)

// ReservationCreated is emitted when a reservation is booked.
type ReservationCreated struct {
	sharedDomain.BaseEvent
	ReservationID uuid.UUID           `json:"reservation_id"`
	SeriesID      *uuid.UUID          `json:"series_id,omitempty"`
	Change        sharedDomain.Change `json:"change"`
}

// NewReservationCreated creates a ReservationCreated event.
func NewReservationCreated(r *Reservation) *ReservationCreated {
	return &ReservationCreated{
		BaseEvent:     sharedDomain.NewBaseEvent(r.ID(), AggregateType, RoutingKeyReservationCreated),
		ReservationID: r.ID(),
		SeriesID:      r.seriesID,
		Change:        sharedDomain.Change{After: r.Snapshot()},
	}
}

// ReservationRescheduled is emitted when the window or resources change.
type ReservationRescheduled struct {
	sharedDomain.BaseEvent
	ReservationID uuid.UUID           `json:"reservation_id"`
	Change        sharedDomain.Change `json:"change"`
}

// NewReservationRescheduled creates a ReservationRescheduled event.
func NewReservationRescheduled(r *Reservation, before sharedDomain.Snapshot) *ReservationRescheduled {
	return &ReservationRescheduled{
		BaseEvent:     sharedDomain.NewBaseEvent(r.ID(), AggregateType, RoutingKeyReservationRescheduled),
		ReservationID: r.ID(),
		Change:        sharedDomain.Change{Before: before, After: r.Snapshot()},
	}
}

// ReservationCancelled is emitted on soft cancellation.
type ReservationCancelled struct {
	sharedDomain.BaseEvent
	ReservationID uuid.UUID           `json:"reservation_id"`
	CancelledAt   time.Time           `json:"cancelled_at"`
	Change        sharedDomain.Change `json:"change"`
}

// NewReservationCancelled creates a ReservationCancelled event.
func NewReservationCancelled(r *Reservation, before sharedDomain.Snapshot) *ReservationCancelled {
	return &ReservationCancelled{
		BaseEvent:     sharedDomain.NewBaseEvent(r.ID(), AggregateType, RoutingKeyReservationCancelled),
		ReservationID: r.ID(),
		CancelledAt:   *r.cancelledAt,
		Change:        sharedDomain.Change{Before: before, After: r.Snapshot()},
	}
}

// GuestsSynced is emitted when the guest list is replaced.
type GuestsSynced struct {
	sharedDomain.BaseEvent
	ReservationID uuid.UUID           `json:"reservation_id"`
	Diff          GuestDiff           `json:"diff"`
	Change        sharedDomain.Change `json:"change"`
}

// NewGuestsSynced creates a GuestsSynced event.
func NewGuestsSynced(r *Reservation, diff GuestDiff, before sharedDomain.Snapshot) *GuestsSynced {
	return &GuestsSynced{
		BaseEvent:     sharedDomain.NewBaseEvent(r.ID(), AggregateType, RoutingKeyGuestsSynced),
		ReservationID: r.ID(),
		Diff:          diff,
		Change:        sharedDomain.Change{Before: before, After: r.Snapshot()},
	}
}
