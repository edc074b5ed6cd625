package domain

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

var (
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrAmbiguousParticipant = errors.New("participant is ambiguous, guest index required")
)

// ParticipantKind is MainClient or AdditionalGuest.
type ParticipantKind string

const (
	ParticipantMainClient      ParticipantKind = "main_client"
	ParticipantAdditionalGuest ParticipantKind = "additional_guest"
)

// MainSlotKey is the slot key of the main client.
const MainSlotKey = "main"

// ParticipantKey identifies exactly one attendance slot of a reservation.
// GuestKey and GuestIndex are only meaningful for additional guests.
type ParticipantKey struct {
	ReservationID uuid.UUID
	Kind          ParticipantKind
	GuestKey      GuestKey
	GuestIndex    int
}

// MainClientSlot returns the main client's key.
func MainClientSlot(reservationID uuid.UUID) ParticipantKey {
	return ParticipantKey{ReservationID: reservationID, Kind: ParticipantMainClient}
}

// GuestSlot returns the key of one unit of a guest allocation.
func GuestSlot(reservationID uuid.UUID, key GuestKey, index int) ParticipantKey {
	return ParticipantKey{
		ReservationID: reservationID,
		Kind:          ParticipantAdditionalGuest,
		GuestKey:      key,
		GuestIndex:    index,
	}
}

// SlotKey is unique within a reservation and used for persistence.
func (p ParticipantKey) SlotKey() string {
	if p.Kind == ParticipantMainClient {
		return MainSlotKey
	}
	return string(p.GuestKey) + "#" + strconv.Itoa(p.GuestIndex)
}

// ClientID returns the client behind the slot, if any.
func (p ParticipantKey) ClientID(mainClientID *int64) (int64, bool) {
	if p.Kind == ParticipantMainClient {
		if mainClientID == nil {
			return 0, false
		}
		return *mainClientID, true
	}
	return p.GuestKey.ClientID()
}

// ParticipantSelector is the loose addressing accepted at the API boundary.
type ParticipantSelector struct {
	ClientID   *int64
	GuestIndex *int
}

// ResolveParticipant turns a selector into exactly one ParticipantKey.
//
//   - no fields: the main client
//   - clientId only: the main client if it matches, otherwise that client's
//     single guest slot (ambiguous when the quantity is above one)
//   - clientId and guestIndex: that unit of the client's allocation
//   - guestIndex only: that unit of the technical-guest bucket
func (r *Reservation) ResolveParticipant(sel ParticipantSelector) (ParticipantKey, error) {
	switch {
	case sel.ClientID == nil && sel.GuestIndex == nil:
		if r.mainClientID == nil {
			return ParticipantKey{}, fmt.Errorf("%w: reservation has no main client", ErrParticipantNotFound)
		}
		return MainClientSlot(r.ID()), nil

	case sel.ClientID == nil:
		return r.guestSlot(TechnicalGuestKey, *sel.GuestIndex)

	case sel.GuestIndex == nil:
		if r.mainClientID != nil && *r.mainClientID == *sel.ClientID {
			return MainClientSlot(r.ID()), nil
		}
		alloc, ok := r.guests[ClientGuestKey(*sel.ClientID)]
		if !ok {
			return ParticipantKey{}, fmt.Errorf("%w: client %d", ErrParticipantNotFound, *sel.ClientID)
		}
		if alloc.Quantity > 1 {
			return ParticipantKey{}, ErrAmbiguousParticipant
		}
		return GuestSlot(r.ID(), alloc.Key, 0), nil

	default:
		return r.guestSlot(ClientGuestKey(*sel.ClientID), *sel.GuestIndex)
	}
}

func (r *Reservation) guestSlot(key GuestKey, index int) (ParticipantKey, error) {
	alloc, ok := r.guests[key]
	if !ok || index < 0 || index >= alloc.Quantity {
		return ParticipantKey{}, fmt.Errorf("%w: %s#%d", ErrParticipantNotFound, key, index)
	}
	return GuestSlot(r.ID(), key, index), nil
}

// ParticipantSlots lists every attendance slot: the main client first,
// then each unit of each allocation in key order.
func (r *Reservation) ParticipantSlots() []ParticipantKey {
	var slots []ParticipantKey
	if r.mainClientID != nil {
		slots = append(slots, MainClientSlot(r.ID()))
	}
	for _, key := range sortedKeys(r.guests) {
		for i := 0; i < r.guests[key].Quantity; i++ {
			slots = append(slots, GuestSlot(r.ID(), key, i))
		}
	}
	return slots
}
