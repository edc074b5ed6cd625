package domain

import (
	"errors"
	"fmt"
	"maps"
	"time"

	pricingDomain "github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	// ErrReservationNotFound is returned when no reservation has the id.
	ErrReservationNotFound = fmt.Errorf("reservation %w", sharedDomain.ErrNotFound)
	// ErrReservationCancelled is returned when mutating a cancelled reservation.
	ErrReservationCancelled = errors.New("reservation is cancelled")
	// ErrConcurrentModification is returned when a stale version is saved.
	ErrConcurrentModification = errors.New("reservation was modified concurrently")
	ErrInvalidKind            = errors.New("unknown reservation kind")
	ErrInvalidQuantity        = errors.New("guest quantity must be at least 1")
)

// ReservationKind is a 1:1 session or one group class occurrence.
type ReservationKind string

const (
	KindSession    ReservationKind = "session"
	KindGroupClass ReservationKind = "group_class"
)

// IsValid reports whether k is a known kind.
func (k ReservationKind) IsValid() bool {
	return k == KindSession || k == KindGroupClass
}

// Reservation is the aggregate root for a scheduled use of resources.
type Reservation struct {
	sharedDomain.BaseAggregateRoot
	kind          ReservationKind
	title         string
	serviceTypeID int64
	mainClientID  *int64
	pricing       pricingDomain.PriceQuote
	resources     []ResourceKey
	window        TimeWindow
	guests        map[GuestKey]GuestAllocation
	seriesID      *uuid.UUID
	cancelledAt   *time.Time
}

// NewReservationParams holds everything needed to book.
type NewReservationParams struct {
	Kind          ReservationKind
	Title         string
	ServiceTypeID int64
	MainClientID  *int64
	Pricing       pricingDomain.PriceQuote
	Resources     []ResourceKey
	Window        TimeWindow
	Guests        map[GuestKey]GuestAllocation
	SeriesID      *uuid.UUID
}

// NewReservation validates the parameters and records a created event.
func NewReservation(p NewReservationParams) (*Reservation, error) {
	if p.Kind == "" {
		p.Kind = KindSession
	}
	if !p.Kind.IsValid() {
		return nil, ErrInvalidKind
	}
	if !p.Window.End.After(p.Window.Start) {
		return nil, ErrInvalidWindow
	}
	resources, err := NormalizeResourceKeys(p.Resources)
	if err != nil {
		return nil, err
	}
	guests, err := copyGuests(p.Guests)
	if err != nil {
		return nil, err
	}

	r := &Reservation{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		kind:              p.Kind,
		title:             p.Title,
		serviceTypeID:     p.ServiceTypeID,
		mainClientID:      p.MainClientID,
		pricing:           p.Pricing,
		resources:         resources,
		window:            p.Window,
		guests:            guests,
		seriesID:          p.SeriesID,
	}
	r.AddDomainEvent(NewReservationCreated(r))
	return r, nil
}

// ReservationState is the persisted form used to rehydrate an aggregate.
type ReservationState struct {
	ID            uuid.UUID
	Kind          ReservationKind
	Title         string
	ServiceTypeID int64
	MainClientID  *int64
	Pricing       pricingDomain.PriceQuote
	Resources     []ResourceKey
	Window        TimeWindow
	Guests        map[GuestKey]GuestAllocation
	SeriesID      *uuid.UUID
	CancelledAt   *time.Time
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RehydrateReservation rebuilds an aggregate without emitting events.
func RehydrateReservation(s ReservationState) *Reservation {
	guests := s.Guests
	if guests == nil {
		guests = map[GuestKey]GuestAllocation{}
	}
	return &Reservation{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(s.ID, s.CreatedAt, s.UpdatedAt), s.Version),
		kind:          s.Kind,
		title:         s.Title,
		serviceTypeID: s.ServiceTypeID,
		mainClientID:  s.MainClientID,
		pricing:       s.Pricing,
		resources:     s.Resources,
		window:        s.Window,
		guests:        guests,
		seriesID:      s.SeriesID,
		cancelledAt:   s.CancelledAt,
	}
}

func (r *Reservation) Kind() ReservationKind             { return r.kind }
func (r *Reservation) Title() string                     { return r.title }
func (r *Reservation) ServiceTypeID() int64              { return r.serviceTypeID }
func (r *Reservation) MainClientID() *int64              { return r.mainClientID }
func (r *Reservation) Pricing() pricingDomain.PriceQuote { return r.pricing }
func (r *Reservation) Window() TimeWindow                { return r.window }
func (r *Reservation) SeriesID() *uuid.UUID              { return r.seriesID }
func (r *Reservation) CancelledAt() *time.Time           { return r.cancelledAt }
func (r *Reservation) IsCancelled() bool                 { return r.cancelledAt != nil }

// Resources returns a copy of the sorted resource keys.
func (r *Reservation) Resources() []ResourceKey {
	return append([]ResourceKey(nil), r.resources...)
}

// Guests returns a copy of the allocations.
func (r *Reservation) Guests() map[GuestKey]GuestAllocation {
	return maps.Clone(r.guests)
}

// Label is the human-readable name used in conflict reports.
func (r *Reservation) Label() string {
	return ConflictLabel(r.title, r.kind, r.window)
}

// ConflictLabel builds a label from the title, falling back to the kind
// and start time.
func ConflictLabel(title string, kind ReservationKind, window TimeWindow) string {
	if title != "" {
		return title
	}
	return fmt.Sprintf("%s %s", kind, window.Start.Format("2006-01-02 15:04"))
}

// Reschedule moves the reservation. A nil resources slice keeps the current
// set. Returns false when nothing changed.
func (r *Reservation) Reschedule(window TimeWindow, resources []ResourceKey) (bool, error) {
	if r.IsCancelled() {
		return false, ErrReservationCancelled
	}
	if !window.End.After(window.Start) {
		return false, ErrInvalidWindow
	}
	next := r.resources
	if resources != nil {
		normalized, err := NormalizeResourceKeys(resources)
		if err != nil {
			return false, err
		}
		next = normalized
	}
	if window.Start.Equal(r.window.Start) && window.End.Equal(r.window.End) && sameKeys(next, r.resources) {
		return false, nil
	}

	before := r.Snapshot()
	r.window = window
	r.resources = next
	r.Touch()
	r.AddDomainEvent(NewReservationRescheduled(r, before))
	return true, nil
}

// SyncGuests replaces the allocation set with next using a three-way diff.
// Retained allocations keep their original price snapshot.
func (r *Reservation) SyncGuests(next map[GuestKey]GuestAllocation) (GuestDiff, error) {
	if r.IsCancelled() {
		return GuestDiff{}, ErrReservationCancelled
	}
	normalized, err := copyGuests(next)
	if err != nil {
		return GuestDiff{}, err
	}

	diff := DiffAllocations(r.guests, normalized)
	if diff.IsEmpty() {
		return diff, nil
	}

	before := r.Snapshot()
	for _, a := range diff.ToAdd {
		r.guests[a.Key] = a
	}
	for _, c := range diff.ToUpdateQuantity {
		a := r.guests[c.Key]
		a.Quantity = c.To
		r.guests[c.Key] = a
	}
	for _, a := range diff.ToRemove {
		delete(r.guests, a.Key)
	}
	r.Touch()
	r.AddDomainEvent(NewGuestsSynced(r, diff, before))
	return diff, nil
}

// Cancel soft-deletes the reservation. Cancelling twice is a no-op.
func (r *Reservation) Cancel(at time.Time) {
	if r.IsCancelled() {
		return
	}
	before := r.Snapshot()
	at = at.UTC()
	r.cancelledAt = &at
	r.Touch()
	r.AddDomainEvent(NewReservationCancelled(r, before))
}

// Snapshot captures the audited fields.
func (r *Reservation) Snapshot() sharedDomain.Snapshot {
	resources := make([]string, len(r.resources))
	for i, k := range r.resources {
		resources[i] = k.String()
	}
	guests := make(map[string]int, len(r.guests))
	for k, a := range r.guests {
		guests[string(k)] = a.Quantity
	}
	s := sharedDomain.Snapshot{
		"kind":          string(r.kind),
		"title":         r.title,
		"serviceTypeId": r.serviceTypeID,
		"start":         r.window.Start,
		"end":           r.window.End,
		"resources":     resources,
		"guests":        guests,
	}
	if r.mainClientID != nil {
		s["mainClientId"] = *r.mainClientID
	}
	if r.cancelledAt != nil {
		s["cancelledAt"] = *r.cancelledAt
	}
	return s
}

func copyGuests(in map[GuestKey]GuestAllocation) (map[GuestKey]GuestAllocation, error) {
	out := make(map[GuestKey]GuestAllocation, len(in))
	for k, a := range in {
		if a.Quantity < 1 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, k)
		}
		a.Key = k
		out[k] = a
	}
	return out, nil
}

func sameKeys(a, b []ResourceKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
