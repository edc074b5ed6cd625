package queries

import (
	"sort"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	pricingDomain "github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	"github.com/google/uuid"
)

// GuestAllocationDTO is a data transfer object for one guest allocation.
type GuestAllocationDTO struct {
	GuestKey string                   `json:"guestKey"`
	ClientID *int64                   `json:"clientId,omitempty"`
	Quantity int                      `json:"quantity"`
	Pricing  pricingDomain.PriceQuote `json:"pricing"`
}

// ReservationDTO is a data transfer object for reservations.
type ReservationDTO struct {
	ID            uuid.UUID                `json:"id"`
	Kind          string                   `json:"kind"`
	Title         string                   `json:"title,omitempty"`
	ServiceTypeID int64                    `json:"serviceTypeId"`
	MainClientID  *int64                   `json:"mainClientId,omitempty"`
	Pricing       pricingDomain.PriceQuote `json:"pricing"`
	ResourceKeys  []domain.ResourceKey     `json:"resourceKeys"`
	Window        domain.TimeWindow        `json:"window"`
	Guests        []GuestAllocationDTO     `json:"guests"`
	SeriesID      *uuid.UUID               `json:"seriesId,omitempty"`
	CancelledAt   *time.Time               `json:"cancelledAt,omitempty"`
	Version       int                      `json:"version"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

// NewReservationDTO flattens a reservation. Guests are ordered by key.
func NewReservationDTO(r *domain.Reservation) ReservationDTO {
	guests := make([]GuestAllocationDTO, 0, len(r.Guests()))
	for key, alloc := range r.Guests() {
		g := GuestAllocationDTO{GuestKey: string(key), Quantity: alloc.Quantity, Pricing: alloc.Pricing}
		if id, ok := key.ClientID(); ok {
			g.ClientID = &id
		}
		guests = append(guests, g)
	}
	sort.Slice(guests, func(i, j int) bool { return guests[i].GuestKey < guests[j].GuestKey })

	return ReservationDTO{
		ID:            r.ID(),
		Kind:          string(r.Kind()),
		Title:         r.Title(),
		ServiceTypeID: r.ServiceTypeID(),
		MainClientID:  r.MainClientID(),
		Pricing:       r.Pricing(),
		ResourceKeys:  r.Resources(),
		Window:        r.Window(),
		Guests:        guests,
		SeriesID:      r.SeriesID(),
		CancelledAt:   r.CancelledAt(),
		Version:       r.Version(),
		CreatedAt:     r.CreatedAt(),
		UpdatedAt:     r.UpdatedAt(),
	}
}

// NewReservationDTOs converts a list.
func NewReservationDTOs(rs []*domain.Reservation) []ReservationDTO {
	out := make([]ReservationDTO, len(rs))
	for i, r := range rs {
		out[i] = NewReservationDTO(r)
	}
	return out
}
