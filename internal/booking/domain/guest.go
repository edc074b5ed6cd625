package domain

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	pricingDomain "github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
)

// GuestSpec is one requested guest slot: a real client or an anonymous
// technical guest.
type GuestSpec interface {
	guestKey() GuestKey
}

// RealClient is a guest slot tied to a client record.
type RealClient struct {
	ID int64
}

func (c RealClient) guestKey() GuestKey { return ClientGuestKey(c.ID) }

// TechnicalGuest is an anonymous guest slot.
type TechnicalGuest struct{}

func (TechnicalGuest) guestKey() GuestKey { return TechnicalGuestKey }

// ParseGuestSpecs converts the raw integer form used on the wire: positive
// ids are clients, negative values are technical guests, zero is rejected.
// The magnitude of a negative value carries no meaning.
func ParseGuestSpecs(raw []int64) ([]GuestSpec, error) {
	specs := make([]GuestSpec, 0, len(raw))
	for i, id := range raw {
		switch {
		case id > 0:
			specs = append(specs, RealClient{ID: id})
		case id < 0:
			specs = append(specs, TechnicalGuest{})
		default:
			return nil, sharedDomain.NewValidationError(
				fmt.Sprintf("guestSpecs[%d]", i), "guest id must not be zero")
		}
	}
	return specs, nil
}

// GuestKey identifies one allocation within a reservation.
type GuestKey string

// TechnicalGuestKey is the single bucket holding all technical guests.
const TechnicalGuestKey GuestKey = "technical"

const clientKeyPrefix = "client:"

// ClientGuestKey returns the key for a real client.
func ClientGuestKey(id int64) GuestKey {
	return GuestKey(clientKeyPrefix + strconv.FormatInt(id, 10))
}

// KeyOf returns the allocation key a spec aggregates into.
func KeyOf(spec GuestSpec) GuestKey {
	return spec.guestKey()
}

// ClientID returns the client id for a real-client key.
func (k GuestKey) ClientID() (int64, bool) {
	rest, ok := strings.CutPrefix(string(k), clientKeyPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// IsTechnical reports whether k is the technical-guest bucket.
func (k GuestKey) IsTechnical() bool {
	return k == TechnicalGuestKey
}

// GuestAllocation is one distinct guest with a quantity and a price snapshot.
type GuestAllocation struct {
	Key      GuestKey                 `json:"key"`
	Quantity int                      `json:"quantity"`
	Pricing  pricingDomain.PriceQuote `json:"pricing"`
}

// QuantityChange describes a retained allocation whose quantity changed.
type QuantityChange struct {
	Key  GuestKey `json:"key"`
	From int      `json:"from"`
	To   int      `json:"to"`
}

// GuestDiff is the three-way difference between two allocation sets.
type GuestDiff struct {
	ToAdd            []GuestAllocation `json:"toAdd"`
	ToUpdateQuantity []QuantityChange  `json:"toUpdateQuantity"`
	ToRemove         []GuestAllocation `json:"toRemove"`
}

// IsEmpty reports whether applying the diff changes nothing.
func (d GuestDiff) IsEmpty() bool {
	return len(d.ToAdd) == 0 && len(d.ToUpdateQuantity) == 0 && len(d.ToRemove) == 0
}

// DiffAllocations computes what turns current into next. Keys are visited
// in sorted order so the result is deterministic.
func DiffAllocations(current, next map[GuestKey]GuestAllocation) GuestDiff {
	var diff GuestDiff
	for _, key := range sortedKeys(next) {
		want := next[key]
		have, ok := current[key]
		switch {
		case !ok:
			diff.ToAdd = append(diff.ToAdd, want)
		case have.Quantity != want.Quantity:
			diff.ToUpdateQuantity = append(diff.ToUpdateQuantity, QuantityChange{
				Key: key, From: have.Quantity, To: want.Quantity,
			})
		}
	}
	for _, key := range sortedKeys(current) {
		if _, ok := next[key]; !ok {
			diff.ToRemove = append(diff.ToRemove, current[key])
		}
	}
	return diff
}

func sortedKeys(m map[GuestKey]GuestAllocation) []GuestKey {
	return slices.Sorted(maps.Keys(m))
}
