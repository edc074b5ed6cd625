package services

import (
	"context"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	pricingDomain "github.com/felixgeelhaar/studiobook/internal/pricing/domain"
)

// PriceResolver is the pricing lookup the booking context depends on.
type PriceResolver interface {
	ResolveForClient(ctx context.Context, clientID, serviceTypeID int64, at time.Time) (pricingDomain.PriceQuote, error)
	ResolveForTechnicalGuest(ctx context.Context, serviceTypeID int64) (pricingDomain.PriceQuote, error)
}

// GuestAggregator turns guest specs into one allocation per distinct guest.
type GuestAggregator struct {
	pricing PriceResolver
}

// NewGuestAggregator creates a new GuestAggregator.
func NewGuestAggregator(pricing PriceResolver) *GuestAggregator {
	return &GuestAggregator{pricing: pricing}
}

// Normalize collapses duplicate clients into one allocation with a
// quantity, folds all technical guests into a single bucket, and prices
// each distinct allocation once.
func (a *GuestAggregator) Normalize(ctx context.Context, specs []domain.GuestSpec, serviceTypeID int64, at time.Time) (map[domain.GuestKey]domain.GuestAllocation, error) {
	counts := make(map[domain.GuestKey]int, len(specs))
	for _, spec := range specs {
		counts[domain.KeyOf(spec)]++
	}

	allocations := make(map[domain.GuestKey]domain.GuestAllocation, len(counts))
	for key, qty := range counts {
		quote, err := a.quote(ctx, key, serviceTypeID, at)
		if err != nil {
			return nil, err
		}
		allocations[key] = domain.GuestAllocation{Key: key, Quantity: qty, Pricing: quote}
	}
	return allocations, nil
}

// NormalizeRaw parses the signed integer form and normalizes it.
func (a *GuestAggregator) NormalizeRaw(ctx context.Context, raw []int64, serviceTypeID int64, at time.Time) (map[domain.GuestKey]domain.GuestAllocation, error) {
	specs, err := domain.ParseGuestSpecs(raw)
	if err != nil {
		return nil, err
	}
	return a.Normalize(ctx, specs, serviceTypeID, at)
}

func (a *GuestAggregator) quote(ctx context.Context, key domain.GuestKey, serviceTypeID int64, at time.Time) (pricingDomain.PriceQuote, error) {
	if clientID, ok := key.ClientID(); ok {
		return a.pricing.ResolveForClient(ctx, clientID, serviceTypeID, at)
	}
	return a.pricing.ResolveForTechnicalGuest(ctx, serviceTypeID)
}
