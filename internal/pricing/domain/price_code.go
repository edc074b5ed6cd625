package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceCode is a client-specific fee override for one service type.
// Its validity window is half-open: [ValidFrom, ValidUntil), open-ended when
// ValidUntil is nil.
type PriceCode struct {
	ID               int64
	ClientID         int64
	ServiceTypeID    int64
	EntryFeeBrutto   decimal.Decimal
	TrainerFeeBrutto decimal.Decimal
	ValidFrom        time.Time
	ValidUntil       *time.Time
	Active           bool
}

// AppliesAt reports whether the code is active and valid at the instant.
func (p PriceCode) AppliesAt(at time.Time) bool {
	if !p.Active || at.Before(p.ValidFrom) {
		return false
	}
	return p.ValidUntil == nil || at.Before(*p.ValidUntil)
}

// Quote returns the override as a price quote.
func (p PriceCode) Quote() PriceQuote {
	return PriceQuote{
		EntryFeeBrutto:   p.EntryFeeBrutto,
		TrainerFeeBrutto: p.TrainerFeeBrutto,
		Source:           SourceClientOverride,
	}
}

// SelectPriceCode picks the code applying at the instant. When several
// apply, the most recent ValidFrom wins and ties go to the lowest id.
func SelectPriceCode(codes []PriceCode, at time.Time) (PriceCode, bool) {
	var (
		best  PriceCode
		found bool
	)
	for _, c := range codes {
		if !c.AppliesAt(at) {
			continue
		}
		if !found ||
			c.ValidFrom.After(best.ValidFrom) ||
			(c.ValidFrom.Equal(best.ValidFrom) && c.ID < best.ID) {
			best, found = c, true
		}
	}
	return best, found
}
