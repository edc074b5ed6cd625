package domain

import "github.com/shopspring/decimal"

// PriceSource records where a quote's fees came from.
type PriceSource string

const (
	SourceClientOverride PriceSource = "client_override"
	SourceServiceDefault PriceSource = "service_default"
)

// IsValid reports whether s is a known source.
func (s PriceSource) IsValid() bool {
	return s == SourceClientOverride || s == SourceServiceDefault
}

// PriceQuote is a snapshot of the fees charged for one participant.
// It is never stored on its own, only alongside an allocation or reservation.
type PriceQuote struct {
	EntryFeeBrutto   decimal.Decimal `json:"entryFeeBrutto"`
	TrainerFeeBrutto decimal.Decimal `json:"trainerFeeBrutto"`
	Source           PriceSource     `json:"source"`
}

// Total returns the sum of both fees.
func (q PriceQuote) Total() decimal.Decimal {
	return q.EntryFeeBrutto.Add(q.TrainerFeeBrutto)
}

// Equal compares fees by value rather than representation.
func (q PriceQuote) Equal(other PriceQuote) bool {
	return q.Source == other.Source &&
		q.EntryFeeBrutto.Equal(other.EntryFeeBrutto) &&
		q.TrainerFeeBrutto.Equal(other.TrainerFeeBrutto)
}
