package domain

import (
	"errors"
	"fmt"

	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/shopspring/decimal"
)

// ErrServiceTypeNotFound is returned for unknown or inactive service types.
var ErrServiceTypeNotFound = fmt.Errorf("service type %w", sharedDomain.ErrNotFound)

// ErrNegativeFee is returned when a fee is below zero.
var ErrNegativeFee = errors.New("fees must not be negative")

// ServiceType is a bookable offering with default fees.
type ServiceType struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	EntryFeeBrutto   decimal.Decimal `json:"entryFeeBrutto"`
	TrainerFeeBrutto decimal.Decimal `json:"trainerFeeBrutto"`
	Active           bool            `json:"active"`
}

// Validate checks the fee invariants.
func (s ServiceType) Validate() error {
	if s.EntryFeeBrutto.IsNegative() || s.TrainerFeeBrutto.IsNegative() {
		return ErrNegativeFee
	}
	return nil
}

// DefaultQuote returns the service's own fees.
func (s ServiceType) DefaultQuote() PriceQuote {
	return PriceQuote{
		EntryFeeBrutto:   s.EntryFeeBrutto,
		TrainerFeeBrutto: s.TrainerFeeBrutto,
		Source:           SourceServiceDefault,
	}
}
