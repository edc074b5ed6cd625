package domain

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"time"

	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrPassNotFound        = fmt.Errorf("pass %w", sharedDomain.ErrNotFound)
	ErrNoUsablePass        = errors.New("no active pass with enough credits")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAlreadyDeducted     = errors.New("credit already deducted")
	ErrNotChargeable       = errors.New("participation is no longer chargeable")
)

// Pass is a prepaid credit balance.
type Pass struct {
	ID               uuid.UUID  `json:"id"`
	ClientID         int64      `json:"clientId"`
	ServiceTypeID    *int64     `json:"serviceTypeId,omitempty"`
	TotalCredits     int        `json:"totalCredits"`
	RemainingCredits int        `json:"remainingCredits"`
	ValidFrom        time.Time  `json:"validFrom"`
	ValidUntil       *time.Time `json:"validUntil,omitempty"`
	Active           bool       `json:"active"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Validate checks the balance invariants.
func (p *Pass) Validate() error {
	if p.ClientID <= 0 {
		return sharedDomain.NewValidationError("clientId", "must be positive")
	}
	if p.TotalCredits < 0 || p.RemainingCredits < 0 || p.RemainingCredits > p.TotalCredits {
		return sharedDomain.NewValidationError("remainingCredits", "must be between 0 and totalCredits")
	}
	return nil
}

// UsableAt reports whether the pass can pay credits for serviceTypeID at
// the given instant. A pass without a service type covers every type.
func (p *Pass) UsableAt(at time.Time, serviceTypeID int64, credits int) bool {
	if !p.Active || p.RemainingCredits < credits {
		return false
	}
	if at.Before(p.ValidFrom) || (p.ValidUntil != nil && !at.Before(*p.ValidUntil)) {
		return false
	}
	return p.ServiceTypeID == nil || *p.ServiceTypeID == serviceTypeID
}

// SelectPass picks the usable pass expiring soonest. Open-ended passes come
// last; ties go to the lowest id.
func SelectPass(passes []Pass, at time.Time, serviceTypeID int64, credits int) (Pass, bool) {
	usable := make([]Pass, 0, len(passes))
	for _, p := range passes {
		if p.UsableAt(at, serviceTypeID, credits) {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		return Pass{}, false
	}
	slices.SortFunc(usable, func(a, b Pass) int {
		switch {
		case a.ValidUntil == nil && b.ValidUntil != nil:
			return 1
		case a.ValidUntil != nil && b.ValidUntil == nil:
			return -1
		case a.ValidUntil != nil && b.ValidUntil != nil:
			if c := a.ValidUntil.Compare(*b.ValidUntil); c != 0 {
				return c
			}
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return usable[0], true
}

// CreditDeductionError reports why a check-in was not charged. It is
// logged, never returned to API callers.
type CreditDeductionError struct {
	RecordID uuid.UUID
	ClientID int64
	Credits  int
	Err      error
}

func (e *CreditDeductionError) Error() string {
	return fmt.Sprintf("deduct %d credit(s) for client %d on record %s: %v", e.Credits, e.ClientID, e.RecordID, e.Err)
}

func (e *CreditDeductionError) Unwrap() error { return e.Err }
