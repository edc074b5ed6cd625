// Package application holds the attendance ledger: status writes and
// exactly-once credit consumption.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/attendance/domain"
	bookingDomain "github.com/felixgeelhaar/studiobook/internal/booking/domain"
	sharedApplication "github.com/felixgeelhaar/studiobook/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
	"github.com/google/uuid"
)

// ReservationReader loads the reservation a participant belongs to.
type ReservationReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Reservation, error)
}

// CheckInCommand sets the attendance of one participant.
type CheckInCommand struct {
	ReservationID   uuid.UUID
	Selector        bookingDomain.ParticipantSelector
	Status          domain.Status
	CreditsRequired *int
}

// CheckInResult is what the caller sees. A failed charge is reported only
// through CreditDeducted.
type CheckInResult struct {
	RecordID       uuid.UUID     `json:"registrationId"`
	Status         domain.Status `json:"attendanceStatus"`
	CreditDeducted bool          `json:"creditDeducted"`
}

// BatchItem is one entry of a group class check-in.
type BatchItem struct {
	RegistrationID uuid.UUID
	Status         domain.Status
}

// Outcome classifies one batch item.
type Outcome string

const (
	OutcomeCheckedIn Outcome = "checked_in"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// ReasonAlreadyCheckedIn marks batch items whose status was already set.
const ReasonAlreadyCheckedIn = "already_checked_in"

// BatchResult is the outcome of one batch item.
type BatchResult struct {
	RegistrationID uuid.UUID `json:"registrationId"`
	Outcome        Outcome   `json:"outcome"`
	Reason         string    `json:"reason,omitempty"`
	CreditDeducted bool      `json:"creditDeducted"`
}

var errAlreadyCheckedIn = errors.New(ReasonAlreadyCheckedIn)

// Ledger transitions attendance and charges passes. The status write and
// the credit charge are separate transactions: a failed charge never undoes
// the status.
type Ledger struct {
	reservations   ReservationReader
	records        domain.RecordRepository
	passes         domain.PassRepository
	events         sharedApplication.EventRecorder
	uow            sharedApplication.UnitOfWork
	defaultCredits int
	metrics        observability.Metrics
	logger         *slog.Logger
	now            func() time.Time
}

// NewLedger creates a new Ledger. defaultCredits applies when a check-in
// does not say how many credits it costs.
func NewLedger(
	reservations ReservationReader,
	records domain.RecordRepository,
	passes domain.PassRepository,
	events sharedApplication.EventRecorder,
	uow sharedApplication.UnitOfWork,
	defaultCredits int,
	metrics observability.Metrics,
	logger *slog.Logger,
) *Ledger {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if defaultCredits < 0 {
		defaultCredits = 1
	}
	return &Ledger{
		reservations:   reservations,
		records:        records,
		passes:         passes,
		events:         events,
		uow:            uow,
		defaultCredits: defaultCredits,
		metrics:        metrics,
		logger:         logger,
		now:            time.Now,
	}
}

// CheckIn resolves the selector to one slot, writes the status and, when
// the persisted credit flag is still false on an attended write, charges
// the client's pass.
func (l *Ledger) CheckIn(ctx context.Context, cmd CheckInCommand) (*CheckInResult, error) {
	credits, err := l.credits(cmd.CreditsRequired)
	if err != nil {
		return nil, err
	}

	locate := func(txCtx context.Context) (*domain.Record, *bookingDomain.Reservation, error) {
		r, err := l.reservations.FindByID(txCtx, cmd.ReservationID)
		if err != nil {
			return nil, nil, err
		}
		key, err := r.ResolveParticipant(cmd.Selector)
		if err != nil {
			return nil, nil, err
		}
		rec, err := l.records.FindBySlot(txCtx, r.ID(), key.SlotKey())
		if err != nil {
			return nil, nil, err
		}
		return rec, r, nil
	}
	return l.apply(ctx, locate, cmd.Status, credits, false)
}

// CheckInBatch processes every item on its own. Items whose status is
// already set are skipped. The batch itself never fails.
func (l *Ledger) CheckInBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, 0, len(items))
	for _, item := range items {
		res := BatchResult{RegistrationID: item.RegistrationID}

		locate := func(txCtx context.Context) (*domain.Record, *bookingDomain.Reservation, error) {
			rec, err := l.records.FindByID(txCtx, item.RegistrationID)
			if err != nil {
				return nil, nil, err
			}
			r, err := l.reservations.FindByID(txCtx, rec.ReservationID())
			if err != nil {
				return nil, nil, err
			}
			return rec, r, nil
		}

		out, err := l.apply(ctx, locate, item.Status, l.defaultCredits, true)
		switch {
		case errors.Is(err, errAlreadyCheckedIn):
			res.Outcome = OutcomeSkipped
			res.Reason = ReasonAlreadyCheckedIn
		case err != nil:
			res.Outcome = OutcomeFailed
			res.Reason = err.Error()
		default:
			res.Outcome = OutcomeCheckedIn
			res.CreditDeducted = out.CreditDeducted
		}
		results = append(results, res)
	}
	return results
}

func (l *Ledger) credits(requested *int) (int, error) {
	if requested == nil {
		return l.defaultCredits, nil
	}
	if *requested < 0 {
		return 0, sharedDomain.NewValidationError("creditsRequired", "must not be negative")
	}
	return *requested, nil
}

type locator func(ctx context.Context) (*domain.Record, *bookingDomain.Reservation, error)

func (l *Ledger) apply(ctx context.Context, locate locator, status domain.Status, credits int, onlyUnset bool) (*CheckInResult, error) {
	if status != domain.StatusAttended && status != domain.StatusNoShow {
		return nil, sharedDomain.NewValidationError("attendanceStatus", "must be attended or no_show")
	}

	type written struct {
		record        *domain.Record
		serviceTypeID int64
	}
	w, err := sharedApplication.InUnitOfWork(ctx, l.uow, func(txCtx context.Context) (written, error) {
		rec, r, err := locate(txCtx)
		if err != nil {
			return written{}, err
		}
		if r.IsCancelled() {
			return written{}, bookingDomain.ErrReservationCancelled
		}
		if onlyUnset && rec.Status() != domain.StatusUnset {
			return written{}, errAlreadyCheckedIn
		}
		changed, err := rec.SetStatus(status, l.now())
		if err != nil {
			return written{}, err
		}
		if changed {
			if err := l.records.SaveStatus(txCtx, rec); err != nil {
				return written{}, err
			}
			if err := sharedApplication.RecordEvents(txCtx, l.events, rec); err != nil {
				return written{}, err
			}
		}
		return written{record: rec, serviceTypeID: r.ServiceTypeID()}, nil
	})
	if err != nil {
		return nil, err
	}

	rec := w.record
	l.metrics.Counter(observability.MetricCheckIns, 1, observability.T("status", string(status)))
	result := &CheckInResult{RecordID: rec.ID(), Status: rec.Status()}
	if !rec.NeedsDeduction() || credits == 0 {
		return result, nil
	}

	if err := l.deduct(ctx, rec, w.serviceTypeID, credits); err != nil {
		l.metrics.Counter(observability.MetricCreditDeductFailed, 1)
		l.logger.Warn("credit deduction failed",
			"record_id", rec.ID(),
			"reservation_id", rec.ReservationID(),
			"error", err,
		)
		return result, nil
	}
	l.metrics.Counter(observability.MetricCreditsDeducted, int64(credits))
	result.CreditDeducted = true
	return result, nil
}

// deduct claims the record's credit flag and charges the pass in one narrow
// transaction. Either both happen or neither does.
func (l *Ledger) deduct(ctx context.Context, rec *domain.Record, serviceTypeID int64, credits int) error {
	clientID := *rec.ClientID()
	fail := func(err error) error {
		return &domain.CreditDeductionError{RecordID: rec.ID(), ClientID: clientID, Credits: credits, Err: err}
	}

	passes, err := l.passes.FindForClient(ctx, clientID)
	if err != nil {
		return fail(fmt.Errorf("load passes: %w", err))
	}
	pass, ok := domain.SelectPass(passes, l.now(), serviceTypeID, credits)
	if !ok {
		return fail(domain.ErrNoUsablePass)
	}

	err = sharedApplication.WithUnitOfWork(ctx, l.uow, func(txCtx context.Context) error {
		claimed, err := l.records.ClaimDeduction(txCtx, rec.ID(), pass.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return domain.ErrNotChargeable
		}
		decremented, err := l.passes.Decrement(txCtx, pass.ID, credits)
		if err != nil {
			return err
		}
		if !decremented {
			return domain.ErrInsufficientCredits
		}
		if err := rec.MarkCreditDeducted(pass.ID, credits); err != nil {
			return err
		}
		return sharedApplication.RecordEvents(txCtx, l.events, rec)
	})
	if err != nil {
		return fail(err)
	}
	return nil
}
