package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	sharedApplication "github.com/felixgeelhaar/studiobook/internal/shared/application"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
)

// PreviewStatus classifies one candidate date.
type PreviewStatus string

const (
	PreviewOK       PreviewStatus = "ok"
	PreviewConflict PreviewStatus = "conflict"
	PreviewSkipped  PreviewStatus = "skipped"
)

// DatePreview is one candidate date of a pattern.
type DatePreview struct {
	Date          string            `json:"date"`
	Window        domain.TimeWindow `json:"window"`
	Status        PreviewStatus     `json:"status"`
	ConflictLabel string            `json:"conflictLabel,omitempty"`
}

// OccurrenceFactory builds and stores one occurrence. It runs inside the
// transaction carried by ctx.
type OccurrenceFactory func(ctx context.Context, date time.Time, window domain.TimeWindow) (*domain.Reservation, error)

// ExpansionResult is the outcome of a recurrence batch.
type ExpansionResult struct {
	Created []*domain.Reservation
	Skipped []domain.SkippedDate
}

// ResourceLocker serialises writers on resource keys inside a transaction.
type ResourceLocker interface {
	LockResources(ctx context.Context, keys []domain.ResourceKey) error
}

// RecurrenceExpander expands weekly patterns into dated occurrences.
type RecurrenceExpander struct {
	detector       *ConflictDetector
	locker         ResourceLocker
	uow            sharedApplication.UnitOfWork
	maxOccurrences int
	metrics        observability.Metrics
	logger         *slog.Logger
}

// NewRecurrenceExpander creates an expander. locker and uow may be nil for
// an expander that only previews.
func NewRecurrenceExpander(
	detector *ConflictDetector,
	locker ResourceLocker,
	uow sharedApplication.UnitOfWork,
	maxOccurrences int,
	metrics observability.Metrics,
	logger *slog.Logger,
) *RecurrenceExpander {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if maxOccurrences <= 0 {
		maxOccurrences = domain.DefaultMaxOccurrences
	}
	return &RecurrenceExpander{
		detector:       detector,
		locker:         locker,
		uow:            uow,
		maxOccurrences: maxOccurrences,
		metrics:        metrics,
		logger:         logger,
	}
}

// PreviewDates classifies every candidate date without writing anything.
// Skip dates stay in the list, marked skipped rather than conflict.
func (e *RecurrenceExpander) PreviewDates(ctx context.Context, pattern domain.RecurrencePattern, keys []domain.ResourceKey) ([]DatePreview, error) {
	dates, err := pattern.CandidateDates(e.maxOccurrences)
	if err != nil {
		return nil, err
	}

	previews := make([]DatePreview, 0, len(dates))
	for _, date := range dates {
		p := DatePreview{Date: domain.FormatDate(date), Window: pattern.WindowFor(date), Status: PreviewOK}
		if pattern.IsSkipped(date) {
			p.Status = PreviewSkipped
			previews = append(previews, p)
			continue
		}
		conflicts, err := e.detector.DetectConflicts(ctx, keys, p.Window, nil)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			p.Status = PreviewConflict
			p.ConflictLabel = conflicts[0].Label
		}
		previews = append(previews, p)
	}
	return previews, nil
}

// ExpandAndCreate walks the candidate dates in order. Each date is either
// skipped or created in its own unit of work, with conflicts re-checked
// under the resource locks. A committed date is never rolled back by a later
// failure. An unexpected error stops the batch and is returned with the
// partial result. Creating nothing yields *domain.AllDatesConflictedError.
func (e *RecurrenceExpander) ExpandAndCreate(ctx context.Context, pattern domain.RecurrencePattern, keys []domain.ResourceKey, factory OccurrenceFactory) (*ExpansionResult, error) {
	if e.uow == nil || e.locker == nil {
		return nil, errors.New("recurrence expander is preview-only")
	}
	dates, err := pattern.CandidateDates(e.maxOccurrences)
	if err != nil {
		return nil, err
	}
	normalized, err := domain.NormalizeResourceKeys(keys)
	if err != nil {
		return nil, err
	}

	result := &ExpansionResult{}
	for _, date := range dates {
		day := domain.FormatDate(date)
		if pattern.IsSkipped(date) {
			result.Skipped = append(result.Skipped, domain.SkippedDate{Date: day, Reason: domain.SkipReasonSkipDates})
			continue
		}

		window := pattern.WindowFor(date)
		created, err := sharedApplication.InUnitOfWork(ctx, e.uow, func(txCtx context.Context) (*domain.Reservation, error) {
			if err := e.locker.LockResources(txCtx, normalized); err != nil {
				return nil, err
			}
			if err := e.detector.CheckConflicts(txCtx, normalized, window, nil); err != nil {
				return nil, err
			}
			return factory(txCtx, date, window)
		})

		var conflictErr *domain.ConflictError
		switch {
		case errors.As(err, &conflictErr):
			result.Skipped = append(result.Skipped, domain.SkippedDate{
				Date:          day,
				Reason:        domain.SkipReasonConflict,
				ConflictLabel: conflictErr.Conflicts[0].Label,
			})
			e.metrics.Counter(observability.MetricOccurrencesSkipped, 1, observability.T("reason", string(domain.SkipReasonConflict)))
		case err != nil:
			e.logger.Error("recurrence batch stopped",
				"date", day,
				"created", len(result.Created),
				"error", err,
			)
			return result, fmt.Errorf("create occurrence on %s: %w", day, err)
		default:
			result.Created = append(result.Created, created)
		}
	}

	if len(result.Created) == 0 {
		return result, &domain.AllDatesConflictedError{Skipped: result.Skipped}
	}
	return result, nil
}
