package services

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
	"github.com/google/uuid"
)

// ConflictDetector finds reservations that collide with a resource set and
// window. It never writes and may run against a read replica.
type ConflictDetector struct {
	reader  domain.ConflictReader
	metrics observability.Metrics
}

// NewConflictDetector creates a detector over reader.
func NewConflictDetector(reader domain.ConflictReader, metrics observability.Metrics) *ConflictDetector {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &ConflictDetector{reader: reader, metrics: metrics}
}

// DetectConflicts returns every non-cancelled reservation sharing a resource
// key with keys whose window overlaps, ordered by start then id.
func (d *ConflictDetector) DetectConflicts(ctx context.Context, keys []domain.ResourceKey, window domain.TimeWindow, excludeID *uuid.UUID) ([]domain.ConflictInfo, error) {
	if !window.End.After(window.Start) {
		return nil, domain.ErrInvalidWindow
	}
	normalized, err := domain.NormalizeResourceKeys(keys)
	if err != nil {
		return nil, err
	}

	candidates, err := d.reader.FindOverlapping(ctx, normalized, window, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find overlapping reservations: %w", err)
	}

	conflicts := make([]domain.ConflictInfo, 0, len(candidates))
	for _, c := range candidates {
		if excludeID != nil && c.ReservationID == *excludeID {
			continue
		}
		if !c.Window.Overlaps(window) {
			continue
		}
		shared := domain.SharedResources(normalized, c.Resources)
		if len(shared) == 0 {
			continue
		}
		conflicts = append(conflicts, domain.ConflictInfo{
			ReservationID:   c.ReservationID,
			Window:          c.Window,
			OverlapMinutes:  c.Window.OverlapMinutes(window),
			Label:           domain.ConflictLabel(c.Title, c.Kind, c.Window),
			SharedResources: shared,
		})
	}

	slices.SortFunc(conflicts, func(a, b domain.ConflictInfo) int {
		if c := a.Window.Start.Compare(b.Window.Start); c != 0 {
			return c
		}
		return bytes.Compare(a.ReservationID[:], b.ReservationID[:])
	})

	if len(conflicts) > 0 {
		d.metrics.Counter(observability.MetricConflictsDetected, int64(len(conflicts)))
	}
	return conflicts, nil
}

// CheckConflicts is DetectConflicts for strict flows: any conflict is
// returned as a *domain.ConflictError.
func (d *ConflictDetector) CheckConflicts(ctx context.Context, keys []domain.ResourceKey, window domain.TimeWindow, excludeID *uuid.UUID) error {
	conflicts, err := d.DetectConflicts(ctx, keys, window, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &domain.ConflictError{Conflicts: conflicts}
	}
	return nil
}
