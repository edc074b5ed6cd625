package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memoryReader returns every stored reservation so the detector's own
// filtering is exercised.
type memoryReader struct {
	mu         sync.Mutex
	candidates []domain.ConflictCandidate
	err        error
}

func (m *memoryReader) add(title string, window domain.TimeWindow, keys ...domain.ResourceKey) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.candidates = append(m.candidates, domain.ConflictCandidate{
		ReservationID: id,
		Kind:          domain.KindSession,
		Title:         title,
		Window:        window,
		Resources:     keys,
	})
	return id
}

func (m *memoryReader) FindOverlapping(_ context.Context, _ []domain.ResourceKey, _ domain.TimeWindow, _ *uuid.UUID) ([]domain.ConflictCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.ConflictCandidate(nil), m.candidates...), nil
}

type fakeUnitOfWork struct {
	commits   int
	rollbacks int
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (u *fakeUnitOfWork) Commit(context.Context) error                       { u.commits++; return nil }
func (u *fakeUnitOfWork) Rollback(context.Context) error                     { u.rollbacks++; return nil }

type fakeLocker struct {
	locked [][]domain.ResourceKey
}

func (l *fakeLocker) LockResources(_ context.Context, keys []domain.ResourceKey) error {
	l.locked = append(l.locked, keys)
	return nil
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func mustWindow(t *testing.T, start, end time.Time) domain.TimeWindow {
	t.Helper()
	w, err := domain.NewTimeWindow(start, end)
	require.NoError(t, err)
	return w
}
