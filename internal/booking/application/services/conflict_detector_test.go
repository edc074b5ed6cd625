package services

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictDetector_DetectConflicts(t *testing.T) {
	ctx := context.Background()
	room := domain.RoomKey(1)
	reader := &memoryReader{}

	later := reader.add("Later", mustWindow(t, utc(2025, 1, 6, 10, 30), utc(2025, 1, 6, 12, 0)), room)
	earlier := reader.add("Earlier", mustWindow(t, utc(2025, 1, 6, 9, 30), utc(2025, 1, 6, 10, 15)), room, domain.StaffKey(4))
	reader.add("Touching", mustWindow(t, utc(2025, 1, 6, 11, 0), utc(2025, 1, 6, 12, 0)), domain.RoomKey(2))
	reader.add("Other room", mustWindow(t, utc(2025, 1, 6, 10, 0), utc(2025, 1, 6, 11, 0)), domain.RoomKey(9))

	metrics := observability.NewInMemoryMetrics()
	detector := NewConflictDetector(reader, metrics)

	conflicts, err := detector.DetectConflicts(ctx,
		[]domain.ResourceKey{room, domain.RoomKey(2)},
		mustWindow(t, utc(2025, 1, 6, 10, 0), utc(2025, 1, 6, 11, 0)), nil)
	require.NoError(t, err)

	require.Len(t, conflicts, 2)
	assert.Equal(t, earlier, conflicts[0].ReservationID)
	assert.Equal(t, 15, conflicts[0].OverlapMinutes)
	assert.Equal(t, []domain.ResourceKey{room}, conflicts[0].SharedResources)
	assert.Equal(t, later, conflicts[1].ReservationID)
	assert.Equal(t, 30, conflicts[1].OverlapMinutes)
	assert.Equal(t, "Later", conflicts[1].Label)
	assert.Equal(t, int64(2), metrics.GetCounter(observability.MetricConflictsDetected))

	conflicts, err = detector.DetectConflicts(ctx, []domain.ResourceKey{room},
		mustWindow(t, utc(2025, 1, 6, 10, 0), utc(2025, 1, 6, 11, 0)), &later)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, earlier, conflicts[0].ReservationID)
}

func TestConflictDetector_Symmetry(t *testing.T) {
	ctx := context.Background()
	room := domain.RoomKey(1)
	a := mustWindow(t, utc(2025, 1, 6, 10, 0), utc(2025, 1, 6, 11, 0))
	windows := []domain.TimeWindow{
		mustWindow(t, utc(2025, 1, 6, 11, 0), utc(2025, 1, 6, 12, 0)),
		mustWindow(t, utc(2025, 1, 6, 10, 59), utc(2025, 1, 6, 12, 0)),
		mustWindow(t, utc(2025, 1, 6, 9, 0), utc(2025, 1, 6, 10, 0)),
		mustWindow(t, utc(2025, 1, 6, 9, 0), utc(2025, 1, 6, 10, 1)),
	}

	for _, b := range windows {
		readerA := &memoryReader{}
		idA := readerA.add("A", a, room)
		readerB := &memoryReader{}
		idB := readerB.add("B", b, room)

		fromB, err := NewConflictDetector(readerA, nil).DetectConflicts(ctx, []domain.ResourceKey{room}, b, nil)
		require.NoError(t, err)
		fromA, err := NewConflictDetector(readerB, nil).DetectConflicts(ctx, []domain.ResourceKey{room}, a, nil)
		require.NoError(t, err)

		assert.Equal(t, a.Overlaps(b), len(fromB) == 1 && fromB[0].ReservationID == idA)
		assert.Equal(t, a.Overlaps(b), len(fromA) == 1 && fromA[0].ReservationID == idB)
	}
}

func TestConflictDetector_CheckConflicts(t *testing.T) {
	ctx := context.Background()
	room := domain.RoomKey(1)
	reader := &memoryReader{}
	reader.add("Booked", mustWindow(t, utc(2025, 1, 6, 10, 0), utc(2025, 1, 6, 11, 0)), room)
	detector := NewConflictDetector(reader, nil)

	err := detector.CheckConflicts(ctx, []domain.ResourceKey{room},
		mustWindow(t, utc(2025, 1, 6, 10, 30), utc(2025, 1, 6, 11, 30)), nil)
	var conflictErr *domain.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Len(t, conflictErr.Conflicts, 1)
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = detector.CheckConflicts(ctx, []domain.ResourceKey{room},
		mustWindow(t, utc(2025, 1, 6, 11, 0), utc(2025, 1, 6, 12, 0)), nil)
	assert.NoError(t, err)
}

func TestConflictDetector_Errors(t *testing.T) {
	ctx := context.Background()
	detector := NewConflictDetector(&memoryReader{err: errors.New("replica lag")}, nil)
	w := mustWindow(t, utc(2025, 1, 6, 10, 0), utc(2025, 1, 6, 11, 0))

	_, err := detector.DetectConflicts(ctx, []domain.ResourceKey{domain.RoomKey(1)}, w, nil)
	assert.ErrorContains(t, err, "replica lag")

	_, err = detector.DetectConflicts(ctx, nil, w, nil)
	assert.ErrorIs(t, err, domain.ErrNoResources)

	_, err = detector.DetectConflicts(ctx, []domain.ResourceKey{domain.RoomKey(1)},
		domain.TimeWindow{Start: w.End, End: w.Start}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
}
