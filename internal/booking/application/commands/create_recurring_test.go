package commands

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/studiobook/internal/booking/application/services"
	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mondays(t *testing.T) domain.RecurrencePattern {
	t.Helper()
	p, err := domain.NewRecurrencePattern(domain.RecurrencePatternParams{
		DayOfWeek:       "monday",
		TimeOfDay:       "10:00",
		DurationMinutes: 60,
		IntervalStart:   "2025-01-06",
		IntervalEnd:     "2025-01-27",
	})
	require.NoError(t, err)
	return p
}

func TestCreateRecurringHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("skips the conflicting date", func(t *testing.T) {
		f := newFixture()
		seed(t, f, "Private session", hours(t, 20, 9, 11), nil)
		expander := services.NewRecurrenceExpander(f.deps.Detector, f.repo, f.uow, 0, f.metrics, nil)

		result, err := NewCreateRecurringHandler(f.deps, expander).Handle(ctx, CreateRecurringCommand{
			Pattern:       mondays(t),
			Title:         "Yoga",
			ServiceTypeID: 3,
			ResourceKeys:  []domain.ResourceKey{domain.RoomKey(1)},
			GuestSpecs:    []int64{-1, -2},
		})
		require.NoError(t, err)

		require.Len(t, result.Created, 3)
		for _, r := range result.Created {
			assert.Equal(t, domain.KindGroupClass, r.Kind())
			require.NotNil(t, r.SeriesID())
			assert.Equal(t, result.SeriesID, *r.SeriesID())
			assert.Equal(t, 2, r.Guests()[domain.TechnicalGuestKey].Quantity)
		}
		assert.Equal(t, []domain.SkippedDate{{
			Date: "2025-01-20", Reason: domain.SkipReasonConflict, ConflictLabel: "Private session",
		}}, result.Skipped)
		assert.Len(t, f.events.events, 3)
		assert.Len(t, f.notifier.changes, 3)
	})

	t.Run("nothing created", func(t *testing.T) {
		f := newFixture()
		for _, day := range []int{6, 13, 20, 27} {
			seed(t, f, "Booked", hours(t, day, 10, 11), nil)
		}
		expander := services.NewRecurrenceExpander(f.deps.Detector, f.repo, f.uow, 0, nil, nil)

		result, err := NewCreateRecurringHandler(f.deps, expander).Handle(ctx, CreateRecurringCommand{
			Pattern:       mondays(t),
			ServiceTypeID: 3,
			ResourceKeys:  []domain.ResourceKey{domain.RoomKey(1)},
		})
		assert.ErrorIs(t, err, domain.ErrAllDatesConflicted)
		require.NotNil(t, result)
		assert.Empty(t, result.Created)
		assert.Len(t, result.Skipped, 4)
		assert.Empty(t, f.notifier.changes)
	})
}
