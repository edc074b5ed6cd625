package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 1, 6, hour, minute, 0, 0, time.UTC)
}

func window(t *testing.T, startH, startM, endH, endM int) TimeWindow {
	t.Helper()
	w, err := NewTimeWindow(at(startH, startM), at(endH, endM))
	require.NoError(t, err)
	return w
}

func TestNewTimeWindow(t *testing.T) {
	_, err := NewTimeWindow(at(10, 0), at(10, 0))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewTimeWindow(at(11, 0), at(10, 0))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	w, err := NewTimeWindow(time.Date(2025, 1, 6, 10, 0, 0, 0, berlin), time.Date(2025, 1, 6, 11, 0, 0, 0, berlin))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, w.Start.Location())
	assert.Equal(t, time.Hour, w.Duration())
}

func TestTimeWindow_Overlaps(t *testing.T) {
	tests := []struct {
		name    string
		a, b    TimeWindow
		want    bool
		minutes int
	}{
		{"touching endpoints", window(t, 10, 0, 11, 0), window(t, 11, 0, 12, 0), false, 0},
		{"partial overlap", window(t, 10, 0, 11, 0), window(t, 10, 30, 11, 30), true, 30},
		{"contained", window(t, 9, 0, 12, 0), window(t, 10, 0, 10, 45), true, 45},
		{"identical", window(t, 10, 0, 11, 0), window(t, 10, 0, 11, 0), true, 60},
		{"disjoint", window(t, 8, 0, 9, 0), window(t, 10, 0, 11, 0), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap must be symmetric")
			assert.Equal(t, tt.minutes, tt.a.OverlapMinutes(tt.b))
			assert.Equal(t, tt.minutes, tt.b.OverlapMinutes(tt.a))
		})
	}
}

func TestTimeWindow_Contains(t *testing.T) {
	w := window(t, 10, 0, 11, 0)
	assert.True(t, w.Contains(at(10, 0)))
	assert.True(t, w.Contains(at(10, 59)))
	assert.False(t, w.Contains(at(11, 0)))
}
