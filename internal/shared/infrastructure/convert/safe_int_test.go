package convert

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntToInt32(t *testing.T) {
	v, err := IntToInt32(42)
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)

	_, err = IntToInt32(math.MaxInt32 + 1)
	assert.ErrorContains(t, err, "overflow")
}

func TestClamped(t *testing.T) {
	tests := []struct {
		name   string
		in     int
		want32 int32
		wantU  uint32
	}{
		{"zero", 0, 0, 0},
		{"typical pool size", 10, 10, 10},
		{"negative", -5, -5, 0},
		{"above int32", math.MaxInt32 + 10, math.MaxInt32, math.MaxInt32 + 10},
		{"above uint32", math.MaxUint32 + 10, math.MaxInt32, math.MaxUint32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want32, IntToInt32Clamped(tt.in))
			assert.Equal(t, tt.wantU, IntToUint32Clamped(tt.in))
		})
	}
}
