package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(t time.Time) *time.Time { return &t }

func TestPriceCode_AppliesAt(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		code PriceCode
		at   time.Time
		want bool
	}{
		{"inside window", PriceCode{Active: true, ValidFrom: from, ValidUntil: ptr(until)}, from.Add(time.Hour), true},
		{"at valid from", PriceCode{Active: true, ValidFrom: from, ValidUntil: ptr(until)}, from, true},
		{"at valid until is excluded", PriceCode{Active: true, ValidFrom: from, ValidUntil: ptr(until)}, until, false},
		{"before window", PriceCode{Active: true, ValidFrom: from}, from.Add(-time.Second), false},
		{"open ended", PriceCode{Active: true, ValidFrom: from}, from.AddDate(5, 0, 0), true},
		{"inactive", PriceCode{Active: false, ValidFrom: from}, from.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.AppliesAt(tt.at))
		})
	}
}

func TestSelectPriceCode(t *testing.T) {
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("latest valid from wins", func(t *testing.T) {
		codes := []PriceCode{
			{ID: 1, Active: true, ValidFrom: jan},
			{ID: 2, Active: true, ValidFrom: feb},
		}
		got, ok := SelectPriceCode(codes, at)
		require.True(t, ok)
		assert.Equal(t, int64(2), got.ID)
	})

	t.Run("ties go to lowest id", func(t *testing.T) {
		codes := []PriceCode{
			{ID: 9, Active: true, ValidFrom: feb},
			{ID: 4, Active: true, ValidFrom: feb},
		}
		got, ok := SelectPriceCode(codes, at)
		require.True(t, ok)
		assert.Equal(t, int64(4), got.ID)
	})

	t.Run("expired codes are ignored", func(t *testing.T) {
		codes := []PriceCode{{ID: 1, Active: true, ValidFrom: jan, ValidUntil: ptr(feb)}}
		_, ok := SelectPriceCode(codes, at)
		assert.False(t, ok)
	})
}

func TestPriceQuote(t *testing.T) {
	q := PriceQuote{
		EntryFeeBrutto:   decimal.RequireFromString("12.50"),
		TrainerFeeBrutto: decimal.RequireFromString("30"),
		Source:           SourceServiceDefault,
	}
	assert.True(t, q.Total().Equal(decimal.RequireFromString("42.5")))

	same := PriceQuote{
		EntryFeeBrutto:   decimal.RequireFromString("12.5"),
		TrainerFeeBrutto: decimal.RequireFromString("30.00"),
		Source:           SourceServiceDefault,
	}
	assert.True(t, q.Equal(same))
	assert.True(t, SourceClientOverride.IsValid())
	assert.False(t, PriceSource("manual").IsValid())
}
