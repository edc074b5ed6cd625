package domain

import (
	"testing"
	"time"

	bookingDomain "github.com/felixgeelhaar/studiobook/internal/booking/domain"
	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"attended", StatusAttended, false},
		{"no_show", StatusNoShow, false},
		{"unset", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, sharedDomain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecord_StatusAndCredit(t *testing.T) {
	clientID := int64(5)
	rec := NewRecord(bookingDomain.MainClientSlot(uuid.New()), &clientID)
	at := time.Date(2025, 1, 6, 10, 5, 0, 0, time.UTC)

	assert.False(t, rec.NeedsDeduction())

	changed, err := rec.SetStatus(StatusAttended, at)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, rec.NeedsDeduction())

	changed, err = rec.SetStatus(StatusAttended, at)
	require.NoError(t, err)
	assert.False(t, changed)

	passID := uuid.New()
	require.NoError(t, rec.MarkCreditDeducted(passID, 1))
	assert.ErrorIs(t, rec.MarkCreditDeducted(passID, 1), ErrAlreadyDeducted)
	assert.False(t, rec.NeedsDeduction())

	// Flipping back and forth never re-arms the charge.
	_, err = rec.SetStatus(StatusNoShow, at)
	require.NoError(t, err)
	_, err = rec.SetStatus(StatusAttended, at)
	require.NoError(t, err)
	assert.False(t, rec.NeedsDeduction())

	events := rec.PullDomainEvents()
	keys := make([]string, len(events))
	for i, e := range events {
		keys[i] = e.RoutingKey()
	}
	assert.Equal(t, []string{
		RoutingKeyParticipantCheckedIn,
		RoutingKeyCreditDeducted,
		RoutingKeyParticipantCheckedIn,
		RoutingKeyParticipantCheckedIn,
	}, keys)

	_, err = rec.SetStatus(StatusUnset, at)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestRecord_TechnicalGuestIsNeverCharged(t *testing.T) {
	rec := NewRecord(bookingDomain.GuestSlot(uuid.New(), bookingDomain.TechnicalGuestKey, 0), nil)
	_, err := rec.SetStatus(StatusAttended, time.Now())
	require.NoError(t, err)
	assert.False(t, rec.NeedsDeduction())
}

func TestRecord_RemovedSlot(t *testing.T) {
	removed := time.Now()
	rec := RehydrateRecord(RecordState{
		ID:        uuid.New(),
		Slot:      bookingDomain.MainClientSlot(uuid.New()),
		Status:    StatusUnset,
		RemovedAt: &removed,
	})
	_, err := rec.SetStatus(StatusAttended, time.Now())
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestSelectPass(t *testing.T) {
	at := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	soon := at.AddDate(0, 1, 0)
	later := at.AddDate(0, 6, 0)
	pilates := int64(3)
	yoga := int64(4)

	openEnded := Pass{ID: uuid.New(), ClientID: 5, TotalCredits: 10, RemainingCredits: 10, ValidFrom: at.AddDate(0, -1, 0), Active: true}
	expiresSoon := Pass{ID: uuid.New(), ClientID: 5, TotalCredits: 10, RemainingCredits: 2, ValidFrom: at.AddDate(0, -1, 0), ValidUntil: &soon, Active: true}
	expiresLater := Pass{ID: uuid.New(), ClientID: 5, ServiceTypeID: &pilates, TotalCredits: 10, RemainingCredits: 5, ValidFrom: at.AddDate(0, -1, 0), ValidUntil: &later, Active: true}
	empty := Pass{ID: uuid.New(), ClientID: 5, TotalCredits: 10, RemainingCredits: 0, ValidFrom: at.AddDate(0, -1, 0), Active: true}
	otherType := Pass{ID: uuid.New(), ClientID: 5, ServiceTypeID: &yoga, TotalCredits: 10, RemainingCredits: 10, ValidFrom: at.AddDate(0, -1, 0), Active: true}
	notStarted := Pass{ID: uuid.New(), ClientID: 5, TotalCredits: 10, RemainingCredits: 10, ValidFrom: at.AddDate(0, 0, 1), Active: true}
	inactive := Pass{ID: uuid.New(), ClientID: 5, TotalCredits: 10, RemainingCredits: 10, ValidFrom: at.AddDate(0, -1, 0)}

	all := []Pass{openEnded, expiresLater, empty, otherType, notStarted, inactive, expiresSoon}

	got, ok := SelectPass(all, at, pilates, 1)
	require.True(t, ok)
	assert.Equal(t, expiresSoon.ID, got.ID)

	got, ok = SelectPass(all, at, pilates, 3)
	require.True(t, ok)
	assert.Equal(t, expiresLater.ID, got.ID)

	got, ok = SelectPass(all, soon, 9, 1)
	require.True(t, ok)
	assert.Equal(t, openEnded.ID, got.ID)

	_, ok = SelectPass([]Pass{empty, inactive}, at, pilates, 1)
	assert.False(t, ok)
}
