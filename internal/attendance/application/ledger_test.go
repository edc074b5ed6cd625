package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/attendance/application"
	"github.com/felixgeelhaar/studiobook/internal/attendance/domain"
	bookingDomain "github.com/felixgeelhaar/studiobook/internal/booking/domain"
	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReservations struct{ mock.Mock }

func (m *mockReservations) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bookingDomain.Reservation), args.Error(1)
}

type mockRecords struct{ mock.Mock }

func (m *mockRecords) FindByID(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

func (m *mockRecords) FindBySlot(ctx context.Context, reservationID uuid.UUID, slotKey string) (*domain.Record, error) {
	args := m.Called(ctx, reservationID, slotKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

func (m *mockRecords) ListForReservation(ctx context.Context, reservationID uuid.UUID) ([]*domain.Record, error) {
	args := m.Called(ctx, reservationID)
	return args.Get(0).([]*domain.Record), args.Error(1)
}

func (m *mockRecords) SaveStatus(ctx context.Context, r *domain.Record) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockRecords) ClaimDeduction(ctx context.Context, recordID, passID uuid.UUID) (bool, error) {
	args := m.Called(ctx, recordID, passID)
	return args.Bool(0), args.Error(1)
}

type mockPasses struct{ mock.Mock }

func (m *mockPasses) FindByID(ctx context.Context, id uuid.UUID) (*domain.Pass, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Pass), args.Error(1)
}

func (m *mockPasses) FindForClient(ctx context.Context, clientID int64) ([]domain.Pass, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Pass), args.Error(1)
}

func (m *mockPasses) Save(ctx context.Context, p *domain.Pass) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPasses) Decrement(ctx context.Context, passID uuid.UUID, credits int) (bool, error) {
	args := m.Called(ctx, passID, credits)
	return args.Bool(0), args.Error(1)
}

type countingUoW struct{ commits, rollbacks int }

func (u *countingUoW) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (u *countingUoW) Commit(context.Context) error                       { u.commits++; return nil }
func (u *countingUoW) Rollback(context.Context) error                     { u.rollbacks++; return nil }

type recordingEvents struct{ keys []string }

func (r *recordingEvents) Record(_ context.Context, events []sharedDomain.DomainEvent) error {
	for _, e := range events {
		r.keys = append(r.keys, e.RoutingKey())
	}
	return nil
}

type harness struct {
	reservations *mockReservations
	records      *mockRecords
	passes       *mockPasses
	uow          *countingUoW
	events       *recordingEvents
	metrics      *observability.InMemoryMetrics
	ledger       *application.Ledger
	reservation  *bookingDomain.Reservation
	record       *domain.Record
	pass         domain.Pass
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clientID := int64(5)
	w, err := bookingDomain.NewTimeWindow(time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	r, err := bookingDomain.NewReservation(bookingDomain.NewReservationParams{
		Title:         "Personal training",
		ServiceTypeID: 3,
		MainClientID:  &clientID,
		Resources:     []bookingDomain.ResourceKey{bookingDomain.RoomKey(1)},
		Window:        w,
	})
	require.NoError(t, err)
	r.PullDomainEvents()

	h := &harness{
		reservations: &mockReservations{},
		records:      &mockRecords{},
		passes:       &mockPasses{},
		uow:          &countingUoW{},
		events:       &recordingEvents{},
		metrics:      observability.NewInMemoryMetrics(),
		reservation:  r,
		record:       domain.NewRecord(bookingDomain.MainClientSlot(r.ID()), &clientID),
		pass: domain.Pass{
			ID: uuid.New(), ClientID: clientID, TotalCredits: 10, RemainingCredits: 4,
			ValidFrom: time.Now().AddDate(0, -1, 0), Active: true,
		},
	}
	h.ledger = application.NewLedger(h.reservations, h.records, h.passes, h.events, h.uow, 1, h.metrics, nil)
	return h
}

func (h *harness) expectLocate() {
	h.reservations.On("FindByID", mock.Anything, h.reservation.ID()).Return(h.reservation, nil)
	h.records.On("FindBySlot", mock.Anything, h.reservation.ID(), bookingDomain.MainSlotKey).Return(h.record, nil)
}

func (h *harness) attend() application.CheckInCommand {
	return application.CheckInCommand{ReservationID: h.reservation.ID(), Status: domain.StatusAttended}
}

func TestLedger_CheckIn(t *testing.T) {
	ctx := context.Background()

	t.Run("charges the selected pass once", func(t *testing.T) {
		h := newHarness(t)
		h.expectLocate()
		h.records.On("SaveStatus", mock.Anything, h.record).Return(nil)
		h.passes.On("FindForClient", mock.Anything, int64(5)).Return([]domain.Pass{h.pass}, nil)
		h.records.On("ClaimDeduction", mock.Anything, h.record.ID(), h.pass.ID).Return(true, nil)
		h.passes.On("Decrement", mock.Anything, h.pass.ID, 1).Return(true, nil)

		result, err := h.ledger.CheckIn(ctx, h.attend())
		require.NoError(t, err)
		assert.True(t, result.CreditDeducted)
		assert.Equal(t, h.record.ID(), result.RecordID)
		assert.True(t, h.record.CreditDeducted())
		assert.Equal(t, []string{domain.RoutingKeyParticipantCheckedIn, domain.RoutingKeyCreditDeducted}, h.events.keys)
		assert.Equal(t, 2, h.uow.commits)
		assert.Equal(t, int64(1), h.metrics.GetCounter(observability.MetricCreditsDeducted))
		h.passes.AssertExpectations(t)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		h := newHarness(t)
		cmd := h.attend()
		cmd.Status = domain.StatusUnset
		_, err := h.ledger.CheckIn(ctx, cmd)
		assert.ErrorIs(t, err, sharedDomain.ErrValidation)
		h.reservations.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("rejects negative credits", func(t *testing.T) {
		h := newHarness(t)
		cmd := h.attend()
		negative := -1
		cmd.CreditsRequired = &negative
		_, err := h.ledger.CheckIn(ctx, cmd)
		assert.ErrorIs(t, err, sharedDomain.ErrValidation)
	})

	t.Run("rejects cancelled reservation", func(t *testing.T) {
		h := newHarness(t)
		h.reservation.Cancel(time.Now())
		h.expectLocate()

		_, err := h.ledger.CheckIn(ctx, h.attend())
		assert.ErrorIs(t, err, bookingDomain.ErrReservationCancelled)
		assert.Equal(t, 1, h.uow.rollbacks)
		h.records.AssertNotCalled(t, "SaveStatus", mock.Anything, mock.Anything)
	})

	t.Run("pass lookup failure keeps the status", func(t *testing.T) {
		h := newHarness(t)
		h.expectLocate()
		h.records.On("SaveStatus", mock.Anything, h.record).Return(nil)
		h.passes.On("FindForClient", mock.Anything, int64(5)).Return(nil, errors.New("connection reset"))

		result, err := h.ledger.CheckIn(ctx, h.attend())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAttended, result.Status)
		assert.False(t, result.CreditDeducted)
		assert.Equal(t, int64(1), h.metrics.GetCounter(observability.MetricCreditDeductFailed))
		h.records.AssertNotCalled(t, "ClaimDeduction", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lost claim does not touch the pass", func(t *testing.T) {
		h := newHarness(t)
		h.expectLocate()
		h.records.On("SaveStatus", mock.Anything, h.record).Return(nil)
		h.passes.On("FindForClient", mock.Anything, int64(5)).Return([]domain.Pass{h.pass}, nil)
		h.records.On("ClaimDeduction", mock.Anything, h.record.ID(), h.pass.ID).Return(false, nil)

		result, err := h.ledger.CheckIn(ctx, h.attend())
		require.NoError(t, err)
		assert.False(t, result.CreditDeducted)
		assert.Equal(t, 1, h.uow.rollbacks)
		h.passes.AssertNotCalled(t, "Decrement", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("insufficient balance rolls the claim back", func(t *testing.T) {
		h := newHarness(t)
		h.expectLocate()
		h.records.On("SaveStatus", mock.Anything, h.record).Return(nil)
		h.passes.On("FindForClient", mock.Anything, int64(5)).Return([]domain.Pass{h.pass}, nil)
		h.records.On("ClaimDeduction", mock.Anything, h.record.ID(), h.pass.ID).Return(true, nil)
		h.passes.On("Decrement", mock.Anything, h.pass.ID, 1).Return(false, nil)

		result, err := h.ledger.CheckIn(ctx, h.attend())
		require.NoError(t, err)
		assert.False(t, result.CreditDeducted)
		assert.False(t, h.record.CreditDeducted())
		assert.Equal(t, 1, h.uow.rollbacks)
		assert.Equal(t, []string{domain.RoutingKeyParticipantCheckedIn}, h.events.keys)
	})

	t.Run("zero credits skips deduction", func(t *testing.T) {
		h := newHarness(t)
		h.expectLocate()
		h.records.On("SaveStatus", mock.Anything, h.record).Return(nil)
		cmd := h.attend()
		zero := 0
		cmd.CreditsRequired = &zero

		result, err := h.ledger.CheckIn(ctx, cmd)
		require.NoError(t, err)
		assert.False(t, result.CreditDeducted)
		h.passes.AssertNotCalled(t, "FindForClient", mock.Anything, mock.Anything)
	})
}

func TestLedger_CheckInBatch_MissingRecord(t *testing.T) {
	h := newHarness(t)
	missing := uuid.New()
	h.records.On("FindByID", mock.Anything, missing).Return(nil, domain.ErrRegistrationNotFound)

	results := h.ledger.CheckInBatch(context.Background(), []application.BatchItem{
		{RegistrationID: missing, Status: domain.StatusAttended},
	})
	require.Len(t, results, 1)
	assert.Equal(t, application.OutcomeFailed, results[0].Outcome)
	assert.Contains(t, results[0].Reason, "not found")
}
