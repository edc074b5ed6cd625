package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/booking/application/services"
	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	pricingDomain "github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	sharedDomain "github.com/felixgeelhaar/studiobook/internal/shared/domain"
	"github.com/felixgeelhaar/studiobook/pkg/observability"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)

// memoryRepo is a ReservationRepository and ConflictReader over a map.
type memoryRepo struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*domain.Reservation
	versions map[uuid.UUID]int
	locks    int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[uuid.UUID]*domain.Reservation{}, versions: map[uuid.UUID]int{}}
}

func (m *memoryRepo) Create(_ context.Context, r *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[r.ID()] = r
	m.versions[r.ID()] = r.Version()
	return nil
}

func (m *memoryRepo) Update(_ context.Context, r *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[r.ID()] != r.Version() {
		return domain.ErrConcurrentModification
	}
	r.IncrementVersion()
	m.items[r.ID()] = r
	m.versions[r.ID()] = r.Version()
	return nil
}

func (m *memoryRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return r, nil
}

func (m *memoryRepo) LockResources(context.Context, []domain.ResourceKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks++
	return nil
}

func (m *memoryRepo) FindOverlapping(_ context.Context, _ []domain.ResourceKey, _ domain.TimeWindow, _ *uuid.UUID) ([]domain.ConflictCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ConflictCandidate
	for _, r := range m.items {
		if r.IsCancelled() {
			continue
		}
		out = append(out, domain.ConflictCandidate{
			ReservationID: r.ID(),
			Kind:          r.Kind(),
			Title:         r.Title(),
			Window:        r.Window(),
			Resources:     r.Resources(),
		})
	}
	return out, nil
}

type recordingSlots struct {
	synced []uuid.UUID
}

func (s *recordingSlots) SyncSlots(_ context.Context, r *domain.Reservation) error {
	s.synced = append(s.synced, r.ID())
	return nil
}

type recordingEvents struct {
	events []sharedDomain.DomainEvent
}

func (e *recordingEvents) Record(_ context.Context, events []sharedDomain.DomainEvent) error {
	e.events = append(e.events, events...)
	return nil
}

func (e *recordingEvents) routingKeys() []string {
	keys := make([]string, len(e.events))
	for i, ev := range e.events {
		keys[i] = ev.RoutingKey()
	}
	return keys
}

type recordingNotifier struct {
	changes []Change
}

func (n *recordingNotifier) ReservationChanged(_ context.Context, change Change, _ *domain.Reservation) {
	n.changes = append(n.changes, change)
}

type txCounter struct {
	commits, rollbacks int
}

func (u *txCounter) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (u *txCounter) Commit(context.Context) error                       { u.commits++; return nil }
func (u *txCounter) Rollback(context.Context) error                     { u.rollbacks++; return nil }

// stubPricing charges 20/40 by default and 15/35 for client 5.
type stubPricing struct{}

func (stubPricing) ResolveForClient(_ context.Context, clientID, serviceTypeID int64, _ time.Time) (pricingDomain.PriceQuote, error) {
	if serviceTypeID != 3 {
		return pricingDomain.PriceQuote{}, pricingDomain.ErrServiceTypeNotFound
	}
	if clientID == 5 {
		return quote("15", "35", pricingDomain.SourceClientOverride), nil
	}
	return quote("20", "40", pricingDomain.SourceServiceDefault), nil
}

func (stubPricing) ResolveForTechnicalGuest(_ context.Context, serviceTypeID int64) (pricingDomain.PriceQuote, error) {
	if serviceTypeID != 3 {
		return pricingDomain.PriceQuote{}, pricingDomain.ErrServiceTypeNotFound
	}
	return quote("20", "40", pricingDomain.SourceServiceDefault), nil
}

func quote(entry, trainer string, source pricingDomain.PriceSource) pricingDomain.PriceQuote {
	return pricingDomain.PriceQuote{
		EntryFeeBrutto:   decimal.RequireFromString(entry),
		TrainerFeeBrutto: decimal.RequireFromString(trainer),
		Source:           source,
	}
}

type fixture struct {
	repo     *memoryRepo
	slots    *recordingSlots
	events   *recordingEvents
	notifier *recordingNotifier
	uow      *txCounter
	metrics  *observability.InMemoryMetrics
	deps     Deps
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMemoryRepo(),
		slots:    &recordingSlots{},
		events:   &recordingEvents{},
		notifier: &recordingNotifier{},
		uow:      &txCounter{},
		metrics:  observability.NewInMemoryMetrics(),
	}
	f.deps = Deps{
		Reservations: f.repo,
		Slots:        f.slots,
		Detector:     services.NewConflictDetector(f.repo, f.metrics),
		Guests:       services.NewGuestAggregator(stubPricing{}),
		Pricing:      stubPricing{},
		Events:       f.events,
		UoW:          f.uow,
		Notifier:     f.notifier,
		Metrics:      f.metrics,
		Now:          func() time.Time { return fixedNow },
	}
	return f
}

func hours(t *testing.T, day, start, end int) domain.TimeWindow {
	t.Helper()
	w, err := domain.NewTimeWindow(
		time.Date(2025, 1, day, start, 0, 0, 0, time.UTC),
		time.Date(2025, 1, day, end, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return w
}

func int64Ptr(v int64) *int64 { return &v }
