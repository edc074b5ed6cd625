package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	pricingDomain "github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database/postgres"
	"github.com/google/uuid"
)

// SQLReservationRepository implements domain.ReservationRepository on either
// driver. Resources and guest allocations are child rows; updates touch only
// the rows that changed.
type SQLReservationRepository struct {
	conn database.Connection
}

// NewSQLReservationRepository creates a new repository.
func NewSQLReservationRepository(conn database.Connection) *SQLReservationRepository {
	return &SQLReservationRepository{conn: conn}
}

// Create inserts a new reservation with its child rows.
func (r *SQLReservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	pricing := res.Pricing()
	window := res.Window()

	_, err := exec.Exec(ctx, `
		INSERT INTO reservations (id, kind, title, service_type_id, main_client_id,
			entry_fee, trainer_fee, price_source, series_id, start_at, end_at, cancelled_at,
			version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID(), string(res.Kind()), res.Title(), res.ServiceTypeID(), res.MainClientID(),
		pricing.EntryFeeBrutto.String(), pricing.TrainerFeeBrutto.String(), string(pricing.Source),
		res.SeriesID(), database.FormatTime(window.Start), database.FormatTime(window.End),
		database.NullableTime(res.CancelledAt()), res.Version(),
		database.FormatTime(res.CreatedAt()), database.FormatTime(res.UpdatedAt()),
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return r.writeChildren(ctx, exec, res)
}

// Update saves res if its stored version still matches, then bumps the
// in-memory version.
func (r *SQLReservationRepository) Update(ctx context.Context, res *domain.Reservation) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	pricing := res.Pricing()
	window := res.Window()

	result, err := exec.Exec(ctx, `
		UPDATE reservations
		SET title = ?, main_client_id = ?, entry_fee = ?, trainer_fee = ?, price_source = ?,
			start_at = ?, end_at = ?, cancelled_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		res.Title(), res.MainClientID(),
		pricing.EntryFeeBrutto.String(), pricing.TrainerFeeBrutto.String(), string(pricing.Source),
		database.FormatTime(window.Start), database.FormatTime(window.End),
		database.NullableTime(res.CancelledAt()), database.FormatTime(res.UpdatedAt()),
		res.ID(), res.Version(),
	)
	if err != nil {
		return fmt.Errorf("update reservation %s: %w", res.ID(), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrConcurrentModification
	}
	res.IncrementVersion()

	if err := r.syncResources(ctx, exec, res); err != nil {
		return err
	}
	return r.syncGuests(ctx, exec, res)
}

func (r *SQLReservationRepository) writeChildren(ctx context.Context, exec database.Executor, res *domain.Reservation) error {
	for _, key := range res.Resources() {
		if err := insertResource(ctx, exec, res.ID(), key); err != nil {
			return err
		}
	}
	for _, alloc := range res.Guests() {
		if err := insertGuest(ctx, exec, res.ID(), alloc); err != nil {
			return err
		}
	}
	return nil
}

// syncResources inserts the keys res gained and deletes the ones it lost.
func (r *SQLReservationRepository) syncResources(ctx context.Context, exec database.Executor, res *domain.Reservation) error {
	stored, err := loadResources(ctx, exec, res.ID())
	if err != nil {
		return err
	}
	have := make(map[domain.ResourceKey]bool, len(stored))
	for _, key := range stored {
		have[key] = true
	}
	want := make(map[domain.ResourceKey]bool)
	for _, key := range res.Resources() {
		want[key] = true
		if !have[key] {
			if err := insertResource(ctx, exec, res.ID(), key); err != nil {
				return err
			}
		}
	}
	for _, key := range stored {
		if want[key] {
			continue
		}
		if _, err := exec.Exec(ctx, `
			DELETE FROM reservation_resources
			WHERE reservation_id = ? AND resource_kind = ? AND resource_id = ?`,
			res.ID(), string(key.Kind), key.ID); err != nil {
			return fmt.Errorf("delete reservation resource %s: %w", key, err)
		}
	}
	return nil
}

// syncGuests applies the three-way diff between the stored allocations and
// res. Retained rows keep their price snapshot; only quantity changes.
func (r *SQLReservationRepository) syncGuests(ctx context.Context, exec database.Executor, res *domain.Reservation) error {
	stored, err := r.loadGuests(ctx, exec, res.ID())
	if err != nil {
		return err
	}
	diff := domain.DiffAllocations(stored, res.Guests())

	for _, alloc := range diff.ToAdd {
		if err := insertGuest(ctx, exec, res.ID(), alloc); err != nil {
			return err
		}
	}
	for _, change := range diff.ToUpdateQuantity {
		if _, err := exec.Exec(ctx, `
			UPDATE guest_allocations SET quantity = ?
			WHERE reservation_id = ? AND guest_key = ?`,
			change.To, res.ID(), string(change.Key)); err != nil {
			return fmt.Errorf("update guest allocation %s: %w", change.Key, err)
		}
	}
	for _, alloc := range diff.ToRemove {
		if _, err := exec.Exec(ctx, `
			DELETE FROM guest_allocations WHERE reservation_id = ? AND guest_key = ?`,
			res.ID(), string(alloc.Key)); err != nil {
			return fmt.Errorf("delete guest allocation %s: %w", alloc.Key, err)
		}
	}
	return nil
}

func insertResource(ctx context.Context, exec database.Executor, id uuid.UUID, key domain.ResourceKey) error {
	if _, err := exec.Exec(ctx, `
		INSERT INTO reservation_resources (reservation_id, resource_kind, resource_id)
		VALUES (?, ?, ?)`, id, string(key.Kind), key.ID); err != nil {
		return fmt.Errorf("insert reservation resource %s: %w", key, err)
	}
	return nil
}

func insertGuest(ctx context.Context, exec database.Executor, id uuid.UUID, alloc domain.GuestAllocation) error {
	var clientID *int64
	if cid, ok := alloc.Key.ClientID(); ok {
		clientID = &cid
	}
	if _, err := exec.Exec(ctx, `
		INSERT INTO guest_allocations (reservation_id, guest_key, client_id, quantity,
			entry_fee, trainer_fee, price_source)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(alloc.Key), clientID, alloc.Quantity,
		alloc.Pricing.EntryFeeBrutto.String(), alloc.Pricing.TrainerFeeBrutto.String(),
		string(alloc.Pricing.Source),
	); err != nil {
		return fmt.Errorf("insert guest allocation %s: %w", alloc.Key, err)
	}
	return nil
}

// FindByID loads a reservation with its resources and guest allocations.
func (r *SQLReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)

	var (
		s            domain.ReservationState
		kind, source string
		mainClientID sql.NullInt64
		seriesID     uuid.NullUUID
		start, end   database.Time
		cancelledAt  database.Time
		createdAt    database.Time
		updatedAt    database.Time
	)
	err := exec.QueryRow(ctx, `
		SELECT id, kind, title, service_type_id, main_client_id,
			CAST(entry_fee AS TEXT), CAST(trainer_fee AS TEXT), price_source, series_id,
			start_at, end_at, cancelled_at, version, created_at, updated_at
		FROM reservations
		WHERE id = ?`, id,
	).Scan(&s.ID, &kind, &s.Title, &s.ServiceTypeID, &mainClientID,
		&s.Pricing.EntryFeeBrutto, &s.Pricing.TrainerFeeBrutto, &source, &seriesID,
		&start, &end, &cancelledAt, &s.Version, &createdAt, &updatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, fmt.Errorf("load reservation %s: %w", id, err)
	}

	s.Kind = domain.ReservationKind(kind)
	s.Pricing.Source = pricingDomain.PriceSource(source)
	if mainClientID.Valid {
		v := mainClientID.Int64
		s.MainClientID = &v
	}
	if seriesID.Valid {
		v := seriesID.UUID
		s.SeriesID = &v
	}
	s.Window = domain.TimeWindow{Start: start.Time, End: end.Time}
	s.CancelledAt = cancelledAt.Ptr()
	s.CreatedAt = createdAt.Time
	s.UpdatedAt = updatedAt.Time

	if s.Resources, err = loadResources(ctx, exec, id); err != nil {
		return nil, err
	}
	if s.Guests, err = r.loadGuests(ctx, exec, id); err != nil {
		return nil, err
	}
	return domain.RehydrateReservation(s), nil
}

func loadResources(ctx context.Context, exec database.Executor, id uuid.UUID) ([]domain.ResourceKey, error) {
	rows, err := exec.Query(ctx, `
		SELECT resource_kind, resource_id
		FROM reservation_resources
		WHERE reservation_id = ?
		ORDER BY resource_kind, resource_id`, id)
	if err != nil {
		return nil, fmt.Errorf("query reservation resources: %w", err)
	}
	defer rows.Close()

	var keys []domain.ResourceKey
	for rows.Next() {
		var (
			kind string
			key  domain.ResourceKey
		)
		if err := rows.Scan(&kind, &key.ID); err != nil {
			return nil, err
		}
		key.Kind = domain.ResourceKind(kind)
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *SQLReservationRepository) loadGuests(ctx context.Context, exec database.Executor, id uuid.UUID) (map[domain.GuestKey]domain.GuestAllocation, error) {
	rows, err := exec.Query(ctx, `
		SELECT guest_key, quantity, CAST(entry_fee AS TEXT), CAST(trainer_fee AS TEXT), price_source
		FROM guest_allocations
		WHERE reservation_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query guest allocations: %w", err)
	}
	defer rows.Close()

	guests := map[domain.GuestKey]domain.GuestAllocation{}
	for rows.Next() {
		var (
			key, source string
			alloc       domain.GuestAllocation
		)
		if err := rows.Scan(&key, &alloc.Quantity, &alloc.Pricing.EntryFeeBrutto,
			&alloc.Pricing.TrainerFeeBrutto, &source); err != nil {
			return nil, err
		}
		alloc.Key = domain.GuestKey(key)
		alloc.Pricing.Source = pricingDomain.PriceSource(source)
		guests[alloc.Key] = alloc
	}
	return guests, rows.Err()
}

// LockResources takes advisory locks on the keys for the current
// transaction. It is a no-op on SQLite, whose writer lock already
// serialises transactions.
func (r *SQLReservationRepository) LockResources(ctx context.Context, keys []domain.ResourceKey) error {
	return postgres.LockNames(ctx, database.ExecutorFromContext(ctx, r.conn), domain.LockNames(keys))
}

// FindSeries returns the occurrences of a recurring series ordered by start.
func (r *SQLReservationRepository) FindSeries(ctx context.Context, seriesID uuid.UUID) ([]*domain.Reservation, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, `
		SELECT id FROM reservations WHERE series_id = ? ORDER BY start_at`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query series %s: %w", seriesID, err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	out := make([]*domain.Reservation, 0, len(ids))
	for _, id := range ids {
		res, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// SQLConflictReader implements domain.ConflictReader. It only reads, so it
// may be built on a replica.
type SQLConflictReader struct {
	conn database.Connection
}

// NewSQLConflictReader creates a reader over conn.
func NewSQLConflictReader(conn database.Connection) *SQLConflictReader {
	return &SQLConflictReader{conn: conn}
}

// FindOverlapping returns candidates with all of their resources so the
// caller can compute the shared set.
func (r *SQLConflictReader) FindOverlapping(ctx context.Context, keys []domain.ResourceKey, window domain.TimeWindow, excludeID *uuid.UUID) ([]domain.ConflictCandidate, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	query := `
		SELECT r.id, r.kind, r.title, r.start_at, r.end_at, rr.resource_kind, rr.resource_id
		FROM reservations r
		JOIN reservation_resources rr ON rr.reservation_id = r.id
		WHERE r.cancelled_at IS NULL
			AND r.start_at < ? AND r.end_at > ?`
	args := []any{database.FormatTime(window.End), database.FormatTime(window.Start)}
	if excludeID != nil {
		query += ` AND r.id <> ?`
		args = append(args, *excludeID)
	}
	query += ` AND r.id IN (SELECT m.reservation_id FROM reservation_resources m WHERE `
	for i, key := range keys {
		if i > 0 {
			query += ` OR `
		}
		query += `(m.resource_kind = ? AND m.resource_id = ?)`
		args = append(args, string(key.Kind), key.ID)
	}
	query += `)
		ORDER BY r.start_at, r.id, rr.resource_kind, rr.resource_id`

	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query overlapping reservations: %w", err)
	}
	defer rows.Close()

	var (
		out   []domain.ConflictCandidate
		index = map[uuid.UUID]int{}
	)
	for rows.Next() {
		var (
			id           uuid.UUID
			kind, title  string
			start, end   database.Time
			resourceKind string
			resourceID   int64
		)
		if err := rows.Scan(&id, &kind, &title, &start, &end, &resourceKind, &resourceID); err != nil {
			return nil, err
		}
		i, seen := index[id]
		if !seen {
			i = len(out)
			index[id] = i
			out = append(out, domain.ConflictCandidate{
				ReservationID: id,
				Kind:          domain.ReservationKind(kind),
				Title:         title,
				Window:        domain.TimeWindow{Start: start.Time, End: end.Time},
			})
		}
		out[i].Resources = append(out[i].Resources, domain.ResourceKey{
			Kind: domain.ResourceKind(resourceKind),
			ID:   resourceID,
		})
	}
	return out, rows.Err()
}
