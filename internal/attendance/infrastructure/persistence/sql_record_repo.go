package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/attendance/domain"
	bookingDomain "github.com/felixgeelhaar/studiobook/internal/booking/domain"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const recordColumns = `id, reservation_id, slot_key, guest_key, guest_index, client_id, status,
	checked_in_at, credit_deducted, pass_id, removed_at, created_at, updated_at`

// SQLRecordRepository implements domain.RecordRepository and keeps slots in
// step with reservations as bookingDomain.ParticipantSlots.
type SQLRecordRepository struct {
	conn database.Connection
}

// NewSQLRecordRepository creates a new repository.
func NewSQLRecordRepository(conn database.Connection) *SQLRecordRepository {
	return &SQLRecordRepository{conn: conn}
}

// FindByID loads one record.
func (r *SQLRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+recordColumns+` FROM attendance_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("load attendance record %s: %w", id, err)
	}
	return rec, nil
}

// FindBySlot loads the record of one participant slot.
func (r *SQLRecordRepository) FindBySlot(ctx context.Context, reservationID uuid.UUID, slotKey string) (*domain.Record, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+recordColumns+` FROM attendance_records WHERE reservation_id = ? AND slot_key = ?`,
		reservationID, slotKey)
	rec, err := scanRecord(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrRegistrationNotFound, reservationID, slotKey)
		}
		return nil, fmt.Errorf("load attendance slot %s: %w", slotKey, err)
	}
	return rec, nil
}

// ListForReservation returns every record of a reservation, removed slots
// included, ordered by slot key.
func (r *SQLRecordRepository) ListForReservation(ctx context.Context, reservationID uuid.UUID) ([]*domain.Record, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx,
		`SELECT `+recordColumns+` FROM attendance_records WHERE reservation_id = ? ORDER BY slot_key`,
		reservationID)
	if err != nil {
		return nil, fmt.Errorf("query attendance records: %w", err)
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveStatus writes the status fields of an existing record.
func (r *SQLRecordRepository) SaveStatus(ctx context.Context, rec *domain.Record) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		UPDATE attendance_records
		SET status = ?, checked_in_at = ?, updated_at = ?
		WHERE id = ?`,
		string(rec.Status()), database.NullableTime(rec.CheckedInAt()), database.FormatTime(rec.UpdatedAt()), rec.ID(),
	)
	if err != nil {
		return fmt.Errorf("save attendance status %s: %w", rec.ID(), err)
	}
	return nil
}

// ClaimDeduction flips the credit flag if nobody has yet and the slot is
// still an attended, present participation. The status is re-read here
// because it may have been corrected since it was written.
func (r *SQLRecordRepository) ClaimDeduction(ctx context.Context, recordID, passID uuid.UUID) (bool, error) {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		UPDATE attendance_records
		SET credit_deducted = TRUE, pass_id = ?, updated_at = ?
		WHERE id = ? AND credit_deducted = FALSE AND status = ? AND removed_at IS NULL`,
		passID, database.FormatTime(time.Now()), recordID, string(domain.StatusAttended),
	)
	if err != nil {
		return false, fmt.Errorf("claim credit deduction %s: %w", recordID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SyncSlots creates a record for every participant slot of res, revives
// slots that come back, and marks slots that disappeared as removed.
// Records are never deleted so attendance history survives guest edits.
func (r *SQLRecordRepository) SyncSlots(ctx context.Context, res *bookingDomain.Reservation) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	now := database.FormatTime(time.Now())

	wanted := map[string]bool{}
	for _, slot := range res.ParticipantSlots() {
		key := slot.SlotKey()
		wanted[key] = true

		clientID, hasClient := slot.ClientID(res.MainClientID())
		var clientArg *int64
		if hasClient {
			clientArg = &clientID
		}
		var guestKey *string
		if slot.Kind == bookingDomain.ParticipantAdditionalGuest {
			gk := string(slot.GuestKey)
			guestKey = &gk
		}

		if _, err := exec.Exec(ctx, `
			INSERT INTO attendance_records (id, reservation_id, slot_key, guest_key, guest_index, client_id,
				status, credit_deducted, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, FALSE, ?, ?)
			ON CONFLICT (reservation_id, slot_key) DO UPDATE
			SET removed_at = NULL, client_id = excluded.client_id, updated_at = excluded.updated_at`,
			uuid.New(), res.ID(), key, guestKey, slot.GuestIndex, clientArg,
			string(domain.StatusUnset), now, now,
		); err != nil {
			return fmt.Errorf("upsert attendance slot %s: %w", key, err)
		}
	}

	rows, err := exec.Query(ctx, `
		SELECT slot_key FROM attendance_records
		WHERE reservation_id = ? AND removed_at IS NULL`, res.ID())
	if err != nil {
		return fmt.Errorf("query attendance slots: %w", err)
	}
	var stale []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			_ = rows.Close()
			return err
		}
		if !wanted[key] {
			stale = append(stale, key)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, key := range stale {
		if _, err := exec.Exec(ctx, `
			UPDATE attendance_records SET removed_at = ?, updated_at = ?
			WHERE reservation_id = ? AND slot_key = ?`,
			now, now, res.ID(), key,
		); err != nil {
			return fmt.Errorf("remove attendance slot %s: %w", key, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.Record, error) {
	var (
		s             domain.RecordState
		slotKey       string
		guestKey      sql.NullString
		guestIndex    int
		clientID      sql.NullInt64
		status        string
		checkedInAt   database.Time
		passID        uuid.NullUUID
		removedAt     database.Time
		createdAt     database.Time
		updatedAt     database.Time
		reservationID uuid.UUID
	)
	if err := row.Scan(&s.ID, &reservationID, &slotKey, &guestKey, &guestIndex, &clientID, &status,
		&checkedInAt, &s.CreditDeducted, &passID, &removedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	slot, err := parseSlot(reservationID, slotKey, guestKey, guestIndex)
	if err != nil {
		return nil, err
	}
	s.Slot = slot
	if clientID.Valid {
		v := clientID.Int64
		s.ClientID = &v
	}
	if passID.Valid {
		v := passID.UUID
		s.PassID = &v
	}
	s.Status = domain.Status(status)
	s.CheckedInAt = checkedInAt.Ptr()
	s.RemovedAt = removedAt.Ptr()
	s.CreatedAt = createdAt.Time
	s.UpdatedAt = updatedAt.Time
	return domain.RehydrateRecord(s), nil
}

func parseSlot(reservationID uuid.UUID, slotKey string, guestKey sql.NullString, guestIndex int) (bookingDomain.ParticipantKey, error) {
	if slotKey == bookingDomain.MainSlotKey {
		return bookingDomain.MainClientSlot(reservationID), nil
	}
	if !guestKey.Valid {
		key, index, ok := strings.Cut(slotKey, "#")
		if !ok {
			return bookingDomain.ParticipantKey{}, fmt.Errorf("malformed slot key %q", slotKey)
		}
		n, err := strconv.Atoi(index)
		if err != nil {
			return bookingDomain.ParticipantKey{}, fmt.Errorf("malformed slot key %q: %w", slotKey, err)
		}
		return bookingDomain.GuestSlot(reservationID, bookingDomain.GuestKey(key), n), nil
	}
	return bookingDomain.GuestSlot(reservationID, bookingDomain.GuestKey(guestKey.String), guestIndex), nil
}
