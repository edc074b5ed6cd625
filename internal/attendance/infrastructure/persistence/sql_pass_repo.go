package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/attendance/domain"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

const passColumns = `id, client_id, service_type_id, total_credits, remaining_credits,
	valid_from, valid_until, active, created_at`

// SQLPassRepository implements domain.PassRepository.
type SQLPassRepository struct {
	conn database.Connection
}

// NewSQLPassRepository creates a new repository.
func NewSQLPassRepository(conn database.Connection) *SQLPassRepository {
	return &SQLPassRepository{conn: conn}
}

// FindByID loads one pass.
func (r *SQLPassRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Pass, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+passColumns+` FROM passes WHERE id = ?`, id)
	p, err := scanPass(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrPassNotFound
		}
		return nil, fmt.Errorf("load pass %s: %w", id, err)
	}
	return &p, nil
}

// FindForClient returns every pass of a client.
func (r *SQLPassRepository) FindForClient(ctx context.Context, clientID int64) ([]domain.Pass, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx,
		`SELECT `+passColumns+` FROM passes WHERE client_id = ? ORDER BY created_at`, clientID)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	var out []domain.Pass
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Save inserts or replaces a pass.
func (r *SQLPassRepository) Save(ctx context.Context, p *domain.Pass) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO passes (`+passColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET service_type_id = excluded.service_type_id, total_credits = excluded.total_credits,
			remaining_credits = excluded.remaining_credits, valid_from = excluded.valid_from,
			valid_until = excluded.valid_until, active = excluded.active`,
		p.ID, p.ClientID, p.ServiceTypeID, p.TotalCredits, p.RemainingCredits,
		database.FormatTime(p.ValidFrom), database.NullableTime(p.ValidUntil), p.Active,
		database.FormatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save pass %s: %w", p.ID, err)
	}
	return nil
}

// Decrement is the compare-and-decrement that keeps concurrent check-ins
// from overspending a pass.
func (r *SQLPassRepository) Decrement(ctx context.Context, passID uuid.UUID, credits int) (bool, error) {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		UPDATE passes
		SET remaining_credits = remaining_credits - ?
		WHERE id = ? AND active = TRUE AND remaining_credits >= ?`,
		credits, passID, credits,
	)
	if err != nil {
		return false, fmt.Errorf("decrement pass %s: %w", passID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanPass(row scanner) (domain.Pass, error) {
	var (
		p             domain.Pass
		serviceTypeID sql.NullInt64
		validFrom     database.Time
		validUntil    database.Time
		createdAt     database.Time
	)
	if err := row.Scan(&p.ID, &p.ClientID, &serviceTypeID, &p.TotalCredits, &p.RemainingCredits,
		&validFrom, &validUntil, &p.Active, &createdAt); err != nil {
		return domain.Pass{}, err
	}
	if serviceTypeID.Valid {
		v := serviceTypeID.Int64
		p.ServiceTypeID = &v
	}
	p.ValidFrom = validFrom.Time
	p.ValidUntil = validUntil.Ptr()
	p.CreatedAt = createdAt.Time
	return p, nil
}
