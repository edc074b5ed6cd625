package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database"
)

// SQLPriceCodeRepository implements domain.PriceCodeRepository.
type SQLPriceCodeRepository struct {
	conn database.Connection
}

// NewSQLPriceCodeRepository creates a new repository.
func NewSQLPriceCodeRepository(conn database.Connection) *SQLPriceCodeRepository {
	return &SQLPriceCodeRepository{conn: conn}
}

// FindForClient returns every code for the pair ordered by id.
func (r *SQLPriceCodeRepository) FindForClient(ctx context.Context, clientID, serviceTypeID int64) ([]domain.PriceCode, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, `
		SELECT id, client_id, service_type_id, CAST(entry_fee AS TEXT), CAST(trainer_fee AS TEXT),
		       valid_from, valid_until, active
		FROM price_codes
		WHERE client_id = ? AND service_type_id = ?
		ORDER BY id`, clientID, serviceTypeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query price codes: %w", err)
	}
	defer rows.Close()

	var codes []domain.PriceCode
	for rows.Next() {
		var (
			c          domain.PriceCode
			validFrom  database.Time
			validUntil database.Time
		)
		if err := rows.Scan(&c.ID, &c.ClientID, &c.ServiceTypeID, &c.EntryFeeBrutto, &c.TrainerFeeBrutto,
			&validFrom, &validUntil, &c.Active); err != nil {
			return nil, err
		}
		c.ValidFrom = validFrom.Time
		c.ValidUntil = validUntil.Ptr()
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// Save inserts a new code (ID zero) or updates an existing one.
func (r *SQLPriceCodeRepository) Save(ctx context.Context, code *domain.PriceCode) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	if code.ID == 0 {
		err := exec.QueryRow(ctx, `
			INSERT INTO price_codes (client_id, service_type_id, entry_fee, trainer_fee, valid_from, valid_until, active)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id`,
			code.ClientID, code.ServiceTypeID, code.EntryFeeBrutto.String(), code.TrainerFeeBrutto.String(),
			database.FormatTime(code.ValidFrom), database.NullableTime(code.ValidUntil), code.Active,
		).Scan(&code.ID)
		if err != nil {
			return fmt.Errorf("insert price code: %w", err)
		}
		return nil
	}

	_, err := exec.Exec(ctx, `
		UPDATE price_codes
		SET entry_fee = ?, trainer_fee = ?, valid_from = ?, valid_until = ?, active = ?
		WHERE id = ?`,
		code.EntryFeeBrutto.String(), code.TrainerFeeBrutto.String(),
		database.FormatTime(code.ValidFrom), database.NullableTime(code.ValidUntil), code.Active, code.ID,
	)
	if err != nil {
		return fmt.Errorf("update price code %d: %w", code.ID, err)
	}
	return nil
}
