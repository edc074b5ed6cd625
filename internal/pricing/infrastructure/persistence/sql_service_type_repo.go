package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/studiobook/internal/pricing/domain"
	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database"
)

// SQLServiceTypeRepository implements domain.ServiceTypeRepository.
type SQLServiceTypeRepository struct {
	conn database.Connection
}

// NewSQLServiceTypeRepository creates a new repository.
func NewSQLServiceTypeRepository(conn database.Connection) *SQLServiceTypeRepository {
	return &SQLServiceTypeRepository{conn: conn}
}

// FindByID loads a service type, active or not.
func (r *SQLServiceTypeRepository) FindByID(ctx context.Context, id int64) (*domain.ServiceType, error) {
	var st domain.ServiceType
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, `
		SELECT id, name, CAST(entry_fee AS TEXT), CAST(trainer_fee AS TEXT), active
		FROM service_types
		WHERE id = ?`, id,
	).Scan(&st.ID, &st.Name, &st.EntryFeeBrutto, &st.TrainerFeeBrutto, &st.Active)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrServiceTypeNotFound
		}
		return nil, fmt.Errorf("find service type %d: %w", id, err)
	}
	return &st, nil
}

// Save inserts or updates a service type.
func (r *SQLServiceTypeRepository) Save(ctx context.Context, st *domain.ServiceType) error {
	if err := st.Validate(); err != nil {
		return err
	}
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO service_types (id, name, entry_fee, trainer_fee, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			entry_fee = excluded.entry_fee,
			trainer_fee = excluded.trainer_fee,
			active = excluded.active`,
		st.ID, st.Name, st.EntryFeeBrutto.String(), st.TrainerFeeBrutto.String(), st.Active,
	)
	if err != nil {
		return fmt.Errorf("save service type %d: %w", st.ID, err)
	}
	return nil
}
