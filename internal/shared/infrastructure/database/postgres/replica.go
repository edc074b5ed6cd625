package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver

	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database"
)

// ErrReadOnly is returned when a write is attempted through the replica.
var ErrReadOnly = errors.New("replica connection is read-only")

// Replica is a read-only database/sql connection to a PostgreSQL standby,
// used for conflict previews that must not load the primary.
type Replica struct {
	database.SQLExecutor
	db *sql.DB
}

// NewReplica opens a lib/pq pool against url.
func NewReplica(ctx context.Context, url string, maxConns int) (*Replica, error) {
	if url == "" {
		return nil, fmt.Errorf("replica URL is required")
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open replica: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping replica: %w", err)
	}

	return &Replica{
		SQLExecutor: database.NewSQLExecutor(db, database.DriverPostgres),
		db:          db,
	}, nil
}

// Close closes the pool.
func (r *Replica) Close() error {
	return r.db.Close()
}

// Ping verifies the replica is reachable.
func (r *Replica) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// BeginTx is not supported on the replica.
func (r *Replica) BeginTx(context.Context) (database.Transaction, error) {
	return nil, ErrReadOnly
}
