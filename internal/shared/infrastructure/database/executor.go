package database

import (
	"context"
	"database/sql"
)

// Row abstracts pgx.Row and *sql.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows abstracts pgx.Rows and *sql.Rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result reports the outcome of Exec.
type Result interface {
	RowsAffected() (int64, error)
}

// Executor runs queries written with ? placeholders. Implementations rebind
// them for their driver.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Driver() Driver
}

// Transaction is an Executor that can be finished.
type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is a pool that can start transactions.
type Connection interface {
	Executor
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
	Ping(ctx context.Context) error
}

// SQLQuerier is the common surface of *sql.DB and *sql.Tx.
type SQLQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLExecutor adapts a database/sql handle to Executor. It is shared by the
// SQLite connection and the lib/pq replica.
type SQLExecutor struct {
	q      SQLQuerier
	driver Driver
}

// NewSQLExecutor wraps q, rebinding placeholders for driver.
func NewSQLExecutor(q SQLQuerier, driver Driver) SQLExecutor {
	return SQLExecutor{q: q, driver: driver}
}

// Driver returns the driver placeholders are rebound for.
func (e SQLExecutor) Driver() Driver {
	return e.driver
}

// Exec executes a statement that returns no rows.
func (e SQLExecutor) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	return e.q.ExecContext(ctx, Rebind(e.driver, query), args...)
}

// QueryRow executes a query that returns at most one row.
func (e SQLExecutor) QueryRow(ctx context.Context, query string, args ...any) Row {
	return e.q.QueryRowContext(ctx, Rebind(e.driver, query), args...)
}

// Query executes a query that returns rows.
func (e SQLExecutor) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := e.q.QueryContext(ctx, Rebind(e.driver, query), args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
