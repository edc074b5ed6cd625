// Package migrations applies the embedded schema for the active driver.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/shared/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL
)`

// Pending lists the migration files not yet applied, in order.
func Pending(ctx context.Context, conn database.Connection) ([]string, error) {
	all, err := list(conn.Driver())
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, createVersionTable); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var pending []string
	for _, name := range all {
		var n int
		if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, name).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
		}
		if n == 0 {
			pending = append(pending, name)
		}
	}
	return pending, nil
}

// Run applies every pending migration, each in its own transaction, and
// returns the names applied.
func Run(ctx context.Context, conn database.Connection) ([]string, error) {
	pending, err := Pending(ctx, conn)
	if err != nil {
		return nil, err
	}

	dir := dirFor(conn.Driver())
	for _, name := range pending {
		body, err := fs.ReadFile(files, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if err := apply(ctx, conn, name, string(body)); err != nil {
			return nil, err
		}
	}
	return pending, nil
}

func apply(ctx context.Context, conn database.Connection, name, body string) error {
	tx, err := conn.BeginTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, body); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to execute migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		name, database.FormatTime(time.Now())); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to record migration %s: %w", name, err)
	}
	return tx.Commit(ctx)
}

func list(driver database.Driver) ([]string, error) {
	entries, err := files.ReadDir(dirFor(driver))
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func dirFor(driver database.Driver) string {
	if driver == database.DriverPostgres {
		return "postgres"
	}
	return "sqlite"
}
