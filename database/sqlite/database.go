// Package sqlite stores proof records in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/proofs"

	_ "modernc.org/sqlite" // SQLite driver
)

// DB provides SQLite database operations.
type DB struct {
	db     *sql.DB
	tables hubstore.Tables
}

// Connect opens a SQLite database. Tables should be validated before calling Connect.
func Connect(_ context.Context, dsn string, tables hubstore.Tables) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	return &DB{db: db, tables: tables}, nil
}

// Ping verifies the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate creates the required tables.
func (d *DB) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.db, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches the expected structure.
func (d *DB) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.tables)
}

// GetRepo returns the proof repo.
func (d *DB) GetRepo() proofs.Repo {
	return &repo{db: d.db, tableName: quoteIdentifier(d.tables.Proofs)}
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}
