package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/hubstore"
)

// Migrate creates the required tables. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables hubstore.Tables) error {
	if err := createProofsTable(ctx, pool, tables.Proofs); err != nil {
		return fmt.Errorf("migrate up %s: %w", tables.Proofs, err)
	}
	return nil
}

// DropTables drops every table Migrate creates.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables hubstore.Tables) error {
	quotedTable := pgx.Identifier{tables.Proofs}.Sanitize()
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+quotedTable); err != nil {
		return fmt.Errorf("migrate down %s: %w", tables.Proofs, err)
	}
	return nil
}

func createProofsTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	indexList := pgx.Identifier{fmt.Sprintf("idx_%s_list", tableName)}.Sanitize()
	uniqueProof := pgx.Identifier{fmt.Sprintf("uq_%s_proof", tableName)}.Sanitize()

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			address TEXT NOT NULL,
			service TEXT NOT NULL,
			identifier TEXT NOT NULL,
			valid BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT %s UNIQUE (address, service, identifier)
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (created_at, id);
	`,
		quotedTable, uniqueProof,
		indexList, quotedTable,
	)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create proofs table: %w", err)
	}
	return nil
}
