package postgres

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/hubstore"
)

type column struct {
	dataType string
	nullable bool
}

// proofColumns is the column set Migrate creates, in table order.
var proofColumns = []struct {
	name string
	column
}{
	{"id", column{"uuid", false}},
	{"address", column{"text", false}},
	{"service", column{"text", false}},
	{"identifier", column{"text", false}},
	{"valid", column{"boolean", false}},
	{"created_at", column{"timestamp with time zone", false}},
	{"updated_at", column{"timestamp with time zone", false}},
}

// proofKey is the unique key Upsert conflicts on.
var proofKey = []string{"address", "service", "identifier"}

// ValidateSchema checks that the proof table in the public schema has the
// columns and unique key the repository depends on.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables hubstore.Tables) error {
	table := tables.Proofs
	if !hubstore.IsValidTableName(table) {
		return fmt.Errorf("validate schema: invalid table name: %s", table)
	}

	actual, err := readColumns(ctx, pool, table)
	if err != nil {
		return fmt.Errorf("validate schema %s: %w", table, err)
	}
	if len(actual) == 0 {
		return fmt.Errorf("validate schema: table %s does not exist", table)
	}

	var missing, problems []string
	for _, want := range proofColumns {
		got, ok := actual[want.name]
		switch {
		case !ok:
			missing = append(missing, want.name)
		case got.dataType != want.dataType:
			problems = append(problems, fmt.Sprintf("%s: expected %s, got %s", want.name, want.dataType, got.dataType))
		case got.nullable != want.nullable:
			problems = append(problems, fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", want.name, want.nullable, got.nullable))
		}
	}
	if len(missing) > 0 {
		problems = append([]string{"missing columns: " + strings.Join(missing, ", ")}, problems...)
	}

	if len(missing) == 0 {
		keys, err := uniqueKeys(ctx, pool, table)
		if err != nil {
			return fmt.Errorf("validate schema %s: %w", table, err)
		}
		if !slices.ContainsFunc(keys, func(k []string) bool { return slices.Equal(k, proofKey) }) {
			problems = append(problems, "missing unique key ("+strings.Join(proofKey, ", ")+")")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("validate schema %s: %w:\n  %s", table, hubstore.ErrConfig, strings.Join(problems, "\n  "))
	}
	return nil
}

func readColumns(ctx context.Context, pool *pgxpool.Pool, table string) (map[string]column, error) {
	rows, err := pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
	`, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]column)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[name] = column{dataType: strings.ToLower(dataType), nullable: nullable == "YES"}
	}
	return cols, rows.Err()
}

// uniqueKeys returns the column lists of every non-partial unique index on table.
func uniqueKeys(ctx context.Context, pool *pgxpool.Pool, table string) ([][]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT array_agg(a.attname::text ORDER BY k.ord)
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		CROSS JOIN LATERAL unnest(i.indkey) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
		WHERE n.nspname = 'public' AND c.relname = $1
			AND i.indisunique AND i.indpred IS NULL
		GROUP BY i.indexrelid
	`, table)
	if err != nil {
		return nil, fmt.Errorf("query unique keys: %w", err)
	}
	defer rows.Close()

	var keys [][]string
	for rows.Next() {
		var cols []string
		if err := rows.Scan(&cols); err != nil {
			return nil, fmt.Errorf("scan unique key: %w", err)
		}
		keys = append(keys, cols)
	}
	return keys, rows.Err()
}
