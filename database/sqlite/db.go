package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

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
	{"id", column{"text", false}},
	{"address", column{"text", false}},
	{"service", column{"text", false}},
	{"identifier", column{"text", false}},
	{"valid", column{"integer", false}},
	{"created_at", column{"text", false}},
	{"updated_at", column{"text", false}},
}

// proofKey is the unique key Upsert conflicts on.
var proofKey = []string{"address", "service", "identifier"}

// ValidateSchema checks that the proof table has the columns and unique key
// the repository depends on.
func ValidateSchema(ctx context.Context, db *sql.DB, tables hubstore.Tables) error {
	table := tables.Proofs
	if !hubstore.IsValidTableName(table) {
		return fmt.Errorf("validate schema: invalid table name: %s", table)
	}

	actual, err := readColumns(ctx, db, table)
	if err != nil {
		return fmt.Errorf("validate schema %s: %w", table, err)
	}
	// PRAGMA table_info yields no rows for a missing table.
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
		keyed, err := hasUniqueKey(ctx, db, table, proofKey)
		if err != nil {
			return fmt.Errorf("validate schema %s: %w", table, err)
		}
		if !keyed {
			problems = append(problems, "missing unique key ("+strings.Join(proofKey, ", ")+")")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("validate schema %s: %w:\n  %s", table, hubstore.ErrConfig, strings.Join(problems, "\n  "))
	}
	return nil
}

func readColumns(ctx context.Context, db *sql.DB, table string) (map[string]column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]column)
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, dataType   string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[name] = column{dataType: strings.ToLower(dataType), nullable: notNull == 0}
	}
	return cols, rows.Err()
}

// hasUniqueKey reports whether table has a unique index over exactly key, in order.
func hasUniqueKey(ctx context.Context, db *sql.DB, table string, key []string) (bool, error) {
	indexes, err := uniqueIndexes(ctx, db, table)
	if err != nil {
		return false, err
	}

	// Index queries run after the list is closed so a single connection suffices.
	for _, index := range indexes {
		cols, err := indexColumns(ctx, db, index)
		if err != nil {
			return false, err
		}
		if slices.Equal(cols, key) {
			return true, nil
		}
	}
	return false, nil
}

func uniqueIndexes(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA index_list(%s)`, quoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("query indexes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var (
			seq, unique, partial int
			name, origin         string
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		if unique == 1 && partial == 0 {
			names = append(names, name)
		}
	}
	return names, rows.Err()
}

func indexColumns(ctx context.Context, db *sql.DB, index string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA index_info(%s)`, quoteIdentifier(index)))
	if err != nil {
		return nil, fmt.Errorf("query index %s: %w", index, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var (
			seqno, cid int
			name       sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("scan index column: %w", err)
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}
