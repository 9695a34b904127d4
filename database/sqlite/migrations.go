package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/hubstore"
)

func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

// TableMigration creates and drops one table.
type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

func getTableMigrations(tables hubstore.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.Proofs,
			Up:        createProofsTable(tables.Proofs),
			Down:      dropTable(tables.Proofs),
		},
	}
}

// Migrate runs every Up migration. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB, tables hubstore.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}
	return nil
}

// DropTables runs every Down migration in reverse order.
func DropTables(ctx context.Context, db *sql.DB, tables hubstore.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createProofsTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexList := quoteIdentifier(fmt.Sprintf("idx_%s_list", tableName))

		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT NOT NULL PRIMARY KEY,
				address TEXT NOT NULL,
				service TEXT NOT NULL,
				identifier TEXT NOT NULL,
				valid INTEGER NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (address, service, identifier)
			)
		`, quotedTable)

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		indexSQL := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (created_at, id)`, indexList, quotedTable)
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index list: %w", err)
		}

		return nil
	}
}

func dropTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdentifier(tableName))
		return err
	}
}
