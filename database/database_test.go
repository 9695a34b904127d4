package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/database"
	"github.com/sagarc03/hubstore/proofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(tableName string) database.Config {
	return database.Config{
		Type:   "sqlite",
		DSN:    ":memory:",
		Tables: hubstore.Tables{Proofs: tableName},
	}
}

func setupTestDB(t *testing.T, tableName string) database.Database {
	t.Helper()

	db, err := database.Connect(context.Background(), newTestConfig(tableName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestConnect_SQLite(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t, "test_proofs")
	assert.NoError(t, db.Ping(context.Background()))
}

func TestConnect_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         database.Config
		errContains string
	}{
		{
			name:        "invalid type",
			cfg:         database.Config{Type: "invalid", DSN: "whatever", Tables: hubstore.Tables{Proofs: "p"}},
			errContains: "unsupported database type",
		},
		{
			name:        "empty type",
			cfg:         database.Config{Type: "", DSN: ":memory:", Tables: hubstore.Tables{Proofs: "p"}},
			errContains: "unsupported database type",
		},
		{
			name:        "empty table name",
			cfg:         database.Config{Type: "sqlite", DSN: ":memory:"},
			errContains: "proofs table name cannot be empty",
		},
		{
			name:        "invalid table name",
			cfg:         database.Config{Type: "sqlite", DSN: ":memory:", Tables: hubstore.Tables{Proofs: "drop table;"}},
			errContains: "invalid proofs table name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := database.Connect(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, hubstore.ErrConfig)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestDatabase_Migrate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := setupTestDB(t, "migrate_test")

	require.NoError(t, db.Migrate(ctx))
	assert.NoError(t, db.Migrate(ctx), "migrate should be idempotent")

	_, err := db.GetRepo().List(ctx, proofs.ListQuery{Limit: 1})
	assert.NoError(t, err)
}

func TestDatabase_Validate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := setupTestDB(t, "validate_test")

	assert.Error(t, db.Validate(ctx), "validate should fail without tables")

	require.NoError(t, db.Migrate(ctx))
	assert.NoError(t, db.Validate(ctx), "validate should pass after migration")
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "proofs.db")
	cfg := database.Config{Type: "sqlite", DSN: dsn, Tables: hubstore.Tables{Proofs: "hub_proofs"}}

	_, err := database.Open(ctx, cfg, false)
	assert.Error(t, err, "open without migrate should fail on a fresh database")

	db, err := database.Open(ctx, cfg, true)
	require.NoError(t, err)

	_, inserted, err := db.GetRepo().Upsert(ctx, "addr1", proofs.Proof{Service: "github", Identifier: "a", Valid: true})
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, db.Close())

	reopened, err := database.Open(ctx, cfg, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.GetRepo().Proofs(ctx, "addr1")
	require.NoError(t, err)
	assert.Equal(t, []proofs.Proof{{Service: "github", Identifier: "a", Valid: true}}, got)
}
