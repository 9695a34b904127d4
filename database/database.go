package database

import (
	"context"
	"fmt"

	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/database/postgres"
	"github.com/sagarc03/hubstore/database/sqlite"
	"github.com/sagarc03/hubstore/proofs"
)

// Config holds the configuration for connecting to the proof store.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN    string          `mapstructure:"dsn" validate:"required"`
	Tables hubstore.Tables `mapstructure:"tables"`
	// AutoMigrate creates missing tables when the hub starts.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// Database is an open proof store.
type Database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	GetRepo() proofs.Repo
	Close() error
}

// Connect opens the configured backend. It does not migrate; call Migrate
// or Validate as the deployment requires.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	if err := cfg.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect database: %w: %w", hubstore.ErrConfig, err)
	}

	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN, cfg.Tables)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("connect database: %w: unsupported database type: %q", hubstore.ErrConfig, cfg.Type)
	}
}

// Open connects, migrates when migrate is set, and validates the schema.
// On error the connection is closed.
func Open(ctx context.Context, cfg Config, migrate bool) (Database, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if migrate {
		if err = db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate %s: %w", cfg.Type, err)
		}
	}

	if err = db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate %s schema: %w", cfg.Type, err)
	}

	return db, nil
}
