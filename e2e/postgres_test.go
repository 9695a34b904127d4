package e2e_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	pgOnce      sync.Once
	pgContainer *pgcontainer.PostgresContainer
	pgDSN       string
	pgErr       error
)

// getSharedPostgresDatabase starts one PostgreSQL container for the whole run
// and returns its DSN. Hubs started against it share the proof table, so
// each test writes under fresh addresses.
func getSharedPostgresDatabase(t *testing.T) string {
	t.Helper()

	pgOnce.Do(func() {
		ctx := context.Background()

		pgContainer, pgErr = pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("hubstore"),
			pgcontainer.WithUsername("hubstore"),
			pgcontainer.WithPassword("hubstore"),
			pgcontainer.BasicWaitStrategies(),
		)
		if pgErr != nil {
			return
		}

		pgDSN, pgErr = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if pgErr != nil {
			return
		}

		pool, err := pgxpool.New(ctx, pgDSN)
		if err != nil {
			pgErr = fmt.Errorf("connect: %w", err)
			return
		}
		defer pool.Close()
		pgErr = pool.Ping(ctx)
	})

	if pgErr != nil {
		t.Fatalf("postgres container: %v", pgErr)
	}
	return pgDSN
}

func terminatePostgres() {
	if pgContainer == nil {
		return
	}
	if err := testcontainers.TerminateContainer(pgContainer); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
	}
}
