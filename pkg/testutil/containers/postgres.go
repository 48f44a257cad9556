//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"clinictrack/internal/platform/database"
)

// PostgresContainer wraps a testcontainers Postgres instance with the
// clinictrack schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *database.DB
}

func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("clinictrack_test"),
		postgres.WithUsername("clinictrack"),
		postgres.WithPassword("clinictrack_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	cfg := database.DefaultConfig()
	cfg.Driver = database.DialectPostgres
	cfg.URL = dsn
	db, err := database.Open(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Ryuk removes the container when the test process exits.
	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// TruncateAll clears every table, children first.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	for _, table := range []string{"audit_events", "metrics", "exercises", "sessions", "users", "licenses", "tenants"} {
		if _, err := p.DB.Run(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}
