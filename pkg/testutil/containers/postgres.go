//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"certtrust/internal/platform/postgres"
)

// PostgresContainer wraps a testcontainers Postgres instance with the
// schema migrated and a ready pool.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	Pool      *pgxpool.Pool
}

// NewPostgresContainer starts a Postgres container, runs migrations, and
// returns a connected pool.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("certtrust"),
		tcpostgres.WithUsername("certtrust"),
		tcpostgres.WithPassword("certtrust"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	if err := postgres.Migrate(ctx, url); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	pool, err := postgres.Connect(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return &PostgresContainer{Container: container, URL: url, Pool: pool}
}

// Truncate clears all domain tables. Use between tests to ensure
// isolation.
func (p *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := p.Pool.Exec(ctx, `
		TRUNCATE certificates, audit_decisions, documents, indicator_reviews, stage_records, projects CASCADE`)
	return err
}
