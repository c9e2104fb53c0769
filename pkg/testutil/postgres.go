package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	pgpkg "github.com/bibbank/bib/services/loan-servicing/pkg/postgres"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	DSN       string
}

// NewPostgresContainer starts a PostgreSQL container for testing and
// registers its teardown with t.Cleanup.
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("loan_servicing_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "postgres connection string")

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "create pgxpool")
	require.NoError(t, pool.Ping(ctx), "ping postgres")

	pc := &PostgresContainer{
		Container: pgContainer,
		DSN:       dsn,
		Pool:      pool,
	}
	t.Cleanup(func() { pc.terminate(t) })
	return pc
}

// Migrate applies the golang-migrate migrations found in dir, the same way
// the service does at startup.
func (pc *PostgresContainer) Migrate(t *testing.T, dir string) {
	t.Helper()

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	require.NoError(t, pgpkg.RunMigrations(pc.DSN, "file://"+abs), "apply migrations")
}

func (pc *PostgresContainer) terminate(t *testing.T) {
	t.Helper()

	if pc.Pool != nil {
		pc.Pool.Close()
	}

	if pc.Container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := pc.Container.Terminate(ctx); err != nil {
			t.Logf("warning: failed to terminate postgres container: %v", err)
		}
	}
}
