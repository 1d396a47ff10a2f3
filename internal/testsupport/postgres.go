// Package testsupport provides a real-Postgres test harness shared by
// internal/store, internal/worker, internal/eventsource, and internal/host's
// integration tests. Grounded on internal/optimizer/cache_test.go's
// testcontainers-go/modules/postgres usage rather than
// internal/matching/integration_test.go's raw GenericContainer: the
// modules/postgres helper already knows the ready-for-connections wait
// strategy and exposes ConnectionString directly, so there is less
// boilerplate to keep in sync with the teacher's two parallel (and
// already slightly inconsistent) patterns.
package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kosarica/durable/internal/migrate"
	"github.com/kosarica/durable/internal/store"
)

// NewStore starts a disposable postgres:16-alpine container, applies every
// embedded migration, and returns a *store.Store backed by it. The
// container and pool are torn down via t.Cleanup, so callers never need
// their own defer. Skips in -short mode, matching the teacher's
// integration tests.
func NewStore(ctx context.Context, t testing.TB) *store.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres-backed test in short mode")
	}

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("durable"),
		tcpostgres.WithUsername("durable"),
		tcpostgres.WithPassword("durable"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "read connection string")

	poolCfg, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err, "parse pool config")
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	require.NoError(t, err, "create pool")
	t.Cleanup(pool.Close)

	migrator, err := migrate.New()
	require.NoError(t, err, "load embedded migrations")
	require.NoError(t, migrator.Migrate(ctx, pool, 0, zerolog.Nop()), "apply migrations")

	return store.FromPool(pool)
}

// NewPool is NewStore's lower-level sibling for tests (internal/eventsource's
// integration test) that need the raw pool or a second connection for
// LISTEN, rather than a *store.Store.
func NewPool(ctx context.Context, t testing.TB) *pgxpool.Pool {
	t.Helper()
	s := NewStore(ctx, t)
	return s.Pool()
}
