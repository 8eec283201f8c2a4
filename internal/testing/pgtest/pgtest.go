// Package pgtest starts a disposable Postgres for repository tests.
package pgtest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/orderbridge/orderbridge/internal/platform/db"
	"github.com/orderbridge/orderbridge/migrations"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ORDERBRIDGE_TEST_MODE") == "" {
			_ = os.Setenv("ORDERBRIDGE_TEST_MODE", "1")
		}
	})
}

// New starts a migrated Postgres container and returns a pool connected to it.
// The test is skipped under -short or when no container runtime is available.
func New(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("orderbridge_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, db.Migrate(dsn, migrations.FS, logger))

	pool, err := db.New(ctx, dsn, 8)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}
