// Package dbtest starts a throwaway PostgreSQL container with the schema
// applied, for repository tests.
package dbtest

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"restaurant-system/internal/config"
	"restaurant-system/internal/database"
	"restaurant-system/internal/logger"
)

// New returns a migrated database. The test is skipped when no container
// runtime is available.
func New(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("restaurant"),
		postgres.WithUsername("restaurant"),
		postgres.WithPassword("restaurant"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "restaurant",
		Password: "restaurant",
		Database: "restaurant",
	}

	require.NoError(t, database.RunMigrations(cfg.DatabaseURL()))

	db, err := database.New(ctx, cfg, logger.NewWithWriter("dbtest", io.Discard))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}
