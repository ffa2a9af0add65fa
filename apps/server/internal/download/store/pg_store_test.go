package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/dirpack/apps/server/internal/download"
	"github.com/tilsley/dirpack/apps/server/internal/download/store"
	"github.com/tilsley/dirpack/apps/server/internal/download/store/pgmigrations"
	pgplatform "github.com/tilsley/dirpack/apps/server/internal/platform/postgres"
)

// newPGStore creates a PGStore backed by a real PostgreSQL instance.
// Skips if POSTGRES_URL is not set.
func newPGStore(t *testing.T) download.JobStore {
	t.Helper()
	pgURL := os.Getenv("POSTGRES_URL")
	if pgURL == "" {
		t.Skip("POSTGRES_URL not set, skipping Postgres integration tests")
	}
	pool, err := pgplatform.Open(context.Background(), pgplatform.Options{URL: pgURL}, pgmigrations.FS)
	require.NoError(t, err)
	cleanupPGStore(t, pool)
	t.Cleanup(func() {
		cleanupPGStore(t, pool)
		pool.Close()
	})
	return store.NewPGStore(pool)
}

func cleanupPGStore(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `DELETE FROM download_jobs`)
	require.NoError(t, err)
}

func TestPGStore(t *testing.T) {
	runJobStoreContract(t, newPGStore)
}
