// Package testenv provides a database for tests.
package testenv

import (
	"context"
	"os"
	"testing"
	"time"

	kpg "github.com/opst/backorder/pkg/db/postgres"
	kpool "github.com/opst/backorder/pkg/db/postgres/pool"
	"github.com/opst/backorder/pkg/logger"
)

// environment variable holding the connection string of a database for tests
const EnvDatabase = "BACKORDER_TEST_DATABASE"

// GetPool connects to the test database, or skips the test when it is not configured.
//
// The pool is closed when t ends.
func GetPool(ctx context.Context, t *testing.T) kpool.Pool {
	t.Helper()
	url := os.Getenv(EnvDatabase)
	if url == "" {
		t.Skipf("%s is not set", EnvDatabase)
	}

	pool, err := kpg.Connect(
		ctx, url,
		kpg.WithAttempts(3, 100*time.Millisecond),
		kpg.WithLogger(logger.Null()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)
	return pool
}
