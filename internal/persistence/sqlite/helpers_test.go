package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openMigratedPool(t *testing.T) *ConnectionPool {
	t.Helper()

	cfg := DefaultConfig(filepath.Join(t.TempDir(), "calendar.db"))
	cfg.BusyTimeout = 0
	pool, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, pool.Migrate(context.Background(), nil))
	return pool
}
