package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/calendar-manager/internal/persistence/sqlite"
)

// SQLiteHarness is a migrated SQLite database in a temporary directory.
type SQLiteHarness struct {
	Path     string
	Pool     *sqlite.ConnectionPool
	Events   *sqlite.EventRepository
	Sessions *sqlite.SessionRepository
}

// NewSQLiteHarness opens and migrates a fresh database. Event times are
// returned in loc. The pool is closed on test cleanup.
func NewSQLiteHarness(tb testing.TB, loc *time.Location) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "calendar.db")
	ctx := context.Background()

	pool, err := sqlite.Open(ctx, sqlite.DefaultConfig(path))
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}
	tb.Cleanup(func() { _ = pool.Close() })

	if err := pool.Migrate(ctx, nil); err != nil {
		tb.Fatalf("failed to migrate database: %v", err)
	}

	return &SQLiteHarness{
		Path:     path,
		Pool:     pool,
		Events:   sqlite.NewEventRepository(pool, loc),
		Sessions: sqlite.NewSessionRepository(pool),
	}
}
