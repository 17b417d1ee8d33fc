package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/timetracker/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests. The pool's clock is the
// harness clock, so tests control every datastore timestamp.
type SQLiteHarness struct {
	Pool     *sqlite.Pool
	Clock    *Clock
	Profiles *sqlite.UserProfileRepository
	Entries  *sqlite.EntryRepository
	Ledger   *sqlite.LedgerRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a migrated SQLiteHarness on a temporary file.
// Cleanup is registered with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	clock := NewClock(ReferenceTime())
	path := filepath.Join(tb.TempDir(), "timetracker.db")

	pool, err := sqlite.NewPool(sqlite.PoolConfig{
		DSN: path,
		Now: clock.NowFunc(),
	})
	if err != nil {
		tb.Fatalf("failed to open pool: %v", err)
	}

	if err := pool.Migrate(context.Background()); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate: %v", err)
	}

	ids := NewIDGenerator("gen")
	harness := &SQLiteHarness{
		Pool:     pool,
		Clock:    clock,
		Profiles: sqlite.NewUserProfileRepository(pool),
		Entries:  sqlite.NewEntryRepository(pool),
		Ledger:   sqlite.NewLedgerRepository(pool).WithIDGenerator(ids.NextFunc()),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
