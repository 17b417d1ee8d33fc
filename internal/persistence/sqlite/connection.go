package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/timetracker/internal/persistence"
	_ "modernc.org/sqlite"
)

// Pool manages the SQLite connection and transaction scoping for the timer
// repositories.
type Pool struct {
	db  *sql.DB
	now func() time.Time
}

// PoolConfig configures the SQLite connection.
type PoolConfig struct {
	// DSN is a modernc.org/sqlite data source name.
	DSN string
	// BusyTimeout bounds lock waits; defaults to 5s.
	BusyTimeout time.Duration
	// Now overrides the datastore clock. Defaults to time.Now. Tests inject
	// a controllable clock here; production leaves it nil.
	Now func() time.Time
}

// NewPool opens the database, applies the session pragmas, and verifies the
// connection.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: dsn is required")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite allows one writer; the ledger serializes per session at the
	// transaction level, so a single connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: failed to ping database: %w", err)
	}

	return &Pool{db: db, now: cfg.Now}, nil
}

// DB returns the underlying database handle.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the underlying database.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Ping verifies the connection.
func (p *Pool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Now reads the datastore clock in UTC. All session and segment timestamps
// originate here, never from request payloads.
func (p *Pool) Now() time.Time {
	return p.now().UTC()
}

// TxFunc runs inside a transaction.
type TxFunc func(tx *sql.Tx) error

// WithTransaction runs fn in a transaction, rolling back on error or panic.
func (p *Pool) WithTransaction(ctx context.Context, fn TxFunc) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("sqlite: transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit transaction: %w", err)
	}
	return nil
}

// mapError converts driver errors to persistence sentinels where the failure
// is a recognizable constraint breach.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return persistence.ErrNotFound
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "CHECK constraint failed") ||
		strings.Contains(msg, "constraint failed") {
		return persistence.ErrConstraintViolation
	}
	return err
}
