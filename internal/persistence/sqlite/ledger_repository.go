package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/timetracker/internal/ledger"
	"github.com/example/timetracker/internal/persistence"
	"github.com/google/uuid"
)

const sessionColumns = `id, user_id, draft_id, start_time, elapsed_time, is_paused, created_at, updated_at`

// LedgerRepository implements persistence.LedgerRepository using SQLite.
//
// Each mutating method is one transaction. The session row is the
// serialization point: every mutation reads it inside the transaction before
// touching segments, and the partial unique index on open segments backstops
// the single-open-segment invariant against concurrent writers.
type LedgerRepository struct {
	pool  *Pool
	newID func() string
}

// NewLedgerRepository creates a new SQLite ledger repository.
func NewLedgerRepository(pool *Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool, newID: uuid.NewString}
}

// WithIDGenerator overrides row id generation; tests use deterministic ids.
func (r *LedgerRepository) WithIDGenerator(newID func() string) *LedgerRepository {
	if newID != nil {
		r.newID = newID
	}
	return r
}

// StartTimer creates the draft entry, the session, and the first running
// segment in one transaction. All three share the same datastore timestamp.
func (r *LedgerRepository) StartTimer(ctx context.Context, userID string) (persistence.StartResult, error) {
	if userID == "" {
		return persistence.StartResult{}, persistence.ErrConstraintViolation
	}

	now := r.pool.Now()
	result := persistence.StartResult{}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		draftID := r.newID()
		sessionID := r.newID()
		segmentID := r.newID()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO time_entries (id, user_id, is_draft, start_time, created_at, updated_at)
			VALUES (?, ?, 1, ?, ?, ?)
		`, draftID, userID, formatTime(now), formatTime(now), formatTime(now)); err != nil {
			return mapError(err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, user_id, draft_id, start_time, elapsed_time, is_paused, created_at, updated_at)
			VALUES (?, ?, ?, ?, 0, 0, ?, ?)
		`, sessionID, userID, draftID, formatTime(now), formatTime(now), formatTime(now)); err != nil {
			return mapError(err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO segments (id, session_id, start_time, created_at)
			VALUES (?, ?, ?, ?)
		`, segmentID, sessionID, formatTime(now), formatTime(now)); err != nil {
			return mapError(err)
		}

		result.Draft = persistence.TimeEntry{
			ID:        draftID,
			UserID:    userID,
			IsDraft:   true,
			StartTime: &now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		result.Session = persistence.Session{
			ID:        sessionID,
			UserID:    userID,
			DraftID:   &draftID,
			StartTime: now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return nil
	})
	if err != nil {
		return persistence.StartResult{}, err
	}
	return result, nil
}

// OpenRunningSegment inserts a new open segment and marks the session running.
func (r *LedgerRepository) OpenRunningSegment(ctx context.Context, sessionID, userID string) (persistence.Session, error) {
	now := r.pool.Now()
	var session persistence.Session

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := getSessionTx(ctx, tx, sessionID, userID)
		if err != nil {
			return err
		}

		// Guarded insert: succeeds only while no open segment exists, so two
		// concurrent resumes cannot both open one.
		result, err := tx.ExecContext(ctx, `
			INSERT INTO segments (id, session_id, start_time, created_at)
			SELECT ?, ?, ?, ?
			WHERE NOT EXISTS (
				SELECT 1 FROM segments WHERE session_id = ? AND end_time IS NULL
			)
		`, r.newID(), sessionID, formatTime(now), formatTime(now), sessionID)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return mapError(err)
		}
		if affected == 0 {
			return persistence.ErrSegmentAlreadyOpen
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE sessions SET is_paused = 0, updated_at = ? WHERE id = ?
		`, formatTime(now), sessionID); err != nil {
			return mapError(err)
		}

		current.IsPaused = false
		current.UpdatedAt = now
		session = current
		return nil
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

// CloseOpenSegment finalizes the open segment, stores the new closed-segment
// total on the session, and marks it paused.
func (r *LedgerRepository) CloseOpenSegment(ctx context.Context, sessionID, userID string) (persistence.SegmentCloseResult, error) {
	now := r.pool.Now()
	var closeResult persistence.SegmentCloseResult

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := getSessionTx(ctx, tx, sessionID, userID); err != nil {
			return err
		}

		added, err := closeOpenSegmentTx(ctx, tx, sessionID, now)
		if err != nil {
			return err
		}

		total, err := closedTotalTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE sessions SET elapsed_time = ?, is_paused = 1, updated_at = ? WHERE id = ?
		`, total, formatTime(now), sessionID); err != nil {
			return mapError(err)
		}

		closeResult = persistence.SegmentCloseResult{ElapsedMs: total, DurationAddedMs: added}
		return nil
	})
	if err != nil {
		return persistence.SegmentCloseResult{}, err
	}
	return closeResult, nil
}

// ComputeElapsed returns the authoritative elapsed time for a session.
func (r *LedgerRepository) ComputeElapsed(ctx context.Context, sessionID string) (persistence.ElapsedResult, error) {
	now := r.pool.Now()

	var isPaused bool
	row := r.pool.db.QueryRowContext(ctx, `SELECT is_paused FROM sessions WHERE id = ?`, sessionID)
	var paused int
	if err := row.Scan(&paused); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ElapsedResult{}, persistence.ErrNotFound
		}
		return persistence.ElapsedResult{}, mapError(err)
	}
	isPaused = paused != 0

	segments, err := r.ListSegments(ctx, sessionID)
	if err != nil {
		return persistence.ElapsedResult{}, err
	}

	return persistence.ElapsedResult{
		ElapsedMs:  ledger.Elapsed(segments, now),
		IsPaused:   isPaused,
		ServerTime: now,
	}, nil
}

// SessionForUser returns the user's session when one exists.
func (r *LedgerRepository) SessionForUser(ctx context.Context, userID string) (persistence.Session, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE user_id = ?
	`, userID)
	return scanSession(row)
}

// SessionWithElapsed performs the atomic session+comment+elapsed read. The
// session row, the draft comment, and the segments are observed in a single
// read transaction so the elapsed basis and the server time cannot diverge.
func (r *LedgerRepository) SessionWithElapsed(ctx context.Context, userID string) (persistence.SessionSnapshot, error) {
	now := r.pool.Now()
	var snapshot persistence.SessionSnapshot

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT s.id, s.user_id, s.draft_id, s.start_time, s.elapsed_time, s.is_paused,
				s.created_at, s.updated_at, e.comment
			FROM sessions s
			LEFT JOIN time_entries e ON e.id = s.draft_id
			WHERE s.user_id = ?
		`, userID)

		var session persistence.Session
		var draftID, comment, startTime sql.NullString
		var paused int
		var createdAt, updatedAt string
		err := row.Scan(
			&session.ID,
			&session.UserID,
			&draftID,
			&startTime,
			&session.ElapsedTime,
			&paused,
			&createdAt,
			&updatedAt,
			&comment,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return persistence.ErrNotFound
			}
			return mapError(err)
		}

		session.DraftID = stringPtr(draftID)
		session.IsPaused = paused != 0
		if startTime.Valid {
			if session.StartTime, err = parseTime(startTime.String); err != nil {
				return err
			}
		}
		if session.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
		if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return err
		}

		segments, err := listSegmentsTx(ctx, tx, session.ID)
		if err != nil {
			return err
		}

		snapshot = persistence.SessionSnapshot{
			Session:    session,
			Comment:    stringPtr(comment),
			ElapsedMs:  ledger.Elapsed(segments, now),
			ServerTime: now,
		}
		return nil
	})
	if err != nil {
		return persistence.SessionSnapshot{}, err
	}
	return snapshot, nil
}

// DeleteSession removes the session; segments cascade.
func (r *LedgerRepository) DeleteSession(ctx context.Context, sessionID, userID string) error {
	result, err := r.pool.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE id = ? AND user_id = ?
	`, sessionID, userID)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// FinalizeEntry converts the draft into a completed entry in one transaction.
func (r *LedgerRepository) FinalizeEntry(ctx context.Context, params persistence.FinalizeParams) (persistence.TimeEntry, error) {
	if params.UserID == "" || params.DraftID == "" || params.TaskName == "" {
		return persistence.TimeEntry{}, persistence.ErrConstraintViolation
	}

	now := r.pool.Now()
	var finalized persistence.TimeEntry

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var isDraft int
		var existingDuration sql.NullInt64
		row := tx.QueryRowContext(ctx, `
			SELECT is_draft, duration FROM time_entries WHERE id = ? AND user_id = ?
		`, params.DraftID, params.UserID)
		if err := row.Scan(&isDraft, &existingDuration); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return persistence.ErrNotFound
			}
			return mapError(err)
		}

		duration := int64(0)
		if existingDuration.Valid {
			duration = existingDuration.Int64
		}

		// A session may or may not still be attached; when it is, close any
		// running segment and take the ledger total as the duration.
		var sessionID string
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM sessions WHERE draft_id = ? AND user_id = ?
		`, params.DraftID, params.UserID).Scan(&sessionID)
		switch {
		case err == nil:
			if _, err := closeOpenSegmentTx(ctx, tx, sessionID, now); err != nil && !errors.Is(err, persistence.ErrNoOpenSegment) {
				return err
			}
			total, err := closedTotalTx(ctx, tx, sessionID)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE sessions SET elapsed_time = ?, is_paused = 1, updated_at = ? WHERE id = ?
			`, total, formatTime(now), sessionID); err != nil {
				return mapError(err)
			}
			duration = total
		case errors.Is(err, sql.ErrNoRows):
			// Draft already detached from its session; keep the stored duration.
		default:
			return mapError(err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE time_entries
			SET is_draft = 0, task_name = ?, comment = ?, board_id = ?, item_id = ?, role = ?,
				end_time = ?, duration = ?, updated_at = ?
			WHERE id = ? AND user_id = ?
		`,
			params.TaskName,
			nullString(params.Comment),
			nullString(params.BoardID),
			nullString(params.ItemID),
			nullString(params.Role),
			formatTime(now),
			duration,
			formatTime(now),
			params.DraftID,
			params.UserID,
		); err != nil {
			return mapError(err)
		}

		entry, err := scanEntry(tx.QueryRowContext(ctx, `
			SELECT `+entryColumns+` FROM time_entries WHERE id = ? AND user_id = ?
		`, params.DraftID, params.UserID))
		if err != nil {
			return err
		}
		finalized = entry
		return nil
	})
	if err != nil {
		return persistence.TimeEntry{}, err
	}
	return finalized, nil
}

// ListSegments returns the session's segments ordered by start time.
func (r *LedgerRepository) ListSegments(ctx context.Context, sessionID string) ([]persistence.Segment, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, session_id, start_time, end_time, duration, created_at
		FROM segments WHERE session_id = ? ORDER BY start_time, created_at
	`, sessionID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectSegments(rows)
}

// --- transaction helpers ---

func getSessionTx(ctx context.Context, tx *sql.Tx, sessionID, userID string) (persistence.Session, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE id = ? AND user_id = ?
	`, sessionID, userID)
	return scanSession(row)
}

// closeOpenSegmentTx stamps end_time and duration on the open segment and
// returns the duration added. ErrNoOpenSegment when nothing is open.
func closeOpenSegmentTx(ctx context.Context, tx *sql.Tx, sessionID string, now time.Time) (int64, error) {
	var segmentID, startTimeStr string
	row := tx.QueryRowContext(ctx, `
		SELECT id, start_time FROM segments WHERE session_id = ? AND end_time IS NULL
	`, sessionID)
	if err := row.Scan(&segmentID, &startTimeStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, persistence.ErrNoOpenSegment
		}
		return 0, mapError(err)
	}

	startTime, err := parseTime(startTimeStr)
	if err != nil {
		return 0, err
	}
	duration := now.Sub(startTime).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE segments SET end_time = ?, duration = ? WHERE id = ?
	`, formatTime(now), duration, segmentID); err != nil {
		return 0, mapError(err)
	}
	return duration, nil
}

func closedTotalTx(ctx context.Context, tx *sql.Tx, sessionID string) (int64, error) {
	var total sql.NullInt64
	row := tx.QueryRowContext(ctx, `
		SELECT SUM(duration) FROM segments WHERE session_id = ? AND end_time IS NOT NULL
	`, sessionID)
	if err := row.Scan(&total); err != nil {
		return 0, mapError(err)
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Int64, nil
}

func listSegmentsTx(ctx context.Context, tx *sql.Tx, sessionID string) ([]persistence.Segment, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, session_id, start_time, end_time, duration, created_at
		FROM segments WHERE session_id = ? ORDER BY start_time, created_at
	`, sessionID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectSegments(rows)
}

func collectSegments(rows *sql.Rows) ([]persistence.Segment, error) {
	var segments []persistence.Segment
	for rows.Next() {
		var segment persistence.Segment
		var endTime sql.NullString
		var duration sql.NullInt64
		var startTime, createdAt string

		if err := rows.Scan(&segment.ID, &segment.SessionID, &startTime, &endTime, &duration, &createdAt); err != nil {
			return nil, mapError(err)
		}

		var err error
		if segment.StartTime, err = parseTime(startTime); err != nil {
			return nil, err
		}
		if segment.EndTime, err = parseTimePtr(endTime); err != nil {
			return nil, err
		}
		segment.Duration = int64Ptr(duration)
		if segment.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		segments = append(segments, segment)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return segments, nil
}

func scanSession(row *sql.Row) (persistence.Session, error) {
	var session persistence.Session
	var draftID sql.NullString
	var paused int
	var startTime, createdAt, updatedAt string

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&draftID,
		&startTime,
		&session.ElapsedTime,
		&paused,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Session{}, persistence.ErrNotFound
		}
		return persistence.Session{}, mapError(err)
	}

	session.DraftID = stringPtr(draftID)
	session.IsPaused = paused != 0
	if session.StartTime, err = parseTime(startTime); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

var _ persistence.LedgerRepository = (*LedgerRepository)(nil)
