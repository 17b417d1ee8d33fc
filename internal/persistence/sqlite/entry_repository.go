package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/timetracker/internal/persistence"
)

const entryColumns = `id, user_id, is_draft, task_name, comment, board_id, item_id, role,
	start_time, end_time, duration, created_at, updated_at`

// EntryRepository implements persistence.EntryRepository using SQLite.
type EntryRepository struct {
	pool *Pool
}

// NewEntryRepository creates a new SQLite time entry repository.
func NewEntryRepository(pool *Pool) *EntryRepository {
	return &EntryRepository{pool: pool}
}

// CreateEntry stores a new time entry. Timestamps come from the datastore clock.
func (r *EntryRepository) CreateEntry(ctx context.Context, entry persistence.TimeEntry) (persistence.TimeEntry, error) {
	if entry.ID == "" || entry.UserID == "" {
		return persistence.TimeEntry{}, persistence.ErrConstraintViolation
	}

	now := r.pool.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if entry.StartTime == nil {
		entry.StartTime = &now
	}

	query := `
		INSERT INTO time_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.pool.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		boolToInt(entry.IsDraft),
		nullString(entry.TaskName),
		nullString(entry.Comment),
		nullString(entry.BoardID),
		nullString(entry.ItemID),
		nullString(entry.Role),
		formatTimePtr(entry.StartTime),
		formatTimePtr(entry.EndTime),
		nullInt64(entry.Duration),
		formatTime(entry.CreatedAt),
		formatTime(entry.UpdatedAt),
	)
	if err != nil {
		return persistence.TimeEntry{}, mapError(err)
	}
	return entry, nil
}

// GetEntry retrieves an entry scoped by owner. A row owned by another user is
// reported as not found.
func (r *EntryRepository) GetEntry(ctx context.Context, id, userID string) (persistence.TimeEntry, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM time_entries WHERE id = ? AND user_id = ?
	`, id, userID)
	return scanEntry(row)
}

// ListEntriesForUser returns the user's entries, most recent first.
func (r *EntryRepository) ListEntriesForUser(ctx context.Context, userID string) ([]persistence.TimeEntry, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM time_entries
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []persistence.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

// UpdateComment upserts the free-text comment on an owned entry.
func (r *EntryRepository) UpdateComment(ctx context.Context, id, userID, comment string) (persistence.TimeEntry, error) {
	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE time_entries SET comment = ?, updated_at = ? WHERE id = ? AND user_id = ?
	`, comment, formatTime(r.pool.Now()), id, userID)
	if err != nil {
		return persistence.TimeEntry{}, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.TimeEntry{}, mapError(err)
	}
	if affected == 0 {
		return persistence.TimeEntry{}, persistence.ErrNotFound
	}
	return r.GetEntry(ctx, id, userID)
}

// DeleteEntry removes an owned entry. Deleting a draft cascades to its
// session and segments.
func (r *EntryRepository) DeleteEntry(ctx context.Context, id, userID string) error {
	result, err := r.pool.db.ExecContext(ctx, `
		DELETE FROM time_entries WHERE id = ? AND user_id = ?
	`, id, userID)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (persistence.TimeEntry, error) {
	var entry persistence.TimeEntry
	var isDraft int
	var taskName, comment, boardID, itemID, role, startTime, endTime sql.NullString
	var duration sql.NullInt64
	var createdAt, updatedAt string

	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&isDraft,
		&taskName,
		&comment,
		&boardID,
		&itemID,
		&role,
		&startTime,
		&endTime,
		&duration,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.TimeEntry{}, persistence.ErrNotFound
		}
		return persistence.TimeEntry{}, mapError(err)
	}

	entry.IsDraft = isDraft != 0
	entry.TaskName = stringPtr(taskName)
	entry.Comment = stringPtr(comment)
	entry.BoardID = stringPtr(boardID)
	entry.ItemID = stringPtr(itemID)
	entry.Role = stringPtr(role)
	entry.Duration = int64Ptr(duration)
	if entry.StartTime, err = parseTimePtr(startTime); err != nil {
		return persistence.TimeEntry{}, err
	}
	if entry.EndTime, err = parseTimePtr(endTime); err != nil {
		return persistence.TimeEntry{}, err
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.TimeEntry{}, err
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.TimeEntry{}, err
	}
	return entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
