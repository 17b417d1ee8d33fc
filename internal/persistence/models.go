package persistence

import "time"

// UserProfile links an external platform identity to a stable internal id.
type UserProfile struct {
	ID                string
	PlatformUserID    string
	PlatformAccountID string
	Name              *string
	Email             *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TimeEntry is a work record. While IsDraft is true the entry accumulates
// time through an attached session; finalizing writes the task metadata and
// total duration and flips IsDraft off.
type TimeEntry struct {
	ID        string
	UserID    string
	IsDraft   bool
	TaskName  *string
	Comment   *string
	BoardID   *string
	ItemID    *string
	Role      *string
	StartTime *time.Time
	EndTime   *time.Time
	Duration  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session is the live or paused timer instance for a user. ElapsedTime holds
// milliseconds accumulated from closed segments only; the open running
// segment, when present, is accounted for at read time.
type Session struct {
	ID          string
	UserID      string
	DraftID     *string
	StartTime   time.Time
	ElapsedTime int64
	IsPaused    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Segment is one contiguous running interval in a session's ledger. EndTime
// is nil while the segment is open; Duration is materialized at close.
type Segment struct {
	ID        string
	SessionID string
	StartTime time.Time
	EndTime   *time.Time
	Duration  *int64
	CreatedAt time.Time
}

// ElapsedResult is the outcome of an authoritative elapsed-time read.
type ElapsedResult struct {
	ElapsedMs  int64
	IsPaused   bool
	ServerTime time.Time
}

// SegmentCloseResult reports the totals after closing an open segment.
type SegmentCloseResult struct {
	ElapsedMs       int64
	DurationAddedMs int64
}

// SessionSnapshot is the atomic session-with-elapsed read: the session row,
// the draft's comment, and the server-computed elapsed time, all observed at
// the same instant.
type SessionSnapshot struct {
	Session    Session
	Comment    *string
	ElapsedMs  int64
	ServerTime time.Time
}

// StartResult carries the rows created (or resumed) by a timer start.
type StartResult struct {
	Session Session
	Draft   TimeEntry
}

// FinalizeParams are the inputs to the finalize procedure. Optional task
// metadata stays nil when the caller omitted it.
type FinalizeParams struct {
	UserID   string
	DraftID  string
	TaskName string
	Comment  *string
	BoardID  *string
	ItemID   *string
	Role     *string
}
