package persistence

import "context"

// UserProfileRepository resolves external platform identities to internal ids.
type UserProfileRepository interface {
	CreateProfile(ctx context.Context, profile UserProfile) (UserProfile, error)
	GetProfile(ctx context.Context, id string) (UserProfile, error)
	GetProfileByPlatformUserID(ctx context.Context, platformUserID string) (UserProfile, error)
}

// EntryRepository exposes CRUD operations for time entries.
type EntryRepository interface {
	CreateEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	GetEntry(ctx context.Context, id, userID string) (TimeEntry, error)
	ListEntriesForUser(ctx context.Context, userID string) ([]TimeEntry, error)
	UpdateComment(ctx context.Context, id, userID, comment string) (TimeEntry, error)
	DeleteEntry(ctx context.Context, id, userID string) error
}

// LedgerRepository is the segment ledger and its stored-procedure contracts.
//
// Every mutating method runs as a single transaction; no method accepts
// caller-supplied timestamps. Segment boundaries are always stamped from the
// repository's own clock so that client and app-server clock skew can never
// leak into the ledger.
type LedgerRepository interface {
	// StartTimer creates the draft entry, the session, and the first running
	// segment atomically. Fails with ErrConstraintViolation when the user
	// already has a session.
	StartTimer(ctx context.Context, userID string) (StartResult, error)

	// OpenRunningSegment inserts a new open segment and marks the session
	// running. Fails with ErrSegmentAlreadyOpen when an open segment exists
	// and with ErrNotFound when the session is absent or not owned.
	OpenRunningSegment(ctx context.Context, sessionID, userID string) (Session, error)

	// CloseOpenSegment finalizes the open segment, stores the new
	// closed-segment total on the session, and marks it paused. Fails with
	// ErrNoOpenSegment when nothing is open.
	CloseOpenSegment(ctx context.Context, sessionID, userID string) (SegmentCloseResult, error)

	// ComputeElapsed returns the authoritative elapsed time for a session:
	// closed-segment total plus the live portion of any open segment,
	// measured against the repository clock. Pure read.
	ComputeElapsed(ctx context.Context, sessionID string) (ElapsedResult, error)

	// SessionForUser returns the user's session when one exists.
	SessionForUser(ctx context.Context, userID string) (Session, error)

	// SessionWithElapsed performs the atomic session+comment+elapsed read.
	// Returns ErrNotFound when the user has no session.
	SessionWithElapsed(ctx context.Context, userID string) (SessionSnapshot, error)

	// DeleteSession removes the session; segments go with it via cascade.
	DeleteSession(ctx context.Context, sessionID, userID string) error

	// FinalizeEntry closes any open segment, refreshes the session totals,
	// and writes task metadata, comment, total duration, and end time onto
	// the draft, clearing IsDraft — one transaction. The session itself is
	// left for a follow-up soft reset.
	FinalizeEntry(ctx context.Context, params FinalizeParams) (TimeEntry, error)

	// ListSegments returns a session's segments ordered by start time.
	ListSegments(ctx context.Context, sessionID string) ([]Segment, error)
}
