package application

import (
	"time"

	"github.com/example/timetracker/internal/persistence"
)

// Principal identifies the authenticated caller after platform identity
// resolution.
type Principal struct {
	// UserID is the stable internal user id.
	UserID string
	// PlatformUserID is the external platform identity the caller presented.
	PlatformUserID string
}

// StartOutcome reports the result of a timer start. Exactly one of Created
// and Resumed is true.
type StartOutcome struct {
	Session   persistence.Session
	Draft     *persistence.TimeEntry
	ElapsedMs int64
	Created   bool
	Resumed   bool
}

// PauseParams carries a pause or resume request. IsPausing selects the verb,
// matching the single control endpoint used by clients.
type PauseParams struct {
	UserID    string
	SessionID string
	IsPausing bool
}

// PauseOutcome reports the authoritative state after a pause or resume.
type PauseOutcome struct {
	Paused    bool
	ElapsedMs int64
	Session   persistence.Session
}

// ResetParams identifies the session and draft to tear down.
type ResetParams struct {
	UserID    string
	SessionID string
	DraftID   string
}

// SoftResetParams identifies the session to clear while keeping the draft.
type SoftResetParams struct {
	UserID    string
	SessionID string
	DraftID   string
}

// FinalizeInput carries the task metadata written onto a draft at finalize.
// Optional fields stay nil when omitted by the caller.
type FinalizeInput struct {
	DraftID  string
	TaskName string
	Comment  *string
	BoardID  *string
	ItemID   *string
	Role     *string
}

// SessionView is the atomic session-with-elapsed read returned to clients.
type SessionView struct {
	Session             persistence.Session
	Comment             *string
	CalculatedElapsedMs int64
	ServerTime          time.Time
}

// AutosaveInput carries a debounced comment save for a draft.
type AutosaveInput struct {
	DraftID string
	Comment string
}
