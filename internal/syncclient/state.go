// Package syncclient keeps a front end's timer display converged with the
// server. It combines an authoritative baseline fetched over the control API
// with a local monotonic tick, and reconciles pushed change events against
// that baseline.
package syncclient

import "time"

// Status is the client-side view of the session state machine.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

// ServerSyncRef anchors the local display to a server-computed elapsed value.
// SyncedAt is a local monotonic reading; BaseElapsedMs is the authoritative
// elapsed at that instant.
type ServerSyncRef struct {
	BaseElapsedMs int64
	SyncedAt      time.Time
}

// TimerState is the full client-side timer snapshot handed to listeners.
type TimerState struct {
	SessionID string
	DraftID   string
	Status    Status
	// ElapsedMs is the display value: the sync baseline plus local ticking
	// while running.
	ElapsedMs int64
	StartTime time.Time
	Comment   string
	IsSaving  bool
	IsLoading bool
	Err       error
}

// elapsedAt projects the display elapsed for a local instant.
func elapsedAt(ref ServerSyncRef, status Status, localNow time.Time) int64 {
	if status != StatusRunning {
		return ref.BaseElapsedMs
	}
	delta := localNow.Sub(ref.SyncedAt)
	if delta < 0 {
		delta = 0
	}
	return ref.BaseElapsedMs + delta.Milliseconds()
}
