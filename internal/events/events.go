// Package events defines the session change-notification stream: the event
// shape pushed after every committed session mutation and the Redis pub/sub
// transport that carries it between devices.
package events

import (
	"context"
	"time"

	"github.com/example/timetracker/internal/persistence"
)

// Type distinguishes the row mutations carried on the stream.
type Type string

const (
	TypeInsert Type = "insert"
	TypeUpdate Type = "update"
	TypeDelete Type = "delete"
)

// SessionTable tags events originating from session row mutations.
const SessionTable = "sessions"

// SessionRecord is the wire form of a session row.
type SessionRecord struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	DraftID     *string `json:"draft_id"`
	StartTime   string  `json:"start_time"`
	ElapsedTime int64   `json:"elapsed_time"`
	IsPaused    bool    `json:"is_paused"`
}

// ChangeEvent is one mutation notification. Delivery is at-least-once,
// possibly duplicated and possibly out of order; consumers order by
// CommitTimestamp and drop anything not strictly newer than what they have
// already applied.
type ChangeEvent struct {
	Type            Type           `json:"event_type"`
	Table           string         `json:"table"`
	CommitTimestamp time.Time      `json:"commit_timestamp"`
	New             *SessionRecord `json:"new,omitempty"`
	Old             *SessionRecord `json:"old,omitempty"`
}

// Publisher pushes change events to all subscribed clients.
type Publisher interface {
	PublishSessionChange(ctx context.Context, event ChangeEvent) error
}

// NopPublisher discards events. Used where convergence pushes are not needed,
// such as unit tests of the controller.
type NopPublisher struct{}

func (NopPublisher) PublishSessionChange(context.Context, ChangeEvent) error { return nil }

// RecordFromSession converts a persisted session row to its wire form.
func RecordFromSession(session persistence.Session) *SessionRecord {
	return &SessionRecord{
		ID:          session.ID,
		UserID:      session.UserID,
		DraftID:     session.DraftID,
		StartTime:   session.StartTime.UTC().Format(time.RFC3339Nano),
		ElapsedTime: session.ElapsedTime,
		IsPaused:    session.IsPaused,
	}
}
