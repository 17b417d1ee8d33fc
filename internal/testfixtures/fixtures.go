package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/timetracker/internal/persistence"
)

var (
	profileCounter uint64
	entryCounter   uint64
	sessionCounter uint64
	segmentCounter uint64
)

var referenceTime = time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ---------------------------- Profile fixtures ----------------------------

// ProfileFixture represents a deterministic user profile record.
type ProfileFixture struct {
	ID             string
	PlatformUserID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProfileOption configures the generated profile fixture.
type ProfileOption func(*ProfileFixture)

// NewProfileFixture returns a deterministic profile fixture with optional overrides.
func NewProfileFixture(opts ...ProfileOption) ProfileFixture {
	idx := atomic.AddUint64(&profileCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ProfileFixture{
		ID:             fmt.Sprintf("user-%03d", idx),
		PlatformUserID: fmt.Sprintf("platform-%03d", idx),
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithProfileID overrides the generated profile ID.
func WithProfileID(id string) ProfileOption {
	return func(f *ProfileFixture) {
		f.ID = id
	}
}

// WithPlatformUserID overrides the generated platform user ID.
func WithPlatformUserID(id string) ProfileOption {
	return func(f *ProfileFixture) {
		f.PlatformUserID = id
	}
}

// Persistence returns the fixture as a persistence.UserProfile value.
func (f ProfileFixture) Persistence() persistence.UserProfile {
	return persistence.UserProfile{
		ID:             f.ID,
		PlatformUserID: f.PlatformUserID,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// ----------------------------- Entry fixtures -----------------------------

// EntryFixture represents a deterministic time entry record.
type EntryFixture struct {
	ID        string
	UserID    string
	IsDraft   bool
	TaskName  *string
	Comment   *string
	Duration  *int64
	StartTime *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryOption configures the generated entry fixture.
type EntryOption func(*EntryFixture)

// NewEntryFixture returns a deterministic entry fixture with optional overrides.
func NewEntryFixture(opts ...EntryOption) EntryFixture {
	idx := atomic.AddUint64(&entryCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	start := created
	fixture := EntryFixture{
		ID:        fmt.Sprintf("entry-%03d", idx),
		UserID:    fmt.Sprintf("user-%03d", idx),
		IsDraft:   true,
		StartTime: &start,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEntryID overrides the generated entry ID.
func WithEntryID(id string) EntryOption {
	return func(f *EntryFixture) {
		f.ID = id
	}
}

// WithEntryUserID sets the owning user.
func WithEntryUserID(userID string) EntryOption {
	return func(f *EntryFixture) {
		f.UserID = userID
	}
}

// WithEntryDraft sets the draft flag.
func WithEntryDraft(isDraft bool) EntryOption {
	return func(f *EntryFixture) {
		f.IsDraft = isDraft
	}
}

// WithEntryTaskName sets the task name.
func WithEntryTaskName(name string) EntryOption {
	return func(f *EntryFixture) {
		f.TaskName = &name
	}
}

// WithEntryComment sets the free-text comment.
func WithEntryComment(comment string) EntryOption {
	return func(f *EntryFixture) {
		f.Comment = &comment
	}
}

// WithEntryDuration sets the recorded duration in milliseconds.
func WithEntryDuration(ms int64) EntryOption {
	return func(f *EntryFixture) {
		f.Duration = &ms
	}
}

// Persistence returns the fixture as a persistence.TimeEntry value.
func (f EntryFixture) Persistence() persistence.TimeEntry {
	return persistence.TimeEntry{
		ID:        f.ID,
		UserID:    f.UserID,
		IsDraft:   f.IsDraft,
		TaskName:  f.TaskName,
		Comment:   f.Comment,
		Duration:  f.Duration,
		StartTime: f.StartTime,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ---------------------------- Session fixtures ----------------------------

// SessionFixture represents a deterministic session record.
type SessionFixture struct {
	ID          string
	UserID      string
	DraftID     *string
	StartTime   time.Time
	ElapsedTime int64
	IsPaused    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic session fixture with optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    fmt.Sprintf("user-%03d", idx),
		StartTime: created,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionUserID sets the owning user.
func WithSessionUserID(userID string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = userID
	}
}

// WithSessionDraftID attaches a draft entry.
func WithSessionDraftID(draftID string) SessionOption {
	return func(f *SessionFixture) {
		f.DraftID = &draftID
	}
}

// WithSessionElapsed sets the closed-segment total in milliseconds.
func WithSessionElapsed(ms int64) SessionOption {
	return func(f *SessionFixture) {
		f.ElapsedTime = ms
	}
}

// WithSessionPaused sets the paused flag.
func WithSessionPaused(paused bool) SessionOption {
	return func(f *SessionFixture) {
		f.IsPaused = paused
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		DraftID:     f.DraftID,
		StartTime:   f.StartTime,
		ElapsedTime: f.ElapsedTime,
		IsPaused:    f.IsPaused,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ---------------------------- Segment fixtures ----------------------------

// SegmentFixture represents one running interval in a session's ledger.
type SegmentFixture struct {
	ID        string
	SessionID string
	StartTime time.Time
	EndTime   *time.Time
	Duration  *int64
	CreatedAt time.Time
}

// SegmentOption configures the generated segment fixture.
type SegmentOption func(*SegmentFixture)

// NewSegmentFixture returns a deterministic open segment starting at the
// reference time. Use WithSegmentClosed to close it.
func NewSegmentFixture(opts ...SegmentOption) SegmentFixture {
	idx := atomic.AddUint64(&segmentCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := SegmentFixture{
		ID:        fmt.Sprintf("segment-%03d", idx),
		SessionID: fmt.Sprintf("session-%03d", idx),
		StartTime: start,
		CreatedAt: start,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSegmentSessionID sets the owning session.
func WithSegmentSessionID(sessionID string) SegmentOption {
	return func(f *SegmentFixture) {
		f.SessionID = sessionID
	}
}

// WithSegmentStart sets the segment start time.
func WithSegmentStart(start time.Time) SegmentOption {
	return func(f *SegmentFixture) {
		f.StartTime = start
	}
}

// WithSegmentClosed closes the segment after the given duration, materialising
// the duration column the way the repository does.
func WithSegmentClosed(d time.Duration) SegmentOption {
	return func(f *SegmentFixture) {
		end := f.StartTime.Add(d)
		ms := d.Milliseconds()
		f.EndTime = &end
		f.Duration = &ms
	}
}

// Persistence returns the fixture as a persistence.Segment value.
func (f SegmentFixture) Persistence() persistence.Segment {
	return persistence.Segment{
		ID:        f.ID,
		SessionID: f.SessionID,
		StartTime: f.StartTime,
		EndTime:   f.EndTime,
		Duration:  f.Duration,
		CreatedAt: f.CreatedAt,
	}
}
