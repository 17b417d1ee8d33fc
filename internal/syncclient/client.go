package syncclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/timetracker/internal/events"
	"github.com/example/timetracker/internal/metrics"
)

const (
	defaultDebounce      = 200 * time.Millisecond
	defaultTickInterval  = time.Second
	defaultAutosaveDelay = 500 * time.Millisecond
)

// Client converges a local timer display with the server. It hydrates once,
// ticks locally while running, and reconciles pushed change events after a
// short debounce, keeping only the newest pending event and dropping
// anything not strictly newer than what it already applied.
type Client struct {
	api       ControlAPI
	userID    string
	events    <-chan events.ChangeEvent
	collector metrics.Collector
	logger    *slog.Logger
	now       func() time.Time

	debounce      time.Duration
	tickInterval  time.Duration
	autosaveDelay time.Duration

	onChange func(TimerState)

	commentDirty chan struct{}

	mu          sync.Mutex
	state       TimerState
	ref         ServerSyncRef
	lastApplied time.Time
	pending     *events.ChangeEvent
}

// Config holds configuration for the sync client.
type Config struct {
	// API drives the daemon's control surface. Required.
	API ControlAPI
	// UserID is the caller's internal user id, used to filter events.
	UserID string
	// Events carries pushed session change events; may be nil for a client
	// that relies on hydration and actions only.
	Events <-chan events.ChangeEvent
	// OnChange, when set, is invoked with a state snapshot after every
	// visible transition. Called from the client's goroutines.
	OnChange func(TimerState)
	// Collector is optional; defaults to the no-op collector.
	Collector metrics.Collector
	// Logger is optional; defaults to slog.Default.
	Logger *slog.Logger
	// Now is optional; defaults to time.Now. Tests inject a fake clock.
	Now func() time.Time
	// Debounce, TickInterval and AutosaveDelay override the reconciliation
	// timings; zero values select the defaults.
	Debounce      time.Duration
	TickInterval  time.Duration
	AutosaveDelay time.Duration
}

// New validates the config and returns a client in the Idle state.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.API == nil {
		return nil, errors.New("syncclient: control api cannot be nil")
	}
	if cfg.UserID == "" {
		return nil, errors.New("syncclient: user id cannot be empty")
	}
	collector := cfg.Collector
	if collector == nil {
		collector = metrics.NewNop()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}
	autosave := cfg.AutosaveDelay
	if autosave <= 0 {
		autosave = defaultAutosaveDelay
	}
	return &Client{
		api:           cfg.API,
		userID:        cfg.UserID,
		events:        cfg.Events,
		collector:     collector,
		logger:        logger,
		now:           now,
		debounce:      debounce,
		tickInterval:  tick,
		autosaveDelay: autosave,
		onChange:      cfg.OnChange,
		commentDirty:  make(chan struct{}, 1),
		state:         TimerState{Status: StatusIdle},
	}, nil
}

// Run hydrates once and then processes events, ticks and autosaves until the
// context is cancelled. It returns the context's error.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Hydrate(ctx); err != nil {
		// Start degraded; the next event or action re-fetches.
		c.logger.Warn("initial hydration failed", "error", err)
	}

	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	debounce := newStoppedTimer()
	defer debounce.Stop()
	autosave := newStoppedTimer()
	defer autosave.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-c.events:
			if !ok {
				c.events = nil
				continue
			}
			if c.buffer(event) {
				debounce.Reset(c.debounce)
			}

		case <-debounce.C:
			c.applyPending(ctx)

		case <-ticker.C:
			c.tick()

		case <-c.commentDirty:
			autosave.Reset(c.autosaveDelay)

		case <-autosave.C:
			c.flushComment(ctx)
		}
	}
}

// Hydrate fetches the authoritative session state and adopts it as the sync
// reference.
func (c *Client) Hydrate(ctx context.Context) error {
	resp, err := c.api.Session(ctx)
	if err != nil {
		c.setErr(err)
		return err
	}
	c.adoptSession(resp.Session)
	return nil
}

// Snapshot returns the current state with the display elapsed projected to
// the local clock.
func (c *Client) Snapshot() TimerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.state
	state.ElapsedMs = elapsedAt(c.ref, c.state.Status, c.now())
	return state
}

// Start starts or resumes the timer and adopts the returned elapsed as the
// new sync reference. Failure rolls back to the authoritative state.
func (c *Client) Start(ctx context.Context) error {
	resp, err := c.api.Start(ctx)
	if err != nil {
		return c.rollback(ctx, err)
	}

	c.mu.Lock()
	c.state.SessionID = resp.Session.ID
	if resp.Session.DraftID != nil {
		c.state.DraftID = *resp.Session.DraftID
	} else if resp.Draft != nil {
		c.state.DraftID = resp.Draft.ID
	}
	c.state.Status = StatusRunning
	c.state.StartTime = resp.Session.StartTime
	c.state.Err = nil
	c.adoptRefLocked(resp.ElapsedTime)
	c.mu.Unlock()
	c.notify()
	return nil
}

// Pause pauses the timer and adopts the server's stored elapsed.
func (c *Client) Pause(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.state.SessionID
	displayed := elapsedAt(c.ref, c.state.Status, c.now())
	c.mu.Unlock()

	resp, err := c.api.Pause(ctx, sessionID, displayed, true)
	if err != nil {
		return c.rollback(ctx, err)
	}

	c.mu.Lock()
	c.state.Status = StatusPaused
	c.state.Err = nil
	c.adoptRefLocked(resp.ElapsedTime)
	c.mu.Unlock()
	c.notify()
	return nil
}

// Resume resumes the paused timer.
func (c *Client) Resume(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.state.SessionID
	displayed := c.ref.BaseElapsedMs
	c.mu.Unlock()

	resp, err := c.api.Pause(ctx, sessionID, displayed, false)
	if err != nil {
		return c.rollback(ctx, err)
	}

	c.mu.Lock()
	c.state.Status = StatusRunning
	c.state.Err = nil
	c.adoptRefLocked(resp.ElapsedTime)
	c.mu.Unlock()
	c.notify()
	return nil
}

// Reset discards the session and its draft and returns to Idle.
func (c *Client) Reset(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.state.SessionID
	draftID := c.state.DraftID
	c.mu.Unlock()

	if err := c.api.Reset(ctx, c.userID, sessionID, draftID); err != nil {
		return c.rollback(ctx, err)
	}
	c.clearToIdle()
	return nil
}

// SaveAsDraft finalizes the draft with task metadata and returns to Idle.
func (c *Client) SaveAsDraft(ctx context.Context, taskName string, boardID, itemID, role *string) error {
	c.mu.Lock()
	draftID := c.state.DraftID
	comment := c.state.Comment
	c.mu.Unlock()

	req := FinalizeRequest{
		DraftID:  draftID,
		TaskName: taskName,
		BoardID:  boardID,
		ItemID:   itemID,
		Role:     role,
	}
	if comment != "" {
		req.Comment = &comment
	}
	if err := c.api.Finalize(ctx, req); err != nil {
		return c.rollback(ctx, err)
	}
	c.clearToIdle()
	return nil
}

// SetComment records a comment edit and schedules its debounced autosave.
// Safe to call from any goroutine; never blocks timer actions.
func (c *Client) SetComment(comment string) {
	c.mu.Lock()
	c.state.Comment = comment
	c.state.IsSaving = true
	c.mu.Unlock()
	c.notify()

	select {
	case c.commentDirty <- struct{}{}:
	default:
	}
}

// buffer folds an incoming event into the pending slot, keeping only the
// newest by commit timestamp. It reports whether the debounce window should
// restart.
func (c *Client) buffer(event events.ChangeEvent) bool {
	if !c.relevant(event) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.collector.RecordReconciliation("coalesced")
		if !event.CommitTimestamp.After(c.pending.CommitTimestamp) {
			return true
		}
	}
	c.pending = &event
	return true
}

func (c *Client) relevant(event events.ChangeEvent) bool {
	if event.Table != events.SessionTable {
		return false
	}
	switch event.Type {
	case events.TypeDelete:
		if event.Old == nil || event.Old.UserID != c.userID {
			return false
		}
		c.mu.Lock()
		tracked := c.state.SessionID
		c.mu.Unlock()
		return tracked != "" && event.Old.ID == tracked
	default:
		return event.New != nil && event.New.UserID == c.userID
	}
}

func (c *Client) applyPending(ctx context.Context) {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return
	}
	event := *c.pending
	c.pending = nil
	stale := !event.CommitTimestamp.After(c.lastApplied)
	c.mu.Unlock()

	if stale {
		c.collector.RecordReconciliation("stale")
		return
	}

	switch event.Type {
	case events.TypeDelete:
		c.mu.Lock()
		c.lastApplied = event.CommitTimestamp
		c.mu.Unlock()
		c.clearToIdle()
		c.collector.RecordReconciliation("cleared")

	default:
		record := event.New
		if record.IsPaused {
			// Paused elapsed is final; no server round trip needed.
			c.mu.Lock()
			c.state.SessionID = record.ID
			if record.DraftID != nil {
				c.state.DraftID = *record.DraftID
			}
			c.state.Status = StatusPaused
			c.adoptRefLocked(record.ElapsedTime)
			c.lastApplied = event.CommitTimestamp
			c.mu.Unlock()
			c.notify()
			c.collector.RecordReconciliation("applied")
			return
		}

		// Running: the stored elapsed excludes the open segment, so re-query
		// the authoritative value.
		resp, err := c.api.Session(ctx)
		if err != nil {
			c.logger.Warn("reconciliation re-query failed", "error", err)
			c.setErr(err)
			return
		}
		c.mu.Lock()
		c.lastApplied = event.CommitTimestamp
		c.mu.Unlock()
		c.adoptSession(resp.Session)
		c.collector.RecordReconciliation("applied")
	}
}

// adoptSession replaces the local state with an authoritative snapshot.
func (c *Client) adoptSession(session *SessionPayload) {
	c.mu.Lock()
	if session == nil {
		c.state.SessionID = ""
		c.state.DraftID = ""
		c.state.Status = StatusIdle
		c.state.StartTime = time.Time{}
		c.state.Err = nil
		c.ref = ServerSyncRef{}
	} else {
		c.state.SessionID = session.ID
		if session.DraftID != nil {
			c.state.DraftID = *session.DraftID
		}
		if session.IsPaused {
			c.state.Status = StatusPaused
		} else {
			c.state.Status = StatusRunning
		}
		c.state.StartTime = session.StartTime
		if session.Comment != nil && !c.state.IsSaving {
			c.state.Comment = *session.Comment
		}
		c.state.Err = nil
		c.adoptRefLocked(session.CalculatedElapsedTime)
	}
	c.state.IsLoading = false
	c.mu.Unlock()
	c.notify()
}

func (c *Client) adoptRefLocked(elapsedMs int64) {
	c.ref = ServerSyncRef{BaseElapsedMs: elapsedMs, SyncedAt: c.now()}
	c.state.ElapsedMs = elapsedMs
}

func (c *Client) tick() {
	c.mu.Lock()
	if c.state.Status != StatusRunning {
		c.mu.Unlock()
		return
	}
	c.state.ElapsedMs = elapsedAt(c.ref, StatusRunning, c.now())
	c.mu.Unlock()
	c.notify()
}

func (c *Client) flushComment(ctx context.Context) {
	c.mu.Lock()
	draftID := c.state.DraftID
	comment := c.state.Comment
	c.mu.Unlock()
	if draftID == "" {
		return
	}

	if err := c.api.Autosave(ctx, draftID, comment); err != nil {
		c.logger.Warn("comment autosave failed", "error", err)
		c.setErr(err)
		return
	}
	c.mu.Lock()
	c.state.IsSaving = false
	c.mu.Unlock()
	c.notify()
}

// rollback records the action error and re-fetches authoritative state so an
// optimistic update never survives a failed action.
func (c *Client) rollback(ctx context.Context, cause error) error {
	c.setErr(cause)
	if err := c.Hydrate(ctx); err != nil {
		c.logger.Warn("rollback re-fetch failed", "error", err)
	}
	return cause
}

func (c *Client) clearToIdle() {
	c.mu.Lock()
	c.state = TimerState{Status: StatusIdle}
	c.ref = ServerSyncRef{}
	c.mu.Unlock()
	c.notify()
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	c.state.Err = err
	c.mu.Unlock()
	c.notify()
}

func (c *Client) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.Snapshot())
}

// newStoppedTimer returns a timer that will not fire until Reset.
func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return t
}
