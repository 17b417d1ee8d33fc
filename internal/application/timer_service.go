package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/example/timetracker/internal/events"
	"github.com/example/timetracker/internal/metrics"
	"github.com/example/timetracker/internal/persistence"
)

// Ledger captures the segment-ledger interactions needed by the controller.
type Ledger interface {
	StartTimer(ctx context.Context, userID string) (persistence.StartResult, error)
	OpenRunningSegment(ctx context.Context, sessionID, userID string) (persistence.Session, error)
	CloseOpenSegment(ctx context.Context, sessionID, userID string) (persistence.SegmentCloseResult, error)
	ComputeElapsed(ctx context.Context, sessionID string) (persistence.ElapsedResult, error)
	SessionForUser(ctx context.Context, userID string) (persistence.Session, error)
	SessionWithElapsed(ctx context.Context, userID string) (persistence.SessionSnapshot, error)
	DeleteSession(ctx context.Context, sessionID, userID string) error
	FinalizeEntry(ctx context.Context, params persistence.FinalizeParams) (persistence.TimeEntry, error)
}

// EntryStore captures the time-entry interactions needed by the controller.
type EntryStore interface {
	GetEntry(ctx context.Context, id, userID string) (persistence.TimeEntry, error)
	DeleteEntry(ctx context.Context, id, userID string) error
}

// TimerService owns the session state machine: it translates control intents
// into ledger mutations and publishes the resulting change events.
type TimerService struct {
	ledger    Ledger
	entries   EntryStore
	publisher events.Publisher
	collector metrics.Collector
	now       func() time.Time
	logger    *slog.Logger
}

// NewTimerService wires dependencies for timer control operations.
func NewTimerService(ledger Ledger, entries EntryStore, publisher events.Publisher, collector metrics.Collector, now func() time.Time) *TimerService {
	return NewTimerServiceWithLogger(ledger, entries, publisher, collector, now, nil)
}

// NewTimerServiceWithLogger wires dependencies with an explicit base logger.
func NewTimerServiceWithLogger(ledger Ledger, entries EntryStore, publisher events.Publisher, collector metrics.Collector, now func() time.Time, logger *slog.Logger) *TimerService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if collector == nil {
		collector = metrics.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &TimerService{
		ledger:    ledger,
		entries:   entries,
		publisher: publisher,
		collector: collector,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

// Start starts the user's timer. A paused session is resumed instead of
// creating a second one; a running session is returned as-is so concurrent
// starts converge on a single session.
func (s *TimerService) Start(ctx context.Context, userID string) (outcome StartOutcome, err error) {
	done := s.observe("start")
	defer func() { done(err) }()

	if strings.TrimSpace(userID) == "" {
		v := &ValidationError{}
		v.add("userId", "userId is required")
		return StartOutcome{}, v
	}

	existing, err := s.ledger.SessionForUser(ctx, userID)
	switch {
	case err == nil:
		return s.resumeExisting(ctx, existing, userID)
	case errors.Is(err, persistence.ErrNotFound):
		// No session yet; fall through to create.
	default:
		return StartOutcome{}, s.storeError(ctx, "start", err)
	}

	result, err := s.ledger.StartTimer(ctx, userID)
	if errors.Is(err, persistence.ErrConstraintViolation) {
		// Lost a concurrent-start race; the winner's session exists now.
		existing, lookupErr := s.ledger.SessionForUser(ctx, userID)
		if lookupErr != nil {
			return StartOutcome{}, s.storeError(ctx, "start", lookupErr)
		}
		return s.resumeExisting(ctx, existing, userID)
	}
	if err != nil {
		return StartOutcome{}, s.storeError(ctx, "start", err)
	}

	s.publish(ctx, events.ChangeEvent{
		Type:            events.TypeInsert,
		Table:           events.SessionTable,
		CommitTimestamp: result.Session.UpdatedAt,
		New:             events.RecordFromSession(result.Session),
	})

	serviceLogger(ctx, s.logger, "timer", "start", "user_id", userID).
		InfoContext(ctx, "timer started", "session_id", result.Session.ID)

	draft := result.Draft
	return StartOutcome{
		Session:   result.Session,
		Draft:     &draft,
		ElapsedMs: 0,
		Created:   true,
	}, nil
}

func (s *TimerService) resumeExisting(ctx context.Context, session persistence.Session, userID string) (StartOutcome, error) {
	if session.IsPaused {
		updated, err := s.ledger.OpenRunningSegment(ctx, session.ID, userID)
		switch {
		case err == nil:
			session = updated
			s.publish(ctx, events.ChangeEvent{
				Type:            events.TypeUpdate,
				Table:           events.SessionTable,
				CommitTimestamp: session.UpdatedAt,
				New:             events.RecordFromSession(session),
			})
		case errors.Is(err, persistence.ErrSegmentAlreadyOpen):
			// Another device resumed first; converge on its state.
			session.IsPaused = false
		case errors.Is(err, persistence.ErrNotFound):
			return StartOutcome{}, ErrNotFound
		default:
			return StartOutcome{}, s.storeError(ctx, "start", err)
		}
	}

	elapsed, err := s.ledger.ComputeElapsed(ctx, session.ID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return StartOutcome{}, ErrNotFound
		}
		return StartOutcome{}, s.storeError(ctx, "start", err)
	}

	serviceLogger(ctx, s.logger, "timer", "start", "user_id", userID).
		InfoContext(ctx, "timer resumed", "session_id", session.ID, "elapsed_ms", elapsed.ElapsedMs)

	return StartOutcome{
		Session:   session,
		ElapsedMs: elapsed.ElapsedMs,
		Resumed:   true,
	}, nil
}

// Pause pauses or resumes the session depending on params.IsPausing. Pausing
// a session with no open segment reports the stored state instead of failing:
// the user-visible effect is identical.
func (s *TimerService) Pause(ctx context.Context, params PauseParams) (outcome PauseOutcome, err error) {
	op := "pause"
	if !params.IsPausing {
		op = "resume"
	}
	done := s.observe(op)
	defer func() { done(err) }()

	v := &ValidationError{}
	if strings.TrimSpace(params.UserID) == "" {
		v.add("userId", "userId is required")
	}
	if strings.TrimSpace(params.SessionID) == "" {
		v.add("sessionId", "sessionId is required")
	}
	if v.HasErrors() {
		return PauseOutcome{}, v
	}

	if params.IsPausing {
		return s.pause(ctx, params)
	}
	return s.resume(ctx, params)
}

func (s *TimerService) pause(ctx context.Context, params PauseParams) (PauseOutcome, error) {
	result, err := s.ledger.CloseOpenSegment(ctx, params.SessionID, params.UserID)
	if errors.Is(err, persistence.ErrNoOpenSegment) {
		// Already paused, likely by another device; report the stored state.
		session, lookupErr := s.ledger.SessionForUser(ctx, params.UserID)
		if lookupErr != nil {
			if errors.Is(lookupErr, persistence.ErrNotFound) {
				return PauseOutcome{}, ErrNotFound
			}
			return PauseOutcome{}, s.storeError(ctx, "pause", lookupErr)
		}
		return PauseOutcome{Paused: true, ElapsedMs: session.ElapsedTime, Session: session}, nil
	}
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return PauseOutcome{}, ErrNotFound
		}
		return PauseOutcome{}, s.storeError(ctx, "pause", err)
	}

	session, err := s.ledger.SessionForUser(ctx, params.UserID)
	if err != nil {
		return PauseOutcome{}, s.storeError(ctx, "pause", err)
	}

	s.publish(ctx, events.ChangeEvent{
		Type:            events.TypeUpdate,
		Table:           events.SessionTable,
		CommitTimestamp: session.UpdatedAt,
		New:             events.RecordFromSession(session),
	})

	serviceLogger(ctx, s.logger, "timer", "pause", "user_id", params.UserID).
		InfoContext(ctx, "timer paused", "session_id", session.ID, "elapsed_ms", result.ElapsedMs)

	return PauseOutcome{Paused: true, ElapsedMs: result.ElapsedMs, Session: session}, nil
}

func (s *TimerService) resume(ctx context.Context, params PauseParams) (PauseOutcome, error) {
	session, err := s.ledger.OpenRunningSegment(ctx, params.SessionID, params.UserID)
	switch {
	case err == nil:
		s.publish(ctx, events.ChangeEvent{
			Type:            events.TypeUpdate,
			Table:           events.SessionTable,
			CommitTimestamp: session.UpdatedAt,
			New:             events.RecordFromSession(session),
		})
	case errors.Is(err, persistence.ErrSegmentAlreadyOpen):
		session, err = s.ledger.SessionForUser(ctx, params.UserID)
		if err != nil {
			return PauseOutcome{}, s.storeError(ctx, "resume", err)
		}
	case errors.Is(err, persistence.ErrNotFound):
		return PauseOutcome{}, ErrNotFound
	default:
		return PauseOutcome{}, s.storeError(ctx, "resume", err)
	}

	elapsed, err := s.ledger.ComputeElapsed(ctx, session.ID)
	if err != nil {
		return PauseOutcome{}, s.storeError(ctx, "resume", err)
	}

	serviceLogger(ctx, s.logger, "timer", "resume", "user_id", params.UserID).
		InfoContext(ctx, "timer resumed", "session_id", session.ID, "elapsed_ms", elapsed.ElapsedMs)

	return PauseOutcome{Paused: false, ElapsedMs: elapsed.ElapsedMs, Session: session}, nil
}

// SessionWithElapsed returns the caller's active session joined with its
// draft comment and server-computed elapsed time. A nil view means no active
// session, which is not an error.
func (s *TimerService) SessionWithElapsed(ctx context.Context, userID string) (view *SessionView, err error) {
	done := s.observe("session_read")
	defer func() { done(err) }()

	if strings.TrimSpace(userID) == "" {
		v := &ValidationError{}
		v.add("userId", "userId is required")
		return nil, v
	}

	snapshot, err := s.ledger.SessionWithElapsed(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		return nil, s.storeError(ctx, "session_read", err)
	}

	return &SessionView{
		Session:             snapshot.Session,
		Comment:             snapshot.Comment,
		CalculatedElapsedMs: snapshot.ElapsedMs,
		ServerTime:          snapshot.ServerTime,
	}, nil
}

// Reset tears the timer down completely: the session goes first (cascading
// its segments), then the draft entry. Irreversible.
func (s *TimerService) Reset(ctx context.Context, params ResetParams) (err error) {
	done := s.observe("reset")
	defer func() { done(err) }()

	if err := validateTeardownParams(params.UserID, params.SessionID, params.DraftID); err != nil {
		return err
	}

	session, err := s.ledger.SessionForUser(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return s.storeError(ctx, "reset", err)
	}
	if session.ID != params.SessionID {
		return ErrNotFound
	}

	if err := s.ledger.DeleteSession(ctx, params.SessionID, params.UserID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return s.storeError(ctx, "reset", err)
	}

	if err := s.entries.DeleteEntry(ctx, params.DraftID, params.UserID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return s.storeError(ctx, "reset", err)
	}

	s.publish(ctx, events.ChangeEvent{
		Type:            events.TypeDelete,
		Table:           events.SessionTable,
		CommitTimestamp: s.now().UTC(),
		Old:             events.RecordFromSession(session),
	})

	serviceLogger(ctx, s.logger, "timer", "reset", "user_id", params.UserID).
		InfoContext(ctx, "timer reset", "session_id", params.SessionID, "draft_id", params.DraftID)
	return nil
}

// SoftReset clears the session while preserving the draft entry.
func (s *TimerService) SoftReset(ctx context.Context, params SoftResetParams) (err error) {
	done := s.observe("soft_reset")
	defer func() { done(err) }()

	if err := validateTeardownParams(params.UserID, params.SessionID, params.DraftID); err != nil {
		return err
	}

	session, err := s.ledger.SessionForUser(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return s.storeError(ctx, "soft_reset", err)
	}
	if session.ID != params.SessionID {
		return ErrNotFound
	}

	if err := s.ledger.DeleteSession(ctx, params.SessionID, params.UserID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return s.storeError(ctx, "soft_reset", err)
	}

	s.publish(ctx, events.ChangeEvent{
		Type:            events.TypeDelete,
		Table:           events.SessionTable,
		CommitTimestamp: s.now().UTC(),
		Old:             events.RecordFromSession(session),
	})

	serviceLogger(ctx, s.logger, "timer", "soft_reset", "user_id", params.UserID).
		InfoContext(ctx, "session cleared, draft preserved", "session_id", params.SessionID, "draft_id", params.DraftID)
	return nil
}

// Finalize converts the draft into a completed entry and clears its session.
func (s *TimerService) Finalize(ctx context.Context, userID string, input FinalizeInput) (entry persistence.TimeEntry, err error) {
	done := s.observe("finalize")
	defer func() { done(err) }()

	v := &ValidationError{}
	if strings.TrimSpace(userID) == "" {
		v.add("userId", "userId is required")
	}
	if strings.TrimSpace(input.DraftID) == "" {
		v.add("draftId", "draftId is required")
	}
	if strings.TrimSpace(input.TaskName) == "" {
		v.add("taskName", "taskName is required")
	}
	if v.HasErrors() {
		return persistence.TimeEntry{}, v
	}

	finalized, err := s.ledger.FinalizeEntry(ctx, persistence.FinalizeParams{
		UserID:   userID,
		DraftID:  input.DraftID,
		TaskName: input.TaskName,
		Comment:  input.Comment,
		BoardID:  input.BoardID,
		ItemID:   input.ItemID,
		Role:     input.Role,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.TimeEntry{}, ErrNotFound
		}
		return persistence.TimeEntry{}, s.storeError(ctx, "finalize", err)
	}

	// Clear the session the entry accumulated under, when still attached.
	session, err := s.ledger.SessionForUser(ctx, userID)
	if err == nil && session.DraftID != nil && *session.DraftID == input.DraftID {
		if delErr := s.ledger.DeleteSession(ctx, session.ID, userID); delErr == nil {
			s.publish(ctx, events.ChangeEvent{
				Type:            events.TypeDelete,
				Table:           events.SessionTable,
				CommitTimestamp: s.now().UTC(),
				Old:             events.RecordFromSession(session),
			})
		} else if !errors.Is(delErr, persistence.ErrNotFound) {
			serviceLogger(ctx, s.logger, "timer", "finalize", "user_id", userID).
				WarnContext(ctx, "finalized entry but session cleanup failed", "session_id", session.ID, "error", delErr)
		}
	}

	serviceLogger(ctx, s.logger, "timer", "finalize", "user_id", userID).
		InfoContext(ctx, "entry finalized", "draft_id", input.DraftID, "duration_ms", derefInt64(finalized.Duration))

	return finalized, nil
}

func validateTeardownParams(userID, sessionID, draftID string) error {
	v := &ValidationError{}
	if strings.TrimSpace(userID) == "" {
		v.add("userId", "userId is required")
	}
	if strings.TrimSpace(sessionID) == "" {
		v.add("sessionId", "sessionId is required")
	}
	if strings.TrimSpace(draftID) == "" {
		v.add("draftId", "draftId is required")
	}
	if v.HasErrors() {
		return v
	}
	return nil
}

func (s *TimerService) publish(ctx context.Context, event events.ChangeEvent) {
	if err := s.publisher.PublishSessionChange(ctx, event); err != nil {
		// The push stream is a convergence mechanism, not a correctness one;
		// clients recover on their next authoritative read.
		serviceLogger(ctx, s.logger, "timer", "publish").
			WarnContext(ctx, "failed to publish change event", "type", event.Type, "error", err)
		return
	}
	s.collector.RecordEventPublished(string(event.Type))
}

func (s *TimerService) storeError(ctx context.Context, op string, err error) error {
	serviceLogger(ctx, s.logger, "timer", op).
		ErrorContext(ctx, "datastore operation failed", "error", err)
	return errors.Join(ErrStoreUnavailable, err)
}

func (s *TimerService) observe(op string) func(error) {
	start := s.now()
	return func(err error) {
		s.collector.RecordTimerOperation(op, ErrorKind(err), s.now().Sub(start).Seconds())
	}
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
