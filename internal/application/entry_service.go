package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/timetracker/internal/metrics"
	"github.com/example/timetracker/internal/persistence"
)

const entryListCache = "time_entry:list"

// Entries captures the time-entry repository operations used by the service.
type Entries interface {
	CreateEntry(ctx context.Context, entry persistence.TimeEntry) (persistence.TimeEntry, error)
	GetEntry(ctx context.Context, id, userID string) (persistence.TimeEntry, error)
	ListEntriesForUser(ctx context.Context, userID string) ([]persistence.TimeEntry, error)
	UpdateComment(ctx context.Context, id, userID, comment string) (persistence.TimeEntry, error)
	DeleteEntry(ctx context.Context, id, userID string) error
}

// EntryCache is the read-through cache in front of entry listings. A nil
// implementation is replaced with a pass-through. Write failures are handled
// inside the cache; they never surface here.
type EntryCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any)
	Delete(ctx context.Context, key string)
}

// EntryService manages completed and draft time entries.
type EntryService struct {
	entries   Entries
	cache     EntryCache
	collector metrics.Collector
	newID     func() string
	now       func() time.Time
	logger    *slog.Logger
}

// NewEntryService wires dependencies for entry listing and editing.
func NewEntryService(entries Entries, cache EntryCache, collector metrics.Collector, newID func() string, now func() time.Time) *EntryService {
	return NewEntryServiceWithLogger(entries, cache, collector, newID, now, nil)
}

// NewEntryServiceWithLogger wires dependencies with an explicit base logger.
func NewEntryServiceWithLogger(entries Entries, cache EntryCache, collector metrics.Collector, newID func() string, now func() time.Time, logger *slog.Logger) *EntryService {
	if cache == nil {
		cache = noCache{}
	}
	if collector == nil {
		collector = metrics.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &EntryService{
		entries:   entries,
		cache:     cache,
		collector: collector,
		newID:     newID,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

// List returns the user's entries, newest first, through the cache.
func (s *EntryService) List(ctx context.Context, userID string) ([]persistence.TimeEntry, error) {
	if strings.TrimSpace(userID) == "" {
		v := &ValidationError{}
		v.add("userId", "userId is required")
		return nil, v
	}

	key := listCacheKey(userID)
	var cached []persistence.TimeEntry
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		serviceLogger(ctx, s.logger, "entries", "list").
			WarnContext(ctx, "cache read failed, falling through", "error", err)
	}
	s.collector.RecordCacheAccess(entryListCache, hit)
	if hit {
		return cached, nil
	}

	entries, err := s.entries.ListEntriesForUser(ctx, userID)
	if err != nil {
		return nil, s.storeError(ctx, "list", err)
	}
	s.cache.Set(ctx, key, entries)
	return entries, nil
}

// Get returns one entry owned by the user.
func (s *EntryService) Get(ctx context.Context, id, userID string) (persistence.TimeEntry, error) {
	if err := requireIDAndUser(id, userID); err != nil {
		return persistence.TimeEntry{}, err
	}
	entry, err := s.entries.GetEntry(ctx, id, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.TimeEntry{}, ErrNotFound
		}
		return persistence.TimeEntry{}, s.storeError(ctx, "get", err)
	}
	return entry, nil
}

// Add records a completed entry directly, bypassing the timer.
func (s *EntryService) Add(ctx context.Context, entry persistence.TimeEntry) (persistence.TimeEntry, error) {
	v := &ValidationError{}
	if strings.TrimSpace(entry.UserID) == "" {
		v.add("userId", "userId is required")
	}
	if entry.TaskName == nil || strings.TrimSpace(*entry.TaskName) == "" {
		v.add("taskName", "taskName is required")
	}
	if v.HasErrors() {
		return persistence.TimeEntry{}, v
	}

	if entry.ID == "" {
		entry.ID = s.newID()
	}
	created, err := s.entries.CreateEntry(ctx, entry)
	if err != nil {
		return persistence.TimeEntry{}, s.storeError(ctx, "add", err)
	}
	s.invalidate(ctx, entry.UserID)

	serviceLogger(ctx, s.logger, "entries", "add", "user_id", entry.UserID).
		InfoContext(ctx, "entry added", "entry_id", created.ID)
	return created, nil
}

// Autosave persists the draft's comment as the user types.
func (s *EntryService) Autosave(ctx context.Context, userID string, input AutosaveInput) error {
	v := &ValidationError{}
	if strings.TrimSpace(userID) == "" {
		v.add("userId", "userId is required")
	}
	if strings.TrimSpace(input.DraftID) == "" {
		v.add("draftId", "draftId is required")
	}
	if v.HasErrors() {
		return v
	}

	if _, err := s.entries.UpdateComment(ctx, input.DraftID, userID, input.Comment); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return s.storeError(ctx, "autosave", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// Delete removes an entry the user owns.
func (s *EntryService) Delete(ctx context.Context, id, userID string) error {
	if err := requireIDAndUser(id, userID); err != nil {
		return err
	}

	if err := s.entries.DeleteEntry(ctx, id, userID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return s.storeError(ctx, "delete", err)
	}
	s.invalidate(ctx, userID)

	serviceLogger(ctx, s.logger, "entries", "delete", "user_id", userID).
		InfoContext(ctx, "entry deleted", "entry_id", id)
	return nil
}

func (s *EntryService) invalidate(ctx context.Context, userID string) {
	s.cache.Delete(ctx, listCacheKey(userID))
}

func (s *EntryService) storeError(ctx context.Context, op string, err error) error {
	serviceLogger(ctx, s.logger, "entries", op).
		ErrorContext(ctx, "datastore operation failed", "error", err)
	return errors.Join(ErrStoreUnavailable, err)
}

func requireIDAndUser(id, userID string) error {
	v := &ValidationError{}
	if strings.TrimSpace(userID) == "" {
		v.add("userId", "userId is required")
	}
	if strings.TrimSpace(id) == "" {
		v.add("entryId", "entryId is required")
	}
	if v.HasErrors() {
		return v
	}
	return nil
}

func listCacheKey(userID string) string {
	return fmt.Sprintf("time_entry:list:%s", userID)
}

type noCache struct{}

func (noCache) Get(ctx context.Context, key string, dest any) (bool, error) { return false, nil }
func (noCache) Set(ctx context.Context, key string, value any)              {}
func (noCache) Delete(ctx context.Context, key string)                      {}
