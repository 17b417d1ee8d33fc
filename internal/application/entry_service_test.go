package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/example/timetracker/internal/persistence"
	"github.com/example/timetracker/internal/testfixtures"
)

type stubEntries struct {
	createEntry        func(ctx context.Context, entry persistence.TimeEntry) (persistence.TimeEntry, error)
	getEntry           func(ctx context.Context, id, userID string) (persistence.TimeEntry, error)
	listEntriesForUser func(ctx context.Context, userID string) ([]persistence.TimeEntry, error)
	updateComment      func(ctx context.Context, id, userID, comment string) (persistence.TimeEntry, error)
	deleteEntry        func(ctx context.Context, id, userID string) error
}

func (s *stubEntries) CreateEntry(ctx context.Context, entry persistence.TimeEntry) (persistence.TimeEntry, error) {
	return s.createEntry(ctx, entry)
}

func (s *stubEntries) GetEntry(ctx context.Context, id, userID string) (persistence.TimeEntry, error) {
	return s.getEntry(ctx, id, userID)
}

func (s *stubEntries) ListEntriesForUser(ctx context.Context, userID string) ([]persistence.TimeEntry, error) {
	return s.listEntriesForUser(ctx, userID)
}

func (s *stubEntries) UpdateComment(ctx context.Context, id, userID, comment string) (persistence.TimeEntry, error) {
	return s.updateComment(ctx, id, userID, comment)
}

func (s *stubEntries) DeleteEntry(ctx context.Context, id, userID string) error {
	return s.deleteEntry(ctx, id, userID)
}

// memoryCache is a map-backed EntryCache that records deletions.
type memoryCache struct {
	values  map[string][]byte
	deleted []string
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	raw, ok := c.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.values[key] = raw
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	delete(c.values, key)
	c.deleted = append(c.deleted, key)
}

func TestListPopulatesAndServesCache(t *testing.T) {
	entries := []persistence.TimeEntry{
		testfixtures.NewEntryFixture(testfixtures.WithEntryUserID("alice")).Persistence(),
		testfixtures.NewEntryFixture(testfixtures.WithEntryUserID("alice")).Persistence(),
	}

	storeCalls := 0
	store := &stubEntries{
		listEntriesForUser: func(_ context.Context, userID string) ([]persistence.TimeEntry, error) {
			storeCalls++
			return entries, nil
		},
	}
	cache := newMemoryCache()
	service := NewEntryService(store, cache, nil, nil, nil)

	first, err := service.List(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(first))
	}

	second, err := service.List(context.Background(), "alice")
	if err != nil {
		t.Fatalf("cached list failed: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected 2 cached entries, got %d", len(second))
	}
	if storeCalls != 1 {
		t.Fatalf("expected a single store read, got %d", storeCalls)
	}
}

func TestListFallsThroughOnCacheError(t *testing.T) {
	store := &stubEntries{
		listEntriesForUser: func(context.Context, string) ([]persistence.TimeEntry, error) {
			return nil, nil
		},
	}
	cache := newMemoryCache()
	cache.getErr = errors.New("connection refused")
	service := NewEntryService(store, cache, nil, nil, nil)

	if _, err := service.List(context.Background(), "alice"); err != nil {
		t.Fatalf("cache errors must not surface: %v", err)
	}
}

func TestAddAssignsIDAndInvalidatesCache(t *testing.T) {
	gen := testfixtures.NewIDGenerator("entry")
	store := &stubEntries{
		createEntry: func(_ context.Context, entry persistence.TimeEntry) (persistence.TimeEntry, error) {
			if entry.ID == "" {
				t.Fatal("expected an assigned id")
			}
			return entry, nil
		},
	}
	cache := newMemoryCache()
	service := NewEntryService(store, cache, nil, gen.Next, nil)

	task := "Review"
	created, err := service.Add(context.Background(), persistence.TimeEntry{
		UserID:   "alice",
		TaskName: &task,
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id on returned entry")
	}
	if len(cache.deleted) != 1 || cache.deleted[0] != "time_entry:list:alice" {
		t.Fatalf("expected list cache invalidation, got %v", cache.deleted)
	}
}

func TestAddRequiresTaskName(t *testing.T) {
	service := NewEntryService(&stubEntries{}, nil, nil, nil, nil)

	_, err := service.Add(context.Background(), persistence.TimeEntry{UserID: "alice"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := vErr.FieldErrors["taskName"]; !ok {
		t.Fatalf("expected taskName field error, got %+v", vErr.FieldErrors)
	}
}

func TestAutosaveUpdatesCommentAndInvalidates(t *testing.T) {
	var savedComment string
	store := &stubEntries{
		updateComment: func(_ context.Context, id, userID, comment string) (persistence.TimeEntry, error) {
			if id != "draft-1" || userID != "alice" {
				t.Fatalf("unexpected autosave args %s/%s", id, userID)
			}
			savedComment = comment
			return persistence.TimeEntry{ID: id}, nil
		},
	}
	cache := newMemoryCache()
	service := NewEntryService(store, cache, nil, nil, nil)

	err := service.Autosave(context.Background(), "alice", AutosaveInput{
		DraftID: "draft-1",
		Comment: "halfway through the migration",
	})
	if err != nil {
		t.Fatalf("autosave failed: %v", err)
	}
	if savedComment != "halfway through the migration" {
		t.Fatalf("unexpected saved comment %q", savedComment)
	}
	if len(cache.deleted) != 1 {
		t.Fatalf("expected one invalidation, got %v", cache.deleted)
	}
}

func TestAutosaveMissingDraft(t *testing.T) {
	store := &stubEntries{
		updateComment: func(context.Context, string, string, string) (persistence.TimeEntry, error) {
			return persistence.TimeEntry{}, persistence.ErrNotFound
		},
	}
	service := NewEntryService(store, nil, nil, nil, nil)

	err := service.Autosave(context.Background(), "alice", AutosaveInput{DraftID: "gone"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteInvalidatesCache(t *testing.T) {
	store := &stubEntries{
		deleteEntry: func(context.Context, string, string) error {
			return nil
		},
	}
	cache := newMemoryCache()
	service := NewEntryService(store, cache, nil, nil, nil)

	if err := service.Delete(context.Background(), "entry-1", "alice"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(cache.deleted) != 1 {
		t.Fatalf("expected one invalidation, got %v", cache.deleted)
	}
}

func TestGetMapsNotFound(t *testing.T) {
	store := &stubEntries{
		getEntry: func(context.Context, string, string) (persistence.TimeEntry, error) {
			return persistence.TimeEntry{}, persistence.ErrNotFound
		},
	}
	service := NewEntryService(store, nil, nil, nil, nil)

	if _, err := service.Get(context.Background(), "entry-1", "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
