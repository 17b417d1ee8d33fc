package taskdir

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/example/timetracker/internal/metrics"
)

const (
	boardCacheName = "taskdir:boards"
	taskCacheName  = "taskdir:tasks"
)

// Lookup is the subset of the client the directory needs; it allows tests to
// substitute the upstream.
type Lookup interface {
	ConnectedBoards(ctx context.Context, boardIDs []string) ([]BoardOption, error)
	BoardTasks(ctx context.Context, boardID, searchTerm string) ([]TaskGroup, error)
}

// DirectoryCache caches directory lookups; failures degrade to misses.
type DirectoryCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any)
}

// Directory serves board and task lookups through a cache so repeated UI
// loads do not hammer the upstream API.
type Directory struct {
	lookup    Lookup
	cache     DirectoryCache
	collector metrics.Collector
}

// NewDirectory wires the cached directory. cache and collector may be nil.
func NewDirectory(lookup Lookup, cache DirectoryCache, collector metrics.Collector) *Directory {
	if cache == nil {
		cache = noCache{}
	}
	if collector == nil {
		collector = metrics.NewNop()
	}
	return &Directory{lookup: lookup, cache: cache, collector: collector}
}

// Boards resolves board ids to options, cache first.
func (d *Directory) Boards(ctx context.Context, boardIDs []string) ([]BoardOption, error) {
	ids := normalizeIDs(boardIDs)
	if len(ids) == 0 {
		return []BoardOption{}, nil
	}

	key := fmt.Sprintf("boards:%s", strings.Join(ids, ","))
	var cached []BoardOption
	hit, _ := d.cache.Get(ctx, key, &cached)
	d.collector.RecordCacheAccess(boardCacheName, hit)
	if hit {
		return cached, nil
	}

	options, err := d.lookup.ConnectedBoards(ctx, ids)
	if err != nil {
		return nil, err
	}
	d.cache.Set(ctx, key, options)
	return options, nil
}

// Tasks returns the board's grouped task options, cache first. Search
// filtering happens after the cache so every term shares one upstream fetch.
func (d *Directory) Tasks(ctx context.Context, boardID, searchTerm string) ([]TaskGroup, error) {
	key := fmt.Sprintf("tasks:board:%s", boardID)
	var cached []TaskGroup
	hit, _ := d.cache.Get(ctx, key, &cached)
	d.collector.RecordCacheAccess(taskCacheName, hit)
	if hit {
		return filterGroups(cached, searchTerm), nil
	}

	groups, err := d.lookup.BoardTasks(ctx, boardID, "")
	if err != nil {
		return nil, err
	}
	d.cache.Set(ctx, key, groups)
	return filterGroups(groups, searchTerm), nil
}

func filterGroups(groups []TaskGroup, searchTerm string) []TaskGroup {
	term := strings.ToLower(strings.TrimSpace(searchTerm))
	if term == "" {
		return groups
	}
	filtered := make([]TaskGroup, 0, len(groups))
	for _, group := range groups {
		var options []TaskOption
		for _, option := range group.Options {
			if strings.Contains(strings.ToLower(option.Label), term) {
				options = append(options, option)
			}
		}
		if len(options) > 0 {
			filtered = append(filtered, TaskGroup{Label: group.Label, Options: options})
		}
	}
	return filtered
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	// Stable cache keys regardless of request order.
	sort.Strings(out)
	return out
}

type noCache struct{}

func (noCache) Get(ctx context.Context, key string, dest any) (bool, error) { return false, nil }
func (noCache) Set(ctx context.Context, key string, value any)              {}
