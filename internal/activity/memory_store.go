package activity

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matthewbaird/strata/internal/types"
)

// entityKey names one activity feed.
type entityKey struct {
	kind, id string
}

// MemoryStore keeps one feed per entity, newest first. It is the default
// when no DATABASE_URL is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	feeds map[entityKey][]types.ActivityEntry
	seen  map[entityKey]map[string]struct{}
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		feeds: make(map[entityKey][]types.ActivityEntry),
		seen:  make(map[entityKey]map[string]struct{}),
	}
}

// WriteEntries files each entry under its entity. An event already filed
// for an entity is ignored, as in the SQLite store.
func (s *MemoryStore) WriteEntries(_ context.Context, entries []types.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		k := entityKey{e.IndexedEntityType, e.IndexedEntityID}
		if s.seen[k] == nil {
			s.seen[k] = make(map[string]struct{})
		}
		if _, dup := s.seen[k][e.EventID]; dup {
			continue
		}
		s.seen[k][e.EventID] = struct{}{}

		feed := s.feeds[k]
		i, _ := slices.BinarySearchFunc(feed, e, newestFirst)
		s.feeds[k] = slices.Insert(feed, i, e)
	}
	return nil
}

func newestFirst(a, b types.ActivityEntry) int {
	return b.OccurredAt.Compare(a.OccurredAt)
}

// QueryByEntity walks the entity's feed from the cursor onwards.
func (s *MemoryStore) QueryByEntity(_ context.Context, entityType, entityID string, opts QueryOptions) ([]types.ActivityEntry, string, int, error) {
	before, err := opts.before()
	if err != nil {
		return nil, "", 0, err
	}
	limit := opts.pageSize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var page []types.ActivityEntry
	total := 0
	for _, e := range s.feeds[entityKey{entityType, entityID}] {
		if !opts.admits(e, before) {
			continue
		}
		total++
		if len(page) <= limit {
			page = append(page, e)
		}
	}

	var next string
	if len(page) > limit {
		page = page[:limit]
		next = cursorFor(page[limit-1])
	}
	return page, next, total, nil
}

// Search scans every feed for summaries containing query, ignoring case.
func (s *MemoryStore) Search(_ context.Context, query string, opts SearchOptions) ([]types.ActivityEntry, int, error) {
	needle := strings.ToLower(query)
	window := QueryOptions{Since: opts.Since, Categories: opts.Categories}

	s.mu.RLock()
	var hits []types.ActivityEntry
	for k, feed := range s.feeds {
		if opts.EntityType != "" && k.kind != opts.EntityType {
			continue
		}
		for _, e := range feed {
			if window.admits(e, time.Time{}) && strings.Contains(strings.ToLower(e.Summary), needle) {
				hits = append(hits, e)
			}
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(hits, func(a, b types.ActivityEntry) int {
		return cmp.Or(newestFirst(a, b), strings.Compare(a.EventID, b.EventID))
	})
	total := len(hits)
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, total, nil
}
