package session

import (
	"sort"
	"sync"
	"time"

	"github.com/XXUCHAN/gapboard/internal/graph"
)

// Strategy is one in-memory editing session: a named block store, its
// mutation engine, and the session-scoped selection set. Nothing survives
// the process; there is no durable storage.
type Strategy struct {
	ID        string
	Name      string
	Store     *graph.Store
	Engine    *graph.Engine
	CreatedAt time.Time

	mu        sync.Mutex
	updatedAt time.Time
	selected  map[string]bool
}

// Touch records a mutation for updatedAt bookkeeping.
func (s *Strategy) Touch() {
	s.mu.Lock()
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

func (s *Strategy) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Select adds block ids to the selection set.
func (s *Strategy) Select(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.selected[id] = true
	}
}

// Deselect removes ids from the selection set; deleting a block routes
// through here so a stale selection never outlives its block.
func (s *Strategy) Deselect(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.selected, id)
	}
}

// ClearSelection empties the selection set.
func (s *Strategy) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = map[string]bool{}
}

// Selection returns the selected ids in sorted order.
func (s *Strategy) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.selected))
	for id := range s.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Selected reports whether the id is in the selection set.
func (s *Strategy) Selected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected[id]
}
