// Package visibility tracks which result tables are pending display. The
// search pipeline marks tables pending as matches arrive; the display layer
// syncs the set against what it actually shows. All mutations are idempotent
// and batched, so callers can replay updates without side effects.
package visibility

import (
	"sort"
	"sync"
)

// Set holds the pending table IDs. The zero value is not usable; call New.
// An optional observer is notified after a mutating call, at most once per
// call and only when the set actually changed.
type Set struct {
	mu       sync.RWMutex
	pending  map[string]struct{}
	onChange func()
}

// New creates an empty set. onChange may be nil.
func New(onChange func()) *Set {
	return &Set{pending: make(map[string]struct{}), onChange: onChange}
}

// AddPending marks the given table IDs pending. Already-pending IDs are
// ignored. Reports whether the set changed.
func (s *Set) AddPending(tableIDs ...string) bool {
	s.mu.Lock()
	changed := false
	for _, id := range tableIDs {
		if _, ok := s.pending[id]; !ok {
			s.pending[id] = struct{}{}
			changed = true
		}
	}
	s.mu.Unlock()

	s.notify(changed)
	return changed
}

// RemovePending clears the given table IDs. Absent IDs are ignored. Reports
// whether the set changed.
func (s *Set) RemovePending(tableIDs ...string) bool {
	s.mu.Lock()
	changed := false
	for _, id := range tableIDs {
		if _, ok := s.pending[id]; ok {
			delete(s.pending, id)
			changed = true
		}
	}
	s.mu.Unlock()

	s.notify(changed)
	return changed
}

// SyncWithVisible replaces the pending set with exactly the given IDs.
// An empty or nil slice empties the set. Reports whether the set changed.
func (s *Set) SyncWithVisible(tableIDs []string) bool {
	next := make(map[string]struct{}, len(tableIDs))
	for _, id := range tableIDs {
		next[id] = struct{}{}
	}

	s.mu.Lock()
	changed := len(next) != len(s.pending)
	if !changed {
		for id := range next {
			if _, ok := s.pending[id]; !ok {
				changed = true
				break
			}
		}
	}
	if changed {
		s.pending = next
	}
	s.mu.Unlock()

	s.notify(changed)
	return changed
}

// IsPending reports whether a table ID is in the set.
func (s *Set) IsPending(tableID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[tableID]
	return ok
}

// Len returns the number of pending table IDs.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Snapshot returns the pending table IDs, sorted.
func (s *Set) Snapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// notify runs outside the lock so observers may call back into the set.
func (s *Set) notify(changed bool) {
	if changed && s.onChange != nil {
		s.onChange()
	}
}
