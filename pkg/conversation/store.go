package conversation

import "sync"

// Store is a bounded, ordered log of conversation items. When the number of
// user/assistant items exceeds the configured maximum, the oldest ones are
// evicted first. Bookkeeping entries (RoleNote) never count toward the bound
// and are never evicted.
type Store struct {
	mu       sync.RWMutex
	maxItems int
	items    []Item
}

// DefaultMaxItems bounds a store when no explicit limit is configured.
const DefaultMaxItems = 200

// NewStore creates a store holding at most maxItems user/assistant items.
func NewStore(maxItems int) *Store {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Store{maxItems: maxItems}
}

// Append adds an item to the end of the log, evicting the oldest
// user/assistant items if the bound is exceeded.
func (s *Store) Append(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, item)

	for s.evictableCount() > s.maxItems {
		s.evictOldest()
	}
}

// RemoveLast removes and returns the most recent item. It exists so a turn
// aborted by cancellation can be rolled back in full.
func (s *Store) RemoveLast() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return Item{}, false
	}
	last := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return last, true
}

// Snapshot returns a defensive copy of the current items in order.
func (s *Store) Snapshot() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the total number of items, bookkeeping entries included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// EstimatedTokens returns the deterministic token estimate for the whole log.
func (s *Store) EstimatedTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return EstimateTokens(s.items)
}

func (s *Store) evictableCount() int {
	n := 0
	for _, it := range s.items {
		if it.Role == RoleUser || it.Role == RoleAssistant {
			n++
		}
	}
	return n
}

func (s *Store) evictOldest() {
	for i, it := range s.items {
		if it.Role == RoleUser || it.Role == RoleAssistant {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return
		}
	}
}
