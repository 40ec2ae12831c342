package conversation

import (
	"sync"
	"time"
)

// Activity is one human-readable entry of a session's recent activity.
type Activity struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// ActivityLog is a bounded ring of recent activity descriptions with strict
// FIFO eviction.
type ActivityLog struct {
	mu      sync.RWMutex
	maxLogs int
	entries []Activity
}

// DefaultMaxLogs bounds an activity log when no explicit limit is configured.
const DefaultMaxLogs = 100

// NewActivityLog creates a log holding at most maxLogs entries.
func NewActivityLog(maxLogs int) *ActivityLog {
	if maxLogs <= 0 {
		maxLogs = DefaultMaxLogs
	}
	return &ActivityLog{maxLogs: maxLogs}
}

// Append adds an entry, evicting the oldest one if the bound is exceeded.
func (l *ActivityLog) Append(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, Activity{Message: message, At: time.Now().UTC()})
	if len(l.entries) > l.maxLogs {
		l.entries = l.entries[len(l.entries)-l.maxLogs:]
	}
}

// Entries returns a defensive copy of the current entries in order.
func (l *ActivityLog) Entries() []Activity {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Activity, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained entries.
func (l *ActivityLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
