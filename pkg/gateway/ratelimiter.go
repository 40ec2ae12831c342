package gateway

import (
	"sync"
	"time"
)

const (
	maxRequestsPerMinute  = 120
	maxConcurrentRequests = 8
)

// ClientRateLimiter bounds how fast a single client may issue requests:
// a sliding one-minute window plus a concurrency cap.
type ClientRateLimiter struct {
	mu         sync.Mutex
	timestamps []time.Time
	inFlight   int
}

// NewClientRateLimiter creates a limiter with the default bounds.
func NewClientRateLimiter() *ClientRateLimiter {
	return &ClientRateLimiter{}
}

// CheckRequestAllowed reports whether another request may start now.
func (l *ClientRateLimiter) CheckRequestAllowed() (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight >= maxConcurrentRequests {
		return false, "too many concurrent requests"
	}

	cutoff := time.Now().Add(-time.Minute)
	kept := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.timestamps = kept

	if len(l.timestamps) >= maxRequestsPerMinute {
		return false, "rate limit exceeded"
	}
	return true, ""
}

// RecordRequestStart counts a request against both bounds.
func (l *ClientRateLimiter) RecordRequestStart() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = append(l.timestamps, time.Now())
	l.inFlight++
}

// RecordRequestEnd releases one slot of the concurrency cap.
func (l *ClientRateLimiter) RecordRequestEnd() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight > 0 {
		l.inFlight--
	}
}
