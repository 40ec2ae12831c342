package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_ConcurrencyCap(t *testing.T) {
	l := NewClientRateLimiter()

	for i := 0; i < maxConcurrentRequests; i++ {
		allowed, _ := l.CheckRequestAllowed()
		require.True(t, allowed)
		l.RecordRequestStart()
	}

	allowed, reason := l.CheckRequestAllowed()
	assert.False(t, allowed)
	assert.Equal(t, "too many concurrent requests", reason)

	l.RecordRequestEnd()
	allowed, _ = l.CheckRequestAllowed()
	assert.True(t, allowed)
}

func TestRateLimiter_WindowCap(t *testing.T) {
	l := NewClientRateLimiter()

	for i := 0; i < maxRequestsPerMinute; i++ {
		l.RecordRequestStart()
		l.RecordRequestEnd()
	}

	allowed, reason := l.CheckRequestAllowed()
	assert.False(t, allowed)
	assert.Equal(t, "rate limit exceeded", reason)
}
