package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendWithinBound(t *testing.T) {
	s := NewStore(5)

	s.Append(NewItem(RoleUser, "hello"))
	s.Append(NewItem(RoleAssistant, "hi"))

	items := s.Snapshot()
	require.Len(t, items, 2)
	assert.Equal(t, RoleUser, items[0].Role)
	assert.Equal(t, RoleAssistant, items[1].Role)
}

func TestStore_EvictsOldestFIFO(t *testing.T) {
	s := NewStore(3)

	for i := 0; i < 10; i++ {
		s.Append(NewItem(RoleUser, fmt.Sprintf("message %d", i)))
	}

	items := s.Snapshot()
	require.Len(t, items, 3)
	// Survivors are exactly the most recent maxItems in original order.
	assert.Equal(t, "message 7", items[0].Content)
	assert.Equal(t, "message 8", items[1].Content)
	assert.Equal(t, "message 9", items[2].Content)
}

func TestStore_NotesExemptFromEviction(t *testing.T) {
	s := NewStore(2)

	s.Append(NewItem(RoleNote, "action open: opened"))
	for i := 0; i < 5; i++ {
		s.Append(NewItem(RoleUser, fmt.Sprintf("message %d", i)))
	}
	s.Append(NewItem(RoleNote, "action close: closed"))

	items := s.Snapshot()
	require.Len(t, items, 4)
	assert.Equal(t, RoleNote, items[0].Role)
	assert.Equal(t, "message 3", items[1].Content)
	assert.Equal(t, "message 4", items[2].Content)
	assert.Equal(t, RoleNote, items[3].Role)
}

func TestStore_SnapshotIsDefensiveCopy(t *testing.T) {
	s := NewStore(5)
	s.Append(NewItem(RoleUser, "one"))

	snap := s.Snapshot()
	s.Append(NewItem(RoleUser, "two"))

	assert.Len(t, snap, 1, "snapshot must not observe later mutations")
	assert.Len(t, s.Snapshot(), 2)
}

func TestStore_RemoveLast(t *testing.T) {
	s := NewStore(5)

	_, ok := s.RemoveLast()
	assert.False(t, ok)

	s.Append(NewItem(RoleUser, "one"))
	s.Append(NewItem(RoleUser, "two"))

	last, ok := s.RemoveLast()
	require.True(t, ok)
	assert.Equal(t, "two", last.Content)
	assert.Equal(t, 1, s.Len())
}

func TestStore_EstimatedTokensDeterministic(t *testing.T) {
	s := NewStore(10)
	s.Append(NewItem(RoleUser, "exactly sixteen!"))

	first := s.EstimatedTokens()
	second := s.EstimatedTokens()

	assert.Equal(t, 4, first)
	assert.Equal(t, first, second)
}

func TestEstimateText(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"12345678", 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateText(tt.input), "input %q", tt.input)
	}
}

func TestActivityLog_BoundedFIFO(t *testing.T) {
	l := NewActivityLog(3)

	for i := 0; i < 6; i++ {
		l.Append(fmt.Sprintf("activity %d", i))
	}

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "activity 3", entries[0].Message)
	assert.Equal(t, "activity 5", entries[2].Message)
}

func TestActivityLog_EntriesIsDefensiveCopy(t *testing.T) {
	l := NewActivityLog(5)
	l.Append("first")

	entries := l.Entries()
	l.Append("second")

	assert.Len(t, entries, 1)
	assert.Equal(t, 2, l.Len())
}
