package engine

import (
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/lunarc/sash/pkg/conversation"
	"github.com/lunarc/sash/pkg/seqclock"
	"github.com/lunarc/sash/pkg/window"
)

// State is the turn lifecycle phase of a session.
type State int32

const (
	StateIdle State = iota
	StateAwaitingModel
	StateDispatchingAction
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateDispatchingAction:
		return "dispatching_action"
	default:
		return "unknown"
	}
}

// NewSessionID generates a fresh session id.
func NewSessionID() string {
	return gonanoid.Must()
}

// Session owns all per-session state: the conversation log, the open
// windows, the activity ring and the sequence clock stamping its events.
//
// turnMu serializes whole turns, so two concurrent HandleMessage calls for
// the same session run one after the other rather than interleaving their
// appends. It is held across the provider call for that session only;
// other sessions proceed in parallel. mu guards the state fields for
// readers that must not block behind an in-flight turn.
type Session struct {
	id        string
	createdAt time.Time

	turnMu sync.Mutex

	mu       sync.RWMutex
	store    *conversation.Store
	windows  *window.Registry
	activity *conversation.ActivityLog
	clock    *seqclock.Clock

	state      atomic.Int32
	lastActive atomic.Int64
}

func newSession(id string, maxItems, maxLogs int) *Session {
	s := &Session{
		id:        id,
		createdAt: time.Now().UTC(),
		store:     conversation.NewStore(maxItems),
		windows:   window.NewRegistry(),
		activity:  conversation.NewActivityLog(maxLogs),
		clock:     seqclock.New(0),
	}
	s.touch()
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// State returns the current turn phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// LastActive returns the time of the most recent turn or window change.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load()).UTC()
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UTC().UnixNano())
}

// CurrentSeq returns the last sequence number issued for this session.
func (s *Session) CurrentSeq() int64 {
	return s.clock.Current()
}

// Conversation returns a snapshot of the conversation log.
func (s *Session) Conversation() []conversation.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Snapshot()
}

// Windows returns a snapshot of the open windows in opening order.
func (s *Session) Windows() []window.Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.windows.List()
}

// Activity returns a snapshot of the activity ring, oldest first.
func (s *Session) Activity() []conversation.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activity.Entries()
}
