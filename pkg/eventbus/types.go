package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of an event.
type Kind string

const (
	KindSessionCreated  Kind = "session.created"
	KindSessionEvicted  Kind = "session.evicted"
	KindMessageAppended Kind = "message.appended"
	KindActionInvoked   Kind = "action.invoked"
	KindActionCompleted Kind = "action.completed"
	KindWindowOpened    Kind = "window.opened"
	KindWindowClosed    Kind = "window.closed"
	KindActivityLogged  Kind = "activity.logged"
)

// KindAny subscribes a handler to every published event.
const KindAny Kind = "*"

// Event is a single state change in a session. Seq is issued by the
// owning session's clock and establishes a total order per session.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent builds an event with a fresh id and the current timestamp.
func NewEvent(kind Kind, sessionID string, seq int64, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		SessionID: sessionID,
		Seq:       seq,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine; a panicking handler is isolated and logged.
type Handler func(Event)
