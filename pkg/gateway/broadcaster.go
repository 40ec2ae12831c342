package gateway

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lunarc/sash/pkg/eventbus"
)

// EventBroadcaster forwards bus events to connected clients. Events keep
// the sequence number stamped by the owning session, so clients can detect
// gaps and reorderings per session.
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	sub     *eventbus.Subscription
}

// NewEventBroadcaster creates a broadcaster over the given registry.
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger.With().Str("component", "broadcaster").Logger(),
	}
}

// Attach subscribes the broadcaster to every event on the bus.
func (b *EventBroadcaster) Attach(bus *eventbus.Bus) {
	b.sub = bus.Subscribe(eventbus.KindAny, b.forward)
}

// Detach unsubscribes from the bus. Safe to call more than once.
func (b *EventBroadcaster) Detach() {
	if b.sub != nil {
		b.sub.Unsubscribe()
	}
}

func (b *EventBroadcaster) forward(ev eventbus.Event) {
	b.broadcastMessage(EventMessage{
		Type:      "event",
		Event:     string(ev.Kind),
		SessionID: ev.SessionID,
		Seq:       ev.Seq,
		Data:      ev.Payload,
		Timestamp: ev.Timestamp.UnixMilli(),
	})
}

// Broadcast sends a server-originated event to all clients.
func (b *EventBroadcaster) Broadcast(ev eventbus.Event) {
	b.forward(ev)
}

func (b *EventBroadcaster) broadcastMessage(msg EventMessage) {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().
			Err(err).
			Str("event", msg.Event).
			Int64("seq", msg.Seq).
			Msg("Failed to marshal event")
		return
	}

	clients := b.clients.GetAll()
	if len(clients) == 0 {
		return
	}

	successCount := 0
	failureCount := 0

	for _, client := range clients {
		if msg.SessionID != "" && !client.WantsSession(msg.SessionID) {
			continue
		}
		if err := client.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			b.logger.Warn().
				Err(err).
				Str("clientId", client.ID).
				Str("event", msg.Event).
				Int64("seq", msg.Seq).
				Msg("Failed to broadcast to client")
			failureCount++
		} else {
			successCount++
		}
	}

	b.logger.Debug().
		Str("event", msg.Event).
		Str("session_id", msg.SessionID).
		Int64("seq", msg.Seq).
		Int("success", successCount).
		Int("failed", failureCount).
		Msg("Event broadcast complete")
}
