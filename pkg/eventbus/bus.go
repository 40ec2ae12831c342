package eventbus

import (
	"sync"

	"github.com/rs/zerolog"
)

// Bus is a synchronous publish/subscribe fan-out keyed by event kind.
// Delivery happens in subscription order before Publish returns.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Kind][]*subscription
	logger zerolog.Logger
}

type subscription struct {
	id      uint64
	kind    Kind
	handler Handler
	bus     *Bus
	once    sync.Once
}

// Subscription is a handle that removes its handler when unsubscribed.
type Subscription struct {
	inner *subscription
}

// Unsubscribe removes the handler from the bus. Repeated calls are no-ops,
// and an in-flight Publish still delivers to the snapshot it took.
func (s *Subscription) Unsubscribe() {
	s.inner.once.Do(func() {
		s.inner.bus.remove(s.inner)
	})
}

// New creates an empty bus.
func New(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[Kind][]*subscription),
		logger: logger,
	}
}

// Subscribe registers a handler for a kind. Use KindAny to receive every
// event. Handlers for the same kind are invoked in subscription order.
func (b *Bus) Subscribe(kind Kind, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{
		id:      b.nextID,
		kind:    kind,
		handler: h,
		bus:     b,
	}
	b.subs[kind] = append(b.subs[kind], sub)
	return &Subscription{inner: sub}
}

// Publish delivers the event to every handler subscribed for its kind,
// then to KindAny handlers, synchronously. A failing handler does not
// prevent delivery to the rest.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	snapshot := make([]*subscription, 0, len(b.subs[ev.Kind])+len(b.subs[KindAny]))
	snapshot = append(snapshot, b.subs[ev.Kind]...)
	if ev.Kind != KindAny {
		snapshot = append(snapshot, b.subs[KindAny]...)
	}
	b.mu.RUnlock()

	for _, sub := range snapshot {
		b.deliver(sub, ev)
	}
}

// SubscriberCount returns the number of handlers registered for a kind.
func (b *Bus) SubscriberCount(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

func (b *Bus) deliver(sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("kind", string(ev.Kind)).
				Str("session_id", ev.SessionID).
				Int64("seq", ev.Seq).
				Msg("Event handler panicked")
		}
	}()
	sub.handler(ev)
}

func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sub.kind]
	for i, s := range subs {
		if s.id == sub.id {
			b.subs[sub.kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}
