package engine

import (
	"sync"
	"time"
)

// SubscriberID identifies a registration so it can be removed later.
type SubscriberID uint64

// SubscriberFunc receives emitted events.
type SubscriberFunc func(Event)

type subscription struct {
	id    SubscriberID
	fn    SubscriberFunc
	types map[EventType]struct{} // nil means every type
}

// EventBus dispatches events synchronously, on the emitting goroutine, in
// registration order. There is no buffering: a slow subscriber slows the
// emitter, which keeps ordering trivial for the console's SSE feed.
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscription
	lastID SubscriberID
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

func (b *EventBus) register(fn SubscriberFunc, types map[EventType]struct{}) SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastID++
	b.subs = append(b.subs, subscription{id: b.lastID, fn: fn, types: types})
	return b.lastID
}

// Subscribe registers a callback for every event type.
func (b *EventBus) Subscribe(fn SubscriberFunc) SubscriberID {
	return b.register(fn, nil)
}

// SubscribeTypes registers a callback for the listed event types only.
func (b *EventBus) SubscribeTypes(fn SubscriberFunc, types ...EventType) SubscriberID {
	wanted := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}
	return b.register(fn, wanted)
}

// Unsubscribe removes a registration. Unknown IDs are ignored.
func (b *EventBus) Unsubscribe(id SubscriberID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers an event to every matching subscriber. The subscriber list is
// snapshotted first so a callback may subscribe or unsubscribe freely.
func (b *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	snapshot := make([]subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.RUnlock()

	for _, s := range snapshot {
		if s.types != nil {
			if _, ok := s.types[evt.Type]; !ok {
				continue
			}
		}
		s.fn(evt)
	}
}
