// Package event provides a small instance-scoped pub/sub bus that
// decouples the conversation engine from the UI and puppet layers.
package event

import (
	"log"
	"sync"

	"github.com/shutinglu0913/arbot-puppet/internal/chat"
)

// Topic names the engine's event streams.
type Topic string

const (
	// TopicInitialized fires once after the engine creates its session.
	TopicInitialized Topic = "initialized"
	// TopicProcessing fires when a user turn starts.
	TopicProcessing Topic = "processing"
	// TopicMessageReceived fires for every message appended to history,
	// both the user echo and the puppet reply.
	TopicMessageReceived Topic = "messageReceived"
	// TopicError fires when a turn falls back after provider failure.
	TopicError Topic = "error"
	// TopicSessionEnded fires once when the session ends.
	TopicSessionEnded Topic = "sessionEnded"
)

// Event is the payload delivered to handlers. Fields are set per topic:
// Message for message events, Err for error events.
type Event struct {
	Topic     Topic
	SessionID string
	Message   *chat.Message
	Err       error
}

// Handler receives events for one topic.
type Handler func(Event)

type subscription struct {
	id      int
	handler Handler
}

// Bus dispatches events synchronously, in subscription order, to the
// handlers of one engine instance. There is no global listener state.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[Topic][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Topic][]subscription)}
}

// Subscribe registers a handler for a topic and returns an unsubscribe
// func. Unsubscribing twice is harmless.
func (b *Bus) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[topic] = append(b.handlers[topic], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[topic]
		for i, sub := range subs {
			if sub.id == id {
				b.handlers[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers the event to every handler of its topic. A panicking
// handler is recovered and logged so it cannot break the emitter or the
// remaining handlers.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	subs := make([]subscription, len(b.handlers[ev.Topic]))
	copy(subs, b.handlers[ev.Topic])
	b.mu.Unlock()

	for _, sub := range subs {
		b.dispatch(sub, ev)
	}
}

func (b *Bus) dispatch(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[event] handler for %q panicked: %v", ev.Topic, r)
		}
	}()
	sub.handler(ev)
}
