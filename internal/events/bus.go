// Package events provides in-process pub/sub with explicit subscription
// handles so teardown is deterministic.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one published message.
type Event struct {
	Topic     string
	Source    string
	Data      any
	Timestamp time.Time
}

// Handler processes one event. Handlers run synchronously in publish order;
// a handler error is returned to the publisher but does not stop delivery to
// the remaining subscribers.
type Handler func(ctx context.Context, event Event) error

// Subscription is the handle for one registered handler.
type Subscription interface {
	Topic() string
	Unsubscribe()
}

// ErrBusClosed is returned when publishing to or subscribing on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

type subscriber struct {
	id      string
	handler Handler
}

// Bus is an in-process event bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]subscriber
	closed      bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]subscriber)}
}

// Publish delivers an event to every subscriber of topic. The first handler
// error is returned after all subscribers have run.
func (b *Bus) Publish(ctx context.Context, topic, source string, data any) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	subs := make([]subscriber, len(b.subscribers[topic]))
	copy(subs, b.subscribers[topic])
	b.mu.RUnlock()

	event := Event{
		Topic:     topic,
		Source:    source,
		Data:      data,
		Timestamp: time.Now(),
	}

	var firstErr error
	for _, sub := range subs {
		if err := sub.handler(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	sub := subscriber{id: uuid.NewString(), handler: handler}
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	return &busSubscription{bus: b, topic: topic, id: sub.id}, nil
}

// Close drops all subscribers and rejects further use.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subscribers = make(map[string][]subscriber)
}

type busSubscription struct {
	bus   *Bus
	topic string
	id    string
}

func (s *busSubscription) Topic() string { return s.topic }

func (s *busSubscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	subs := s.bus.subscribers[s.topic]
	for i, sub := range subs {
		if sub.id == s.id {
			s.bus.subscribers[s.topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}
