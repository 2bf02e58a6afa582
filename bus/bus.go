// Package bus is the in-process publish/subscribe used to tell the rest of
// the program that a composer appeared or that a prompt went in.
//
// Delivery is synchronous and in subscription order. A panicking subscriber
// is logged and skipped; later subscribers still run.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
)

// Topic is one of the closed set of event names.
type Topic string

const (
	// ComposerDetected carries a *detect.Composer.
	ComposerDetected Topic = "composer-detected"
	// PromptInserted carries the caller-provided identifier.
	PromptInserted Topic = "prompt-inserted"
)

// Valid reports whether t belongs to the closed set.
func (t Topic) Valid() bool {
	return t == ComposerDetected || t == PromptInserted
}

// Handler receives an event payload.
type Handler func(payload any)

type subscription struct {
	id int
	fn Handler
}

// Bus routes payloads to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]subscription
	nextID int
	logger *slog.Logger
}

// New creates a Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{subs: make(map[Topic][]subscription), logger: logger}
}

// Subscribe registers fn on topic and returns a function removing it.
func (b *Bus) Subscribe(topic Topic, fn Handler) (unsubscribe func(), err error) {
	if !topic.Valid() {
		return nil, fmt.Errorf("bus: unknown topic %q", topic)
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s.id == id {
				b.subs[topic] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}, nil
}

// Publish delivers payload to every subscriber of topic, in order.
func (b *Bus) Publish(topic Topic, payload any) {
	if !topic.Valid() {
		b.logger.Warn("bus: publish on unknown topic dropped", "topic", string(topic))
		return
	}
	b.mu.RLock()
	list := append([]subscription(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, s := range list {
		b.deliver(topic, s, payload)
	}
}

func (b *Bus) deliver(topic Topic, s subscription, payload any) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("bus: subscriber fault",
				"topic", string(topic), "subscriber", s.id, "error", fmt.Sprint(rec))
		}
	}()
	s.fn(payload)
}
