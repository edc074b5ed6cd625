package eventbus

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Handler receives a message delivered by the in-process bus.
type Handler func(ctx context.Context, routingKey string, payload []byte) error

type subscription struct {
	pattern string
	handler Handler
}

// InProcessBus is a Publisher for local mode without a broker. Messages are
// delivered synchronously to handlers whose AMQP-style topic pattern matches
// the routing key. Handler failures are logged, never returned.
type InProcessBus struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

// NewInProcessBus creates a new in-process bus.
func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{logger: logger}
}

// Subscribe registers a handler for a topic pattern such as
// "booking.reservation.*" or "notifications.#".
func (b *InProcessBus) Subscribe(pattern string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{pattern: pattern, handler: handler})
}

// Publish dispatches the message to every matching handler.
func (b *InProcessBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	delivered := 0
	for _, s := range subs {
		if !MatchTopic(s.pattern, routingKey) {
			continue
		}
		delivered++
		if err := s.handler(ctx, routingKey, payload); err != nil {
			b.logger.Error("in-process handler failed",
				"routing_key", routingKey,
				"pattern", s.pattern,
				"error", err,
			)
		}
	}

	b.logger.Debug("in-process publish",
		"routing_key", routingKey,
		"handlers", delivered,
	)
	return nil
}

// Close is a no-op.
func (b *InProcessBus) Close() error {
	return nil
}

// MatchTopic reports whether routingKey matches an AMQP topic pattern, where
// "*" matches exactly one word and "#" matches zero or more words.
func MatchTopic(pattern, routingKey string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(routingKey, "."))
}

func matchWords(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(key); i++ {
			if matchWords(pattern[1:], key[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(key) > 0 && matchWords(pattern[1:], key[1:])
	default:
		return len(key) > 0 && pattern[0] == key[0] && matchWords(pattern[1:], key[1:])
	}
}
