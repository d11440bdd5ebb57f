// Package events is the fire-and-forget broadcast channel between the
// inference layer and external observers (UI, supervisors). Emitters must
// never block the caller and never surface errors into the inference path.
package events

import (
	"sync"

	"github.com/lumenlab/axon/pkg/logging"
	"go.uber.org/zap"
)

// Topics published by this module.
const (
	TopicTokens     = "tokens"
	TopicInference  = "inference"
	TopicAgentState = "agent-state"
)

// TokensPayload is published on the "tokens" topic after each usage update.
type TokensPayload struct {
	TokenUsage int `json:"token_usage"`
}

// InferencePayload is published on the "inference" topic for heartbeats,
// slow warnings and errors.
type InferencePayload struct {
	Type        string `json:"type"` // "time", "warning" or "error"
	ElapsedTime string `json:"elapsed_time,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Event pairs a topic with its payload.
type Event struct {
	Topic   string
	Payload any
}

// Emitter publishes events to external observers. Implementations must be
// safe for concurrent use and must not block.
type Emitter interface {
	Emit(topic string, payload any)
}

// NopEmitter discards all events.
type NopEmitter struct{}

// Emit discards the event.
func (NopEmitter) Emit(string, any) {}

// Bus fans events out to a subscriber channel without ever blocking the
// publisher. Events are dropped when the buffer is full; the drop count is
// logged periodically rather than per event.
type Bus struct {
	ch     chan Event
	logger *logging.Logger

	mu      sync.Mutex
	dropped uint64
}

// NewBus creates a bus with the given buffer size.
func NewBus(size int, logger *logging.Logger) *Bus {
	if size <= 0 {
		size = 256
	}
	return &Bus{
		ch:     make(chan Event, size),
		logger: logger,
	}
}

// Emit publishes the event, dropping it if the buffer is full.
func (b *Bus) Emit(topic string, payload any) {
	select {
	case b.ch <- Event{Topic: topic, Payload: payload}:
	default:
		b.mu.Lock()
		b.dropped++
		n := b.dropped
		b.mu.Unlock()
		if n%100 == 1 {
			b.logger.Warn("event bus full, dropping events", zap.Uint64("dropped", n))
		}
	}
}

// Events returns the subscriber channel.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Dropped returns the number of events dropped so far.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Capture records every emitted event. Test helper.
type Capture struct {
	mu     sync.Mutex
	events []Event
}

// NewCapture creates an empty capture emitter.
func NewCapture() *Capture {
	return &Capture{}
}

// Emit records the event.
func (c *Capture) Emit(topic string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Event{Topic: topic, Payload: payload})
}

// Events returns a copy of all recorded events.
func (c *Capture) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// ByTopic returns recorded events for one topic.
func (c *Capture) ByTopic(topic string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
