package ipc

import (
	"sync"

	"github.com/isi-macroscope/acquisition-core/internal/logging"
)

// EventBus publishes broadcast events onto the same stream a Dispatcher
// writes responses to, tagged by topic in the envelope's type field.
// Generalizes the teacher's EventManager (topic subscriptions, per-topic
// subscriber sets) down to a process-internal publish mechanism: the
// single stdio consumer receives every topic, so there is no per-client
// subscription set to track, only an optional topic filter for tests and
// internal fan-out.
type EventBus struct {
	writer *lineWriter
	logger *logging.Logger

	mu        sync.RWMutex
	listeners map[string][]func(topic string, payload interface{})
}

// NewEventBus creates an EventBus writing to the same stream as d.
func NewEventBus(d *Dispatcher, logger *logging.Logger) *EventBus {
	if logger == nil {
		logger = logging.NewLogger("ipc-eventbus")
	}
	return &EventBus{
		writer:    d.sharedWriter(),
		logger:    logger,
		listeners: make(map[string][]func(string, interface{})),
	}
}

// Publish writes a broadcast Envelope with no id, satisfying
// orchestrator.EventPublisher and analysisrun.EventPublisher.
func (b *EventBus) Publish(topic string, payload interface{}) {
	if err := b.writer.writeEnvelope(Envelope{Success: true, Type: topic, Result: payload}); err != nil {
		b.logger.WithError(err).Warn("Failed to publish event " + topic)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.listeners[topic] {
		fn(topic, payload)
	}
	for _, fn := range b.listeners["*"] {
		fn(topic, payload)
	}
}

// Subscribe registers an in-process callback for topic ("*" for every
// topic), called synchronously by Publish after the envelope is written, so
// a subscriber reacts to events without going through the stdio round trip.
func (b *EventBus) Subscribe(topic string, fn func(topic string, payload interface{})) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[topic] = append(b.listeners[topic], fn)
}
