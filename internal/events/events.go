// Package events provides the in-process publish/subscribe bus used to
// fan search lifecycle notifications out to API stream subscribers and
// background jobs.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a class of event
type EventType string

const (
	// SearchStarted fires when a search run begins executing rounds
	SearchStarted EventType = "search.started"
	// SearchProgress fires once per completed amplification round
	SearchProgress EventType = "search.progress"
	// SearchCompleted fires when a run reaches a determinate outcome
	SearchCompleted EventType = "search.completed"
	// SearchFailed fires when a run aborts on a backend failure
	SearchFailed EventType = "search.failed"
	// CacheMaintenance fires after a janitor pass over the circuit cache
	CacheMaintenance EventType = "cache.maintenance"
	// BackupCompleted fires after a successful cache backup upload
	BackupCompleted EventType = "backup.completed"
	// SystemStatusChanged fires when the service health state changes
	SystemStatusChanged EventType = "system.status_changed"
	// ErrorOccurred fires for errors worth surfacing to subscribers
	ErrorOccurred EventType = "error.occurred"
)

// Handler processes a published event. Handlers run on the publisher's
// goroutine for subscriptions, and must not block.
type Handler func(event EventWithData)

// Bus is a minimal synchronous publish/subscribe hub. Subscribers get
// every event published after they subscribe; there is no replay.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
	log      zerolog.Logger
}

// NewBus creates an event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[int]Handler),
		log:      log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for all events and returns an
// unsubscribe function.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish delivers the event to every current subscriber.
func (b *Bus) Publish(module string, data EventData) {
	event := EventWithData{
		Type:      data.EventType(),
		Timestamp: time.Now().UTC(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}

	b.log.Trace().Str("type", string(event.Type)).Str("module", module).Msg("Event published")
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
