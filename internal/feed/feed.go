// Package feed implements the change-notification stream: repositories
// publish an event after every table write, and per-user subscribers react.
// Delivery is push-based with no ordering or exactly-once guarantee, so
// consumers must treat events purely as "something changed" triggers.
package feed

import (
	"sync"

	"tapcard/internal/observability"
)

// Event types, mirroring the managed backend's change-feed vocabulary.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Table names carried in events.
const (
	TableConnectionRequests = "connection_requests"
	TableConnections        = "connections"
	TableNotifications      = "notifications"
)

// Event describes a single row change on a watched table.
type Event struct {
	Table string `json:"table"`
	Type  string `json:"type"`
	RowID string `json:"row_id"`
	// UserIDs lists the users for whom this change is relevant; the bus
	// routes the event to each of their subscriptions.
	UserIDs []string `json:"user_ids"`
}

// Handler consumes a change event. Handlers must not block: long work
// belongs behind a debounce or a queue.
type Handler func(Event)

// Publisher is the write side of the change feed.
type Publisher interface {
	Publish(event Event)
}

// Bus is an in-process change feed keyed by user id. It is the local leg of
// the feed; the redis bridge extends it across processes.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

// NewBus creates an empty in-process change feed.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for events relevant to userID and returns
// an unsubscribe function.
func (b *Bus) Subscribe(userID string, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	m, ok := b.subs[userID]
	if !ok {
		m = make(map[int]Handler)
		b.subs[userID] = m
	}
	m[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if m, ok := b.subs[userID]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(b.subs, userID)
			}
		}
	}
}

// Publish delivers the event to every subscription of every listed user.
func (b *Bus) Publish(event Event) {
	observability.FeedEvents.WithLabelValues(event.Table, event.Type).Inc()

	b.mu.RLock()
	var handlers []Handler
	for _, userID := range event.UserIDs {
		for _, fn := range b.subs[userID] {
			handlers = append(handlers, fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(event)
	}
}
