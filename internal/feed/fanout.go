package feed

import (
	"context"
	"log"
)

// Fanout publishes every event both to the local bus and to Redis. The
// Redis subscriber re-injects remote publishes into the local bus, so a
// process can see its own event twice; consumers debounce, and passes are
// idempotent, so duplicate delivery is harmless.
type Fanout struct {
	bus      *Bus
	notifier *Notifier
}

// NewFanout creates a publisher writing to bus and, when notifier is
// non-nil, to Redis.
func NewFanout(bus *Bus, notifier *Notifier) *Fanout {
	return &Fanout{bus: bus, notifier: notifier}
}

// Publish delivers the event locally and best-effort across processes.
func (f *Fanout) Publish(event Event) {
	f.bus.Publish(event)
	if f.notifier != nil {
		if err := f.notifier.Publish(context.Background(), event); err != nil {
			log.Printf("feed: redis publish failed for %s/%s: %v", event.Table, event.Type, err)
		}
	}
}
