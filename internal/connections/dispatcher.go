package connections

import (
	"context"
	"sync"
	"time"

	"tapcard/internal/feed"
)

// Dispatcher links a session to the change feed. Any event on the
// connection_requests or connections tables triggers a full reconciliation
// pass; events are never applied incrementally because the feed gives no
// ordering guarantee and a full pass is idempotent and self-correcting.
// Rapid bursts (for example the two connection inserts of one acceptance)
// are coalesced: the first event arms a timer and every further event inside
// the window rides along with the single pass that fires.
type Dispatcher struct {
	session *Session
	bus     *feed.Bus
	window  time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
	unsub  func()
}

// NewDispatcher creates a dispatcher for the session with the given
// coalescing window. Zero means 250ms.
func NewDispatcher(session *Session, bus *feed.Bus, window time.Duration) *Dispatcher {
	if window <= 0 {
		window = 250 * time.Millisecond
	}
	return &Dispatcher{
		session: session,
		bus:     bus,
		window:  window,
	}
}

// Start subscribes to the session owner's change feed.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unsub != nil || d.closed {
		return
	}
	d.unsub = d.bus.Subscribe(d.session.UserID(), d.handle)
}

func (d *Dispatcher) handle(event feed.Event) {
	switch event.Table {
	case feed.TableConnectionRequests, feed.TableConnections:
		d.Trigger()
	}
}

// Trigger schedules a reconciliation pass. Triggers while the timer is
// armed are absorbed into the already-scheduled pass.
func (d *Dispatcher) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.timer != nil {
		return
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Dispatcher) fire() {
	d.mu.Lock()
	d.timer = nil
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}
	// The session's single-flight guard handles a pass that is already
	// running; pass failures are logged by the reconciler and retried on
	// the next event.
	_ = d.session.Reconcile(context.Background())
}

// Close unsubscribes from the feed and drops any scheduled pass.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.unsub != nil {
		d.unsub()
		d.unsub = nil
	}
}
