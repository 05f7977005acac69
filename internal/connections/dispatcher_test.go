package connections

import (
	"testing"
	"time"

	"tapcard/internal/feed"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestEvent(userID string) feed.Event {
	return feed.Event{
		Table:   feed.TableConnectionRequests,
		Type:    feed.EventInsert,
		RowID:   uuid.NewString(),
		UserIDs: []string{userID},
	}
}

func TestDispatcherCoalescesBurst(t *testing.T) {
	store := newFakeStore()
	me := store.addProfile("Me", "me@example.com")
	bus := feed.NewBus()
	session := newTestSession(store, me.ID, nil)

	d := NewDispatcher(session, bus, 50*time.Millisecond)
	d.Start()
	defer d.Close()

	// A burst well inside one debounce window, like the row changes of a
	// single acceptance arriving back to back.
	for i := 0; i < 3; i++ {
		bus.Publish(requestEvent(me.ID))
	}

	require.Eventually(t, func() bool {
		return store.listRequestCalls() == 1
	}, time.Second, 10*time.Millisecond)

	// And no trailing extra pass once the window has drained.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, store.listRequestCalls())
}

func TestDispatcherSeparateBurstsSeparatePasses(t *testing.T) {
	store := newFakeStore()
	me := store.addProfile("Me", "me@example.com")
	bus := feed.NewBus()
	session := newTestSession(store, me.ID, nil)

	d := NewDispatcher(session, bus, 20*time.Millisecond)
	d.Start()
	defer d.Close()

	bus.Publish(requestEvent(me.ID))
	require.Eventually(t, func() bool {
		return store.listRequestCalls() == 1
	}, time.Second, 5*time.Millisecond)

	bus.Publish(requestEvent(me.ID))
	require.Eventually(t, func() bool {
		return store.listRequestCalls() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestDispatcherIgnoresUnrelatedEvents(t *testing.T) {
	store := newFakeStore()
	me := store.addProfile("Me", "me@example.com")
	bus := feed.NewBus()
	session := newTestSession(store, me.ID, nil)

	d := NewDispatcher(session, bus, 10*time.Millisecond)
	d.Start()
	defer d.Close()

	// Notification-table traffic never forces a reconciliation pass.
	bus.Publish(feed.Event{
		Table:   feed.TableNotifications,
		Type:    feed.EventInsert,
		RowID:   uuid.NewString(),
		UserIDs: []string{me.ID},
	})
	// Neither do other users' events: the bus routes by user id.
	bus.Publish(requestEvent(uuid.NewString()))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, store.listRequestCalls())
}

func TestDispatcherCloseDropsScheduledPass(t *testing.T) {
	store := newFakeStore()
	me := store.addProfile("Me", "me@example.com")
	bus := feed.NewBus()
	session := newTestSession(store, me.ID, nil)

	d := NewDispatcher(session, bus, 50*time.Millisecond)
	d.Start()

	bus.Publish(requestEvent(me.ID))
	d.Close()

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, store.listRequestCalls())

	// Events after Close are not delivered at all.
	bus.Publish(requestEvent(me.ID))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, store.listRequestCalls())
}
