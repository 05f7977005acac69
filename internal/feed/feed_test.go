package feed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusRoutesByUser(t *testing.T) {
	bus := NewBus()

	var gotA, gotB []Event
	bus.Subscribe("user-a", func(e Event) { gotA = append(gotA, e) })
	bus.Subscribe("user-b", func(e Event) { gotB = append(gotB, e) })

	bus.Publish(Event{Table: TableConnectionRequests, Type: EventInsert, RowID: "r1", UserIDs: []string{"user-a"}})
	bus.Publish(Event{Table: TableConnections, Type: EventDelete, RowID: "c1", UserIDs: []string{"user-a", "user-b"}})

	assert.Len(t, gotA, 2)
	assert.Len(t, gotB, 1)
	assert.Equal(t, "c1", gotB[0].RowID)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	var got int
	unsub := bus.Subscribe("user-a", func(Event) { got++ })
	bus.Publish(Event{Table: TableConnections, Type: EventInsert, UserIDs: []string{"user-a"}})
	unsub()
	bus.Publish(Event{Table: TableConnections, Type: EventInsert, UserIDs: []string{"user-a"}})

	assert.Equal(t, 1, got)
}

func TestNotifierRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := NewBus()
	received := make(chan Event, 1)
	bus.Subscribe("user-a", func(e Event) { received <- e })

	notifier := NewNotifier(rdb)
	require.NoError(t, notifier.StartSubscriber(ctx, bus))

	// PSubscribe registration is asynchronous.
	time.Sleep(50 * time.Millisecond)

	event := Event{Table: TableConnectionRequests, Type: EventUpdate, RowID: "r9", UserIDs: []string{"user-a"}}
	require.NoError(t, notifier.Publish(ctx, event))

	select {
	case got := <-received:
		assert.Equal(t, event, got)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered through redis")
	}
}

func TestNotifierNilClientIsNoop(t *testing.T) {
	notifier := NewNotifier(nil)
	assert.NoError(t, notifier.Publish(context.Background(), Event{UserIDs: []string{"x"}}))
	assert.NoError(t, notifier.StartSubscriber(context.Background(), NewBus()))
}
