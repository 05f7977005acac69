package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"

	"tapcard/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Notifier bridges the in-process bus over Redis pub/sub so change events
// reach every server process holding a session for the affected users.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// UserChannel derives the Redis channel name for a user's change feed.
func UserChannel(userID string) string {
	return "feed:user:" + userID
}

// Publish fans the event out to each affected user's channel. A nil Redis
// client degrades to local-only delivery.
func (n *Notifier) Publish(ctx context.Context, event Event) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	for _, userID := range event.UserIDs {
		if err := n.rdb.Publish(ctx, UserChannel(userID), payload).Err(); err != nil {
			observability.RedisErrors.WithLabelValues("publish").Inc()
			return err
		}
	}
	return nil
}

// StartSubscriber subscribes to the pattern `feed:user:*` and re-injects
// every incoming event into the local bus until ctx is cancelled.
func (n *Notifier) StartSubscriber(ctx context.Context, bus *Bus) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "feed:user:*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in feed subscriber: %v\n%s", r, debug.Stack())
						}
					}()
					var event Event
					if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
						log.Printf("feed subscriber: malformed payload on %s: %v", msg.Channel, err)
						return
					}
					bus.Publish(event)
				}()
			}
		}
	}()

	return nil
}
