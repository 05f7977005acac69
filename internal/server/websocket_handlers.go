package server

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"tapcard/internal/feed"
	"tapcard/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// upgradeRequired rejects plain HTTP requests on WebSocket routes.
func upgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// wsEnvelope is the frame sent to WebSocket clients.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Event *feed.Event `json:"event,omitempty"`
	Time  time.Time   `json:"time"`
}

// WebsocketHandler streams the authenticated user's change feed. Clients use
// the events purely as "something changed" hints and re-fetch state over the
// REST API; the server-side session reconciles on the same events, so the
// fetched state is already coherent.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		observability.WebSocketConnections.Inc()
		defer observability.WebSocketConnections.Dec()

		userID, ok := conn.Locals("userID").(string)
		if !ok || userID == "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		// Make sure the session (and its dispatcher) exists so the caches
		// stay warm while the socket is open.
		if _, err := s.sessions.Session(context.Background(), userID); err != nil {
			log.Printf("WebSocket: session init failed for %s: %v", userID, err)
		}

		events := make(chan feed.Event, 16)
		unsub := s.bus.Subscribe(userID, func(event feed.Event) {
			// Drop on a full buffer: a slow client only loses hints, and
			// the next event it does receive triggers a full re-fetch.
			select {
			case events <- event:
			default:
			}
		})
		defer unsub()

		hello, _ := json.Marshal(wsEnvelope{Type: "hello", Time: time.Now().UTC()})
		if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
			return
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case event := <-events:
				payload, err := json.Marshal(wsEnvelope{Type: "change", Event: &event, Time: time.Now().UTC()})
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			case <-ping.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
}
