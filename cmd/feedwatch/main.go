// Command feedwatch tails a user's realtime change feed over WebSocket.
// Useful for watching cache-coherency traffic while poking the REST API.
package main

import (
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "localhost:8480", "Server host:port")
	token := flag.String("token", "", "JWT bearer token (required)")
	flag.Parse()

	if *token == "" {
		log.Fatal("a -token is required; obtain one via POST /api/auth/login")
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/api/ws"}
	header := http.Header{"Authorization": []string{"Bearer " + *token}}

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		if resp != nil {
			log.Fatalf("dial %s failed: %v (HTTP %d)", u.String(), err, resp.StatusCode)
		}
		log.Fatalf("dial %s failed: %v", u.String(), err)
	}
	defer conn.Close()
	log.Printf("connected to %s", u.String())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("<- %s", message)
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		// Close handshake, then give the read pump a moment to drain.
		err := conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Printf("close: %v", err)
			return
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}
