package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/aquadex/aquadex/internal/adapters/nats"
	"github.com/aquadex/aquadex/internal/core/domain"
	"github.com/aquadex/aquadex/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to feeds.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "updates" | "events" (default: updates)
	Event   string `json:"event"`   // event type filter for "events" (optional, "" = all)
}

// wsSubject maps a client subscription request onto a NATS subject.
func wsSubject(m wsMessage) (string, bool) {
	switch m.Channel {
	case "", "updates":
		return natsadapter.SubjectBroadcast, true
	case "events":
		switch domain.StoreEventType(m.Event) {
		case "":
			return natsadapter.SubjectStoreEvents, true
		case domain.StoreUpserted, domain.StoreDeleted, domain.StoreImported:
			return natsadapter.StoreEventSubject(domain.StoreEventType(m.Event)), true
		}
	}
	return "", false
}

// WebSocketHandler returns a handler that upgrades to WebSocket
// and relays store directory changes from NATS to connected clients.
// Clients send JSON: {"action":"subscribe","channel":"events","event":"deleted"}
// Every connection starts subscribed to the broadcast feed.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		// Helper: thread-safe write
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		relay := func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		}

		sub, err := nc.Subscribe(natsadapter.SubjectBroadcast, relay)
		if err != nil {
			slog.Error("ws default subscribe failed", "remote", remoteAddr, "error", err)
			return
		}
		subs[natsadapter.SubjectBroadcast] = sub

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		// Read client messages for subscribe/unsubscribe
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject, ok := wsSubject(m)
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown channel or event: " + m.Channel + "/" + m.Event})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, relay)
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		// Cleanup
		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
