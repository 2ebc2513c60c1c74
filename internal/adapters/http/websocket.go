package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/soundlines/internal/adapters/nats"
)

// wsMessage is sent from client to subscribe/unsubscribe or trigger a refresh.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe" | "refresh"
	Channel string `json:"channel"` // "entities" | "cells" | "all" (default: all)
}

// wsSubject maps a client channel onto a NATS subject.
func wsSubject(channel string) (string, bool) {
	switch channel {
	case "", "all":
		return natsadapter.SubjectSnapshotAll, true
	case "entities", "cells":
		return natsadapter.SnapshotSubject(channel), true
	default:
		return "", false
	}
}

// overlappingSubjects returns the active subjects that deliver the same
// events as subject. They are dropped before subscribing to subject so a
// client never receives an event twice.
func overlappingSubjects(active []string, subject string) []string {
	var out []string
	for _, a := range active {
		if a == subject {
			continue
		}
		if subject == natsadapter.SubjectSnapshotAll || a == natsadapter.SubjectSnapshotAll {
			out = append(out, a)
		}
	}
	slices.Sort(out)
	return out
}

// WebSocketHandler returns a handler that upgrades to WebSocket and relays
// snapshot events from NATS to connected clients.
// Clients send JSON: {"action":"subscribe","channel":"cells"}
// Every client starts subscribed to all snapshot events. Subscribing to one
// collection replaces the catch-all subscription and vice versa.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		logger := slog.Default().With("component", "ws", "remote", remoteAddr)
		logger.Info("ws client connected")

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

		subscribe := func(subject string) error {
			if deps.NATS == nil {
				return nats.ErrConnectionClosed
			}
			s, err := deps.NATS.Subscribe(subject, func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				return err
			}
			subs[subject] = s
			return nil
		}

		if err := subscribe(natsadapter.SubjectSnapshotAll); err != nil {
			logger.Warn("ws default subscribe failed", "error", err)
			_ = writeJSON(map[string]string{"error": "event stream unavailable"})
		}

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

		// Read client messages
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

			if m.Action == "refresh" {
				if deps.Viewer == nil {
					_ = writeJSON(map[string]string{"error": "viewer not running"})
					continue
				}
				if err := deps.Viewer.Refresh(context.Background(), m.Channel); err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
					continue
				}
				_ = writeJSON(map[string]string{"status": "refresh accepted", "channel": m.Channel})
				continue
			}

			subject, ok := wsSubject(m.Channel)
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				active := make([]string, 0, len(subs))
				for a := range subs {
					active = append(active, a)
				}
				dropped := overlappingSubjects(active, subject)
				for _, a := range dropped {
					_ = subs[a].Unsubscribe()
					delete(subs, a)
				}
				if err := subscribe(subject); err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				if len(dropped) > 0 {
					logger.Debug("ws subscription replaced", "subject", subject, "dropped", dropped)
				}
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
		logger.Info("ws client disconnected")
	}
}
