package natsadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/soundlines/internal/core/ports"
)

// Subscriber implements ports.RefreshSubscriber on a core NATS subscription.
// Refresh requests are commands for this process only, so they are not
// persisted in JetStream.
type Subscriber struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

var _ ports.RefreshSubscriber = (*Subscriber)(nil)

// NewSubscriber connects to NATS.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Subscriber{conn: conn}, nil
}

// SubscribeRefresh calls handler for every message on soundlines.refresh.
// Requests with a reply subject get "ok" or the error text back.
func (s *Subscriber) SubscribeRefresh(ctx context.Context, handler func(ctx context.Context, kind string) error) error {
	sub, err := s.conn.Subscribe(SubjectRefresh, func(msg *nats.Msg) {
		kind, err := ParseRefreshKind(msg.Data)
		if err == nil {
			err = handler(ctx, kind)
		}
		if err != nil {
			slog.Warn("refresh request rejected", "error", err)
		}
		if msg.Reply == "" {
			return
		}
		reply := []byte("ok")
		if err != nil {
			reply = []byte(err.Error())
		}
		_ = msg.Respond(reply)
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
