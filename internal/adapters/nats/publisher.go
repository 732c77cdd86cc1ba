package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aquadex/aquadex/internal/core/domain"
)

const (
	// SubjectStoreEvents is the wildcard covering every store event subject.
	SubjectStoreEvents = "stores.events.>"
	// SubjectBroadcast carries fan-out updates for WebSocket clients.
	SubjectBroadcast = "stores.updates.broadcast"
)

// StoreEventSubject returns the subject a store event of type t is published on.
func StoreEventSubject(t domain.StoreEventType) string {
	return "stores.events." + string(t)
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return newPublisher(conn)
}

// newPublisher ensures the store event stream on conn. conn is closed on
// failure; RawConn reconnects forever and would otherwise leak.
func newPublisher(conn *nats.Conn, opts ...nats.JSOpt) (*Publisher, error) {
	js, err := jetStream(conn, opts...)
	if err != nil {
		return nil, err
	}

	// Every API replica reads the stream to invalidate its cache, so
	// messages stay until they age out instead of being consumed once.
	cfg := &nats.StreamConfig{
		Name:      "STORE_EVENTS",
		Subjects:  []string{SubjectStoreEvents},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// jetStream opens a JetStream context, closing conn if that fails.
func jetStream(conn *nats.Conn, opts ...nats.JSOpt) (nats.JetStreamContext, error) {
	js, err := conn.JetStream(opts...)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return js, nil
}

// PublishStoreEvent writes event to JetStream and mirrors it on the
// broadcast subject for live map clients.
func (p *Publisher) PublishStoreEvent(ctx context.Context, event *domain.StoreEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := p.js.Publish(StoreEventSubject(event.Type), data, nats.Context(ctx)); err != nil {
		return err
	}
	return p.PublishBroadcast(ctx, data)
}

func (p *Publisher) PublishBroadcast(ctx context.Context, data []byte) error {
	return p.conn.Publish(SubjectBroadcast, data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("aquadex"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
