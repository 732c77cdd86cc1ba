package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/aquadex/aquadex/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
// An empty durable name creates an ephemeral consumer that only sees new
// events, which is what each API replica wants for cache invalidation.
func NewSubscriber(url, durable string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := jetStream(conn)
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

func (s *Subscriber) SubscribeStoreEvents(ctx context.Context, handler func(ctx context.Context, event *domain.StoreEvent) error) error {
	opts := []nats.SubOpt{nats.ManualAck(), nats.MaxDeliver(3)}
	if s.durable != "" {
		opts = append(opts, nats.Durable(s.durable))
	} else {
		opts = append(opts, nats.DeliverNew())
	}

	sub, err := s.js.Subscribe(SubjectStoreEvents, func(msg *nats.Msg) {
		var event domain.StoreEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			// A malformed payload will never decode; drop it.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}, opts...)
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
