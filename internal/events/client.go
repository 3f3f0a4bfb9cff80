package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Client publishes and consumes match events. Scorecard, alert, feedback and
// weight events are append-only facts, so publishes are JetStream-acknowledged
// rather than fire-and-forget core NATS.
type Client interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Subscribe(subject string, handler func(subject string, data []byte)) error
	Close()
}

type NATSClient struct {
	conn      *nats.Conn
	js        jetstream.JetStream
	consumers []jetstream.ConsumeContext
	logger    *slog.Logger
}

// NewNATSClient connects and ensures the event stream exists. Stream creation
// is not optional here: every publish expects an acknowledgement, which needs
// the stream in place.
func NewNATSClient(ctx context.Context, url string, retention time.Duration, logger *slog.Logger) (*NATSClient, error) {
	nc, err := nats.Connect(url,
		nats.Name("homematch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{"homematch.scorecard.>", "homematch.alert.>", "homematch.feedback.>", "homematch.weights.>"},
		MaxAge:   retention,
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}

	return &NATSClient{conn: nc, js: js, logger: logger}, nil
}

func (c *NATSClient) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ack, err := c.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	c.logger.Debug("event published", "subject", subject, "seq", ack.Sequence)
	return nil
}

// Subscribe attaches a durable ack-explicit consumer so feedback events
// survive a restart of the recompute worker.
func (c *NATSClient) Subscribe(subject string, handler func(subject string, data []byte)) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cons, err := c.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durableName(subject),
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("consumer for %s: %w", subject, err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		handler(msg.Subject(), msg.Data())
		if err := msg.Ack(); err != nil {
			c.logger.Warn("event ack failed", "subject", msg.Subject(), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", subject, err)
	}
	c.consumers = append(c.consumers, cc)
	return nil
}

func (c *NATSClient) Close() {
	for _, cc := range c.consumers {
		cc.Stop()
	}
	c.conn.Close()
}

// Durable names cannot contain subject token characters.
func durableName(subject string) string {
	return "homematch_" + strings.NewReplacer(".", "_", "*", "any", ">", "all").Replace(subject)
}
