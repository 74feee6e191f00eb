package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"lineup-chat/internal/observability"
	"lineup-chat/internal/telemetry"
)

const appID = "lineup-chat"

// Publisher publishes audit and domain events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Dial connects to the broker and declares a durable topic exchange.
func Dial(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, errors.Wrap(err, "dial broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}
	// durable, not auto-deleted, not internal, wait for the broker
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %q", exchange)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// NewPublisher returns a broker publisher, or a noop one that only logs
// when the URL is empty or the broker cannot be reached.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		return noopPublisher{reason: "empty amqp url"}
	}
	p, err := Dial(amqpURL, exchange)
	if err != nil {
		log.Warn("rabbitmq unavailable, events will only be logged", "err", err)
		return noopPublisher{reason: err.Error()}
	}
	log.Info("rabbitmq connected", "exchange", exchange)
	return p
}

// AMQPPublisher serializes publishes on a single channel; amqp channels
// must not be shared between goroutines without a lock.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	msg := amqp.Publishing{
		AppId:        appID,
		MessageId:    uuid.NewString(),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		observability.IncAMQPPublishError()
		log.Error("rabbitmq publish failed", "routing_key", routingKey, "err", err)
		return errors.Wrapf(err, "publish %s", routingKey)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

type noopPublisher struct {
	reason string
}

func (noopPublisher) Publish(_ context.Context, routingKey string, event any) error {
	fields := []any{"routing_key", routingKey}
	switch e := event.(type) {
	case telemetry.AuditEnvelope:
		fields = append(fields, "action", e.Payload.Action, "request_id", e.RequestID)
	case observability.EventEnvelope:
		fields = append(fields, "event", e.EventName)
	}
	log.Debug("event dropped (noop publisher)", fields...)
	return nil
}

func (noopPublisher) Close() error { return nil }

// PublisherMode reports "amqp" or "noop" for startup logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *AMQPPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	}
	return "unknown"
}

func PublisherNoopReason(p Publisher) string {
	if n, ok := p.(noopPublisher); ok {
		return n.reason
	}
	return ""
}
