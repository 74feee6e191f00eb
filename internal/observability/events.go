package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"lineup-chat/internal/models"
)

// Routing keys for domain events on the AMQP exchange.
const (
	RoutingMessageCreated = "chat.message.created"
	RoutingMessageUpdated = "chat.message.updated"
	RoutingMessageDeleted = "chat.message.deleted"
	RoutingThreadDeleted  = "chat.thread.deleted"
)

// Publisher is satisfied by rabbitmq.Publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	OccurredAt string      `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

func PublishEvent(ctx context.Context, routingKey string, eventName string, payload interface{}) error {
	if defaultPublisher == nil {
		return nil
	}

	envelope := EventEnvelope{
		EventType:  "domain_event",
		EventName:  eventName,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	}
	err := defaultPublisher.Publish(ctx, routingKey, envelope)
	if err != nil {
		IncAMQPPublishError()
		log.Warn("domain event publish failed", "routing_key", routingKey, "err", err)
	}
	return err
}

// EventNotifier forwards thread changes to the event exchange.
type EventNotifier struct {
	Timeout time.Duration
}

func (n EventNotifier) PublishMessage(threadID string, msg models.Message) {
	n.publish(RoutingMessageCreated, models.EventMessageCreated, models.ThreadEvent{Type: models.EventMessageCreated, ThreadID: threadID, Message: &msg})
}

func (n EventNotifier) PublishMessageUpdate(threadID string, msg models.Message) {
	n.publish(RoutingMessageUpdated, models.EventMessageUpdated, models.ThreadEvent{Type: models.EventMessageUpdated, ThreadID: threadID, Message: &msg})
}

func (n EventNotifier) PublishMessageDeletion(threadID string, messageID string) {
	n.publish(RoutingMessageDeleted, models.EventMessageDeleted, models.ThreadEvent{Type: models.EventMessageDeleted, ThreadID: threadID, MessageID: messageID})
}

func (n EventNotifier) PublishThreadDeleted(threadID string) {
	n.publish(RoutingThreadDeleted, models.EventThreadDeleted, models.ThreadEvent{Type: models.EventThreadDeleted, ThreadID: threadID})
}

func (n EventNotifier) publish(routingKey string, name string, event models.ThreadEvent) {
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = PublishEvent(ctx, routingKey, name, event)
}
