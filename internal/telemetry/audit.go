package telemetry

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter publishes audit_log envelopes for user-visible mutations.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level    string `json:"level"`
	Action   string `json:"action"`
	Text     string `json:"text"`
	ThreadID string `json:"thread_id,omitempty"`
	IP       string `json:"ip,omitempty"`
}

// AuditEntry describes one audited action.
type AuditEntry struct {
	Level     string
	Action    string
	Text      string
	RequestID string
	UserID    string
	ThreadID  string
	IP        string
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, entry AuditEntry) {
	if e == nil || e.publisher == nil {
		return
	}
	if entry.Level == "" {
		entry.Level = "INFO"
	}

	var userID *string
	if entry.UserID != "" {
		id := entry.UserID
		userID = &id
	}

	log.Debug("audit emit", "action", entry.Action, "request_id", entry.RequestID, "user_id", entry.UserID, "thread_id", entry.ThreadID)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     entry.RequestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level:    entry.Level,
			Action:   entry.Action,
			Text:     entry.Text,
			ThreadID: entry.ThreadID,
			IP:       entry.IP,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Warn("audit publish failed", "action", entry.Action, "err", err)
	}
}
