package models

import "time"

// Message is a chat message. CreatedAt fixes display order and never changes.
type Message struct {
	ID        string     `db:"message_id" json:"message_id"`
	ThreadID  string     `db:"thread_id" json:"thread_id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Content   string     `db:"message_content" json:"message_content"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Event types pushed over realtime connections.
const (
	EventMessageCreated = "message"
	EventMessageUpdated = "message_updated"
	EventMessageDeleted = "message_deleted"
	EventThreadDeleted  = "thread_deleted"
	EventHistory        = "history"
)

// ThreadEvent is broadcast to clients subscribed to a thread.
type ThreadEvent struct {
	Type      string    `json:"type"`
	ThreadID  string    `json:"thread_id"`
	Message   *Message  `json:"message,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
}
