package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"lineup-chat/internal/apperr"
	"lineup-chat/internal/models"
)

const messageColumns = `message_id, thread_id, user_id, message_content, created_at, updated_at`

// MessageRepository defines interactions for thread messages.
type MessageRepository interface {
	InsertMessage(ctx context.Context, threadID string, userID string, content string) (models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	UpdateMessageContent(ctx context.Context, messageID string, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	ListMessages(ctx context.Context, threadID string) ([]models.Message, error)
	LastMessages(ctx context.Context, threadIDs []string) (map[string]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db   *sqlx.DB
	call caller
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB, opts Options) *MessageRepo {
	return &MessageRepo{db: db, call: newCaller(opts)}
}

// InsertMessage stores a message; created_at is assigned by the database.
func (r *MessageRepo) InsertMessage(ctx context.Context, threadID string, userID string, content string) (models.Message, error) {
	var msg models.Message
	err := r.call.do(ctx, "insert message", func(ctx context.Context) error {
		return r.db.QueryRowxContext(ctx, `INSERT INTO messages (thread_id, user_id, message_content) VALUES ($1, $2, $3) RETURNING `+messageColumns, threadID, userID, content).
			StructScan(&msg)
	})
	return msg, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.call.do(ctx, "get message", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE message_id=$1`, messageID)
	})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return models.Message{}, apperr.NotFound("message not found")
	}
	return msg, err
}

// UpdateMessageContent replaces the content and stamps updated_at; created_at is untouched.
func (r *MessageRepo) UpdateMessageContent(ctx context.Context, messageID string, content string) (models.Message, error) {
	var msg models.Message
	err := r.call.do(ctx, "update message", func(ctx context.Context) error {
		return r.db.QueryRowxContext(ctx, `UPDATE messages SET message_content=$1, updated_at=NOW() WHERE message_id=$2 RETURNING `+messageColumns, content, messageID).
			StructScan(&msg)
	})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return models.Message{}, apperr.NotFound("message not found")
	}
	return msg, err
}

// DeleteMessage removes a single message.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID string) error {
	return r.call.do(ctx, "delete message", func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE message_id=$1`, messageID)
		if err != nil {
			return err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return apperr.NotFound("message not found")
		}
		return nil
	})
}

// ListMessages returns a thread's messages by ascending creation time.
func (r *MessageRepo) ListMessages(ctx context.Context, threadID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.call.do(ctx, "list messages", func(ctx context.Context) error {
		msgs = nil
		return r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE thread_id=$1 ORDER BY created_at ASC, message_id ASC`, threadID)
	})
	return msgs, err
}

// LastMessages returns the newest message of each given thread.
func (r *MessageRepo) LastMessages(ctx context.Context, threadIDs []string) (map[string]models.Message, error) {
	result := make(map[string]models.Message, len(threadIDs))
	if len(threadIDs) == 0 {
		return result, nil
	}

	var msgs []models.Message
	err := r.call.do(ctx, "last messages", func(ctx context.Context) error {
		msgs = nil
		return r.db.SelectContext(ctx, &msgs, `SELECT DISTINCT ON (thread_id) `+messageColumns+`
            FROM messages WHERE thread_id = ANY($1)
            ORDER BY thread_id, created_at DESC, message_id DESC`, pq.Array(threadIDs))
	})
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		result[m.ThreadID] = m
	}
	return result, nil
}
