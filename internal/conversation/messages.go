package conversation

import (
	"context"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"lineup-chat/internal/apperr"
	"lineup-chat/internal/models"
	"lineup-chat/internal/observability"
)

// MaxMessageLength bounds a message body in runes.
const MaxMessageLength = 4000

// SendMessage appends a message to the thread. Only current participants may post.
func (s *Service) SendMessage(ctx context.Context, senderID string, threadID string, content string) (models.Message, error) {
	ctx, span := tracer.Start(ctx, "conversation.SendMessage")
	defer span.End()

	content, err := normalizeContent(content)
	if err != nil {
		return models.Message{}, err
	}
	if err := s.requireParticipant(ctx, threadID, senderID); err != nil {
		return models.Message{}, s.fail("send_message", threadID, senderID, err)
	}

	msg, err := s.messages.InsertMessage(ctx, threadID, senderID, content)
	if err != nil {
		return models.Message{}, s.fail("send_message", threadID, senderID, err)
	}

	observability.IncMessagesSent()
	s.notifier.PublishMessage(threadID, msg)
	return msg, nil
}

// EditMessage replaces the content of the sender's own message and stamps updated_at.
func (s *Service) EditMessage(ctx context.Context, senderID string, messageID string, content string) (models.Message, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return models.Message{}, err
	}
	existing, err := s.ownMessage(ctx, senderID, messageID)
	if err != nil {
		return models.Message{}, s.fail("edit_message", "", senderID, err)
	}

	msg, err := s.messages.UpdateMessageContent(ctx, messageID, content)
	if err != nil {
		return models.Message{}, s.fail("edit_message", existing.ThreadID, senderID, err)
	}
	s.notifier.PublishMessageUpdate(msg.ThreadID, msg)
	return msg, nil
}

// DeleteMessage removes the sender's own message.
func (s *Service) DeleteMessage(ctx context.Context, senderID string, messageID string) error {
	existing, err := s.ownMessage(ctx, senderID, messageID)
	if err != nil {
		return s.fail("delete_message", "", senderID, err)
	}
	if err := s.messages.DeleteMessage(ctx, messageID); err != nil {
		return s.fail("delete_message", existing.ThreadID, senderID, err)
	}
	s.notifier.PublishMessageDeletion(existing.ThreadID, messageID)
	log.Debug("message deleted", "thread_id", existing.ThreadID, "message_id", messageID, "user_id", senderID)
	return nil
}

// ListMessages returns the thread history oldest first, ties broken by id.
func (s *Service) ListMessages(ctx context.Context, viewerID string, threadID string) ([]models.Message, error) {
	if err := s.requireParticipant(ctx, threadID, viewerID); err != nil {
		return nil, s.fail("list_messages", threadID, viewerID, err)
	}
	msgs, err := s.messages.ListMessages(ctx, threadID)
	if err != nil {
		return nil, s.fail("list_messages", threadID, viewerID, err)
	}
	SortMessages(msgs)
	return msgs, nil
}

// SortMessages orders messages by created_at then id.
func SortMessages(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return messageBefore(msgs[i], msgs[j])
	})
}

func messageBefore(a, b models.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (s *Service) ownMessage(ctx context.Context, senderID string, messageID string) (models.Message, error) {
	if messageID == "" {
		return models.Message{}, apperr.Validation("message_id is required")
	}
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.UserID != senderID {
		return models.Message{}, apperr.Unauthorized("only the sender can change a message")
	}
	return msg, nil
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.Validation("message content is required")
	}
	if len([]rune(content)) > MaxMessageLength {
		return "", apperr.Validation("message content is too long")
	}
	return content, nil
}
