package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lineup-chat/internal/apperr"
	"lineup-chat/internal/mocks"
	"lineup-chat/internal/models"
)

func TestListMessagesOrdersByCreatedAt(t *testing.T) {
	svc, store, _ := newTestService(t)
	thread := store.SeedThread(models.ThreadTypeDirect, "ann", "ann", "bo")
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m2 := store.SeedMessage(thread.ID, "bo", "second", t1.Add(time.Second))
	m1 := store.SeedMessage(thread.ID, "ann", "first", t1)

	msgs, err := svc.ListMessages(context.Background(), "ann", thread.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, m1.ID, msgs[0].ID)
	assert.Equal(t, m2.ID, msgs[1].ID)
}

func TestListMessagesRequiresParticipant(t *testing.T) {
	svc, store, _ := newTestService(t)
	thread := store.SeedThread(models.ThreadTypeDirect, "ann", "ann", "bo")

	_, err := svc.ListMessages(context.Background(), "eve", thread.ID)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestSendMessage(t *testing.T) {
	svc, store, notifier := newTestService(t)
	thread := store.SeedThread(models.ThreadTypeDirect, "ann", "ann", "bo")

	msg, err := svc.SendMessage(context.Background(), "ann", thread.ID, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, thread.ID, msg.ThreadID)
	require.Len(t, notifier.created, 1)
	assert.Equal(t, msg.ID, notifier.created[0].ID)
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	svc, store, notifier := newTestService(t)
	thread := store.SeedThread(models.ThreadTypeDirect, "ann", "ann", "bo")

	_, err := svc.SendMessage(context.Background(), "eve", thread.ID, "let me in")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	msgs, err := store.ListMessages(context.Background(), thread.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, notifier.created)
}

func TestSendMessageValidatesContent(t *testing.T) {
	svc, store, _ := newTestService(t)
	thread := store.SeedThread(models.ThreadTypeDirect, "ann", "ann", "bo")

	_, err := svc.SendMessage(context.Background(), "ann", thread.ID, "   ")
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.SendMessage(context.Background(), "ann", thread.ID, strings.Repeat("x", MaxMessageLength+1))
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSendMessageToMissingThread(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.SendMessage(context.Background(), "ann", "missing", "hi")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEditMessageOnlyBySender(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()
	thread := store.SeedThread(models.ThreadTypeDirect, "ann", "ann", "bo")
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := store.SeedMessage(thread.ID, "ann", "draft", created)

	_, err := svc.EditMessage(ctx, "bo", msg.ID, "hijacked")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	edited, err := svc.EditMessage(ctx, "ann", msg.ID, "final")
	require.NoError(t, err)
	assert.Equal(t, "final", edited.Content)
	assert.True(t, edited.CreatedAt.Equal(created))
	require.NotNil(t, edited.UpdatedAt)
	require.Len(t, notifier.updated, 1)
}

func TestDeleteMessageOnlyBySender(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()
	thread := store.SeedThread(models.ThreadTypeDirect, "ann", "ann", "bo")
	msg := store.SeedMessage(thread.ID, "ann", "oops", time.Now())

	require.ErrorIs(t, svc.DeleteMessage(ctx, "bo", msg.ID), apperr.ErrUnauthorized)
	_, err := store.GetMessage(ctx, msg.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMessage(ctx, "ann", msg.ID))
	_, err = store.GetMessage(ctx, msg.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, []string{msg.ID}, notifier.deleted)

	require.ErrorIs(t, svc.DeleteMessage(ctx, "ann", msg.ID), apperr.ErrNotFound)
}

func TestSortMessagesBreaksTiesByID(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		{ID: "b", CreatedAt: at},
		{ID: "c", CreatedAt: at.Add(-time.Second)},
		{ID: "a", CreatedAt: at},
	}

	SortMessages(msgs)

	assert.Equal(t, "c", msgs[0].ID)
	assert.Equal(t, "a", msgs[1].ID)
	assert.Equal(t, "b", msgs[2].ID)
}

func TestNotifiersFanOut(t *testing.T) {
	first, second := &recordingNotifier{}, &recordingNotifier{}
	store := mocks.NewMemoryStore()
	svc := NewService(store, store, nil, Notifiers{first, second})
	thread := store.SeedThread(models.ThreadTypeDirect, "ann", "ann", "bo")

	msg, err := svc.SendMessage(context.Background(), "ann", thread.ID, "hi")
	require.NoError(t, err)

	for _, n := range []*recordingNotifier{first, second} {
		require.Len(t, n.created, 1)
		assert.Equal(t, msg.ID, n.created[0].ID)
	}
}
