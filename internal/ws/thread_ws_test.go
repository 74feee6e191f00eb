package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lineup-chat/internal/auth"
	"lineup-chat/internal/conversation"
	"lineup-chat/internal/mocks"
	"lineup-chat/internal/models"
)

type wsFixture struct {
	server *httptest.Server
	hub    *Hub
	store  *mocks.MemoryStore
	svc    *conversation.Service
	jwt    *auth.JWT
}

func setupThreadWS(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := mocks.NewMemoryStore()
	hub := NewHub()
	svc := conversation.NewService(store, store, nil, hub)
	validator := auth.NewJWT("secret")

	r := gin.New()
	r.GET("/ws/threads/:thread_id", NewThreadWebSocketHandler(hub, svc, validator).Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &wsFixture{server: srv, hub: hub, store: store, svc: svc, jwt: validator}
}

func (f *wsFixture) url(threadID, userID string, t *testing.T) string {
	token, err := f.jwt.Issue(userID, time.Hour)
	require.NoError(t, err)
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/threads/" + threadID + "?token=" + token
}

func readEvent(t *testing.T, conn *websocket.Conn) models.ThreadEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event models.ThreadEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestThreadSocketBackfillsThenStreams(t *testing.T) {
	f := setupThreadWS(t)
	thread := f.store.SeedThread(models.ThreadTypeDirect, "ann", "ann", "bo")
	old := f.store.SeedMessage(thread.ID, "bo", "earlier", time.Now().Add(-time.Minute))

	conn, resp, err := websocket.DefaultDialer.Dial(f.url(thread.ID, "ann", t), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	history := readEvent(t, conn)
	assert.Equal(t, models.EventHistory, history.Type)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, old.ID, history.Messages[0].ID)

	sent, err := f.svc.SendMessage(context.Background(), "bo", thread.ID, "hello")
	require.NoError(t, err)

	live := readEvent(t, conn)
	assert.Equal(t, models.EventMessageCreated, live.Type)
	require.NotNil(t, live.Message)
	assert.Equal(t, sent.ID, live.Message.ID)

	// A redelivery of the same message is not forwarded twice.
	f.hub.PublishMessage(thread.ID, sent)
	require.NoError(t, f.svc.DeleteMessage(context.Background(), "bo", sent.ID))
	next := readEvent(t, conn)
	assert.Equal(t, models.EventMessageDeleted, next.Type)
	assert.Equal(t, sent.ID, next.MessageID)
}

func TestThreadSocketRejectsOutsider(t *testing.T) {
	f := setupThreadWS(t)
	thread := f.store.SeedThread(models.ThreadTypeDirect, "ann", "ann", "bo")

	_, resp, err := websocket.DefaultDialer.Dial(f.url(thread.ID, "eve", t), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, f.hub.Subscribers(thread.ID))
}

func TestThreadSocketRejectsBadToken(t *testing.T) {
	f := setupThreadWS(t)
	thread := f.store.SeedThread(models.ThreadTypeDirect, "ann", "ann", "bo")
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/threads/" + thread.ID + "?token=garbage"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestThreadClientMergesEventsDuringBackfill(t *testing.T) {
	client := &threadClient{threadID: "t1", timeline: conversation.NewTimeline()}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	live := models.Message{ID: "m2", ThreadID: "t1", CreatedAt: at.Add(time.Second)}

	// Not live yet, so nothing is written and the conn is never touched.
	require.NoError(t, client.deliver(models.ThreadEvent{Type: models.EventMessageCreated, ThreadID: "t1", Message: &live}))

	// A deletion that beats its row into the backfill keeps it out.
	require.NoError(t, client.deliver(models.ThreadEvent{Type: models.EventMessageDeleted, ThreadID: "t1", MessageID: "m0"}))

	client.timeline.Apply(models.Message{ID: "m0", ThreadID: "t1", CreatedAt: at.Add(-time.Second)})
	client.timeline.Apply(models.Message{ID: "m1", ThreadID: "t1", CreatedAt: at})
	client.timeline.Apply(live)

	msgs := client.timeline.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

// racingReader publishes changes to the rows it is about to return, the way
// a write committed between the history query and the backfill would.
type racingReader struct {
	hub     *Hub
	history []models.Message
	during  func(h *Hub)
}

func (r *racingReader) IsParticipant(context.Context, string, string) (bool, error) {
	return true, nil
}

func (r *racingReader) ListMessages(context.Context, string, string) ([]models.Message, error) {
	r.during(r.hub)
	return r.history, nil
}

func TestThreadSocketHistoryAppliesChangesRacingBackfill(t *testing.T) {
	gin.SetMode(gin.TestMode)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	edited := at.Add(time.Minute)
	hub := NewHub()
	reader := &racingReader{
		hub: hub,
		history: []models.Message{
			{ID: "m1", ThreadID: "t1", UserID: "bo", Content: "oops", CreatedAt: at},
			{ID: "m2", ThreadID: "t1", UserID: "bo", Content: "typo", CreatedAt: at.Add(time.Second)},
		},
		during: func(h *Hub) {
			h.PublishMessageDeletion("t1", "m1")
			h.PublishMessageUpdate("t1", models.Message{ID: "m2", ThreadID: "t1", UserID: "bo", Content: "fixed", CreatedAt: at.Add(time.Second), UpdatedAt: &edited})
		},
	}
	validator := auth.NewJWT("secret")
	r := gin.New()
	r.GET("/ws/threads/:thread_id", NewThreadWebSocketHandler(hub, reader, validator).Handle)
	srv := httptest.NewServer(r)
	defer srv.Close()

	token, err := validator.Issue("ann", time.Hour)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/threads/t1?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	history := readEvent(t, conn)
	assert.Equal(t, models.EventHistory, history.Type)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "m2", history.Messages[0].ID)
	assert.Equal(t, "fixed", history.Messages[0].Content)
}
