package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"lineup-chat/internal/apperr"
	"lineup-chat/internal/auth"
	"lineup-chat/internal/conversation"
	"lineup-chat/internal/models"
	"lineup-chat/internal/observability"
)

const writeWait = 10 * time.Second

// ThreadReader is the slice of the conversation service the socket needs.
type ThreadReader interface {
	IsParticipant(ctx context.Context, threadID string, userID string) (bool, error)
	ListMessages(ctx context.Context, viewerID string, threadID string) ([]models.Message, error)
}

// ThreadWebSocketHandler streams a thread's messages to a participant.
type ThreadWebSocketHandler struct {
	hub       *Hub
	threads   ThreadReader
	validator auth.TokenValidator
}

func NewThreadWebSocketHandler(hub *Hub, threads ThreadReader, validator auth.TokenValidator) *ThreadWebSocketHandler {
	return &ThreadWebSocketHandler{hub: hub, threads: threads, validator: validator}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, upgrades, subscribes, then backfills history.
// Live events that arrive during the backfill are merged into it.
func (h *ThreadWebSocketHandler) Handle(c *gin.Context) {
	threadID := c.Param("thread_id")

	ctx, span := otel.Tracer("lineup-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.validator.Validate(observability.BearerToken(c.Request))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "invalid_token", "message": err.Error()}})
		return
	}

	member, err := h.threads.IsParticipant(ctx, threadID, userID)
	if err != nil {
		kind := apperr.KindOf(err)
		c.JSON(apperr.HTTPStatus(kind), gin.H{"error": gin.H{"code": string(kind), "message": apperr.MessageOf(err)}})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"code": string(apperr.KindUnauthorized), "message": "not a thread participant"}})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := newThreadClient(conn, threadID)
	unsubscribe := h.hub.subscribe(threadID, client.deliver, &info)

	observability.IncWSActive(wsKind)
	publishWSEvent(ctx, "ws_connect", threadID, info, "")

	history, err := h.threads.ListMessages(ctx, userID, threadID)
	if err != nil {
		log.Error("websocket backfill failed", "thread_id", threadID, "user_id", userID, "err", err)
		unsubscribe()
		observability.DecWSActive(wsKind)
		_ = conn.Close()
		return
	}
	if err := client.backfill(history); err != nil {
		unsubscribe()
		observability.DecWSActive(wsKind)
		_ = conn.Close()
		return
	}

	go func() {
		var closeReason string
		defer func() {
			unsubscribe()
			observability.DecWSActive(wsKind)
			publishWSEvent(context.Background(), "ws_disconnect", threadID, info, closeReason)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					publishWSEvent(context.Background(), "ws_error", threadID, info, closeReason)
				}
				return
			}
		}
	}()
}

// threadClient serializes writes to one socket and keeps its timeline.
type threadClient struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	threadID string
	timeline *conversation.Timeline
	live     bool
}

func newThreadClient(conn *websocket.Conn, threadID string) *threadClient {
	return &threadClient{conn: conn, threadID: threadID, timeline: conversation.NewTimeline()}
}

func (c *threadClient) deliver(event models.ThreadEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := true
	switch event.Type {
	case models.EventMessageCreated:
		changed = event.Message != nil && c.timeline.Apply(*event.Message)
	case models.EventMessageUpdated:
		changed = event.Message != nil && c.timeline.Update(*event.Message)
	case models.EventMessageDeleted:
		changed = c.timeline.Remove(event.MessageID)
	}
	if !c.live || !changed {
		return nil
	}
	return c.write(event)
}

func (c *threadClient) backfill(history []models.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, msg := range history {
		c.timeline.Apply(msg)
	}
	c.live = true
	return c.write(models.ThreadEvent{Type: models.EventHistory, ThreadID: c.threadID, Messages: c.timeline.Messages()})
}

func (c *threadClient) write(event models.ThreadEvent) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(event)
}
