package ws

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"lineup-chat/internal/models"
	"lineup-chat/internal/observability"
)

const wsKind = "thread"

// Handler receives thread events. Returning an error drops the subscription.
type Handler func(event models.ThreadEvent) error

// Hub fans thread events out to subscribers, keyed by thread id.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[uint64]*subscription
	nextID uint64
}

type subscription struct {
	handler Handler
	info    *ConnInfo
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[uint64]*subscription)}
}

// Subscribe registers fn for events on threadID and returns its unsubscribe func.
func (h *Hub) Subscribe(threadID string, fn Handler) func() {
	return h.subscribe(threadID, fn, nil)
}

func (h *Hub) subscribe(threadID string, fn Handler, info *ConnInfo) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if _, ok := h.rooms[threadID]; !ok {
		h.rooms[threadID] = make(map[uint64]*subscription)
	}
	h.rooms[threadID][id] = &subscription{handler: fn, info: info}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(threadID, id) })
	}
}

func (h *Hub) remove(threadID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.rooms[threadID]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.rooms, threadID)
		}
	}
}

// Subscribers reports how many subscriptions a thread has.
func (h *Hub) Subscribers(threadID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[threadID])
}

func (h *Hub) PublishMessage(threadID string, msg models.Message) {
	h.broadcast(models.ThreadEvent{Type: models.EventMessageCreated, ThreadID: threadID, Message: &msg})
}

func (h *Hub) PublishMessageUpdate(threadID string, msg models.Message) {
	h.broadcast(models.ThreadEvent{Type: models.EventMessageUpdated, ThreadID: threadID, Message: &msg})
}

func (h *Hub) PublishMessageDeletion(threadID string, messageID string) {
	h.broadcast(models.ThreadEvent{Type: models.EventMessageDeleted, ThreadID: threadID, MessageID: messageID})
}

func (h *Hub) PublishThreadDeleted(threadID string) {
	h.broadcast(models.ThreadEvent{Type: models.EventThreadDeleted, ThreadID: threadID})
}

// broadcast delivers best-effort; a failing subscriber is dropped.
func (h *Hub) broadcast(event models.ThreadEvent) {
	h.mu.RLock()
	subs := make(map[uint64]*subscription, len(h.rooms[event.ThreadID]))
	for id, sub := range h.rooms[event.ThreadID] {
		subs[id] = sub
	}
	h.mu.RUnlock()

	for id, sub := range subs {
		if err := sub.handler(event); err != nil {
			log.Warn("websocket delivery failed", "thread_id", event.ThreadID, "event", event.Type, "err", err)
			h.remove(event.ThreadID, id)
			if sub.info != nil {
				publishWSEvent(context.Background(), "ws_error", event.ThreadID, *sub.info, err.Error())
			}
		}
	}
}

func publishWSEvent(ctx context.Context, name string, threadID string, info ConnInfo, reason string) {
	observability.IncWSEvent(wsKind, name)
	_ = observability.PublishEvent(ctx, "ws_events.threads", name, map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        wsKind,
			"thread_id":   threadID,
			"event":       name,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
			"request_id":  info.RequestID,
			"trace_id":    info.TraceID,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	})
}
