package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lineup-chat/internal/conversation"
	"lineup-chat/internal/middleware"
	"lineup-chat/internal/telemetry"
)

// MessageHandler serves message history and mutations.
type MessageHandler struct {
	svc   *conversation.Service
	audit *telemetry.AuditEmitter
}

func NewMessageHandler(svc *conversation.Service, emitter *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{svc: svc, audit: emitter}
}

type messageRequest struct {
	Content string `json:"message_content" binding:"required"`
}

func (h *MessageHandler) ListMessages(c *gin.Context) {
	msgs, err := h.svc.ListMessages(c.Request.Context(), middleware.UserID(c), c.Param("thread_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), middleware.UserID(c), c.Param("thread_id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *MessageHandler) EditMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	msg, err := h.svc.EditMessage(c.Request.Context(), middleware.UserID(c), c.Param("message_id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	if err := h.svc.DeleteMessage(c.Request.Context(), middleware.UserID(c), c.Param("message_id")); err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "message.delete", "message deleted", "")
	c.Status(http.StatusNoContent)
}
