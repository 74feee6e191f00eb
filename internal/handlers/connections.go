package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lineup-chat/internal/apperr"
	"lineup-chat/internal/middleware"
	"lineup-chat/internal/models"
	"lineup-chat/internal/repositories"
	"lineup-chat/internal/telemetry"
)

// ConnectionHandler manages contact requests between users.
type ConnectionHandler struct {
	repo  repositories.ConnectionRepository
	audit *telemetry.AuditEmitter
}

func NewConnectionHandler(repo repositories.ConnectionRepository, emitter *telemetry.AuditEmitter) *ConnectionHandler {
	return &ConnectionHandler{repo: repo, audit: emitter}
}

// ListConnections accepts an optional status filter of pending or accepted.
func (h *ConnectionHandler) ListConnections(c *gin.Context) {
	var status *models.ConnectionStatus
	if raw := c.Query("status"); raw != "" {
		s := models.ConnectionStatus(raw)
		if s != models.ConnectionPending && s != models.ConnectionAccepted {
			respondBadRequest(c, "status must be pending or accepted")
			return
		}
		status = &s
	}

	conns, err := h.repo.ListForUser(c.Request.Context(), middleware.UserID(c), status)
	if err != nil {
		respondError(c, err)
		return
	}
	if conns == nil {
		conns = []models.Connection{}
	}
	c.JSON(http.StatusOK, gin.H{"connections": conns})
}

func (h *ConnectionHandler) RequestConnection(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	conn, err := h.repo.Request(ctx, userID, req.UserID)
	if apperr.KindOf(err) == apperr.KindConflict {
		// The pair already has a row; report its current state.
		existing, lookupErr := h.repo.GetByPair(ctx, userID, req.UserID)
		if lookupErr == nil {
			c.JSON(http.StatusOK, gin.H{"connection": existing})
			return
		}
	}
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "connection.request", "connection requested", "")
	c.JSON(http.StatusCreated, gin.H{"connection": conn})
}

// AcceptConnection is allowed only for the side that did not send the request.
func (h *ConnectionHandler) AcceptConnection(c *gin.Context) {
	userID := middleware.UserID(c)
	conn, err := h.repo.Get(c.Request.Context(), c.Param("connection_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !conn.Involves(userID) || conn.RequestedBy == userID {
		respondError(c, apperr.Unauthorized("only the invited user can accept"))
		return
	}
	if conn.Status == models.ConnectionAccepted {
		c.JSON(http.StatusOK, gin.H{"connection": conn})
		return
	}

	accepted, err := h.repo.Accept(c.Request.Context(), conn.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "connection.accept", "connection accepted", "")
	c.JSON(http.StatusOK, gin.H{"connection": accepted})
}

// DeleteConnection rejects a pending request or removes an accepted one.
func (h *ConnectionHandler) DeleteConnection(c *gin.Context) {
	userID := middleware.UserID(c)
	conn, err := h.repo.Get(c.Request.Context(), c.Param("connection_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !conn.Involves(userID) {
		respondError(c, apperr.Unauthorized("not part of this connection"))
		return
	}

	if err := h.repo.Delete(c.Request.Context(), conn.ID); err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "connection.delete", "connection removed", "")
	c.Status(http.StatusNoContent)
}
