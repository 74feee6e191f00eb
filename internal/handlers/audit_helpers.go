package handlers

import (
	"github.com/gin-gonic/gin"

	"lineup-chat/internal/middleware"
	"lineup-chat/internal/observability"
	"lineup-chat/internal/telemetry"
)

// audit records a successful mutation. A nil emitter is a no-op.
func audit(c *gin.Context, emitter *telemetry.AuditEmitter, action, text, threadID string) {
	emitter.Emit(c.Request.Context(), telemetry.AuditEntry{
		Action:    action,
		Text:      text,
		RequestID: middleware.RequestIDFrom(c),
		UserID:    middleware.UserID(c),
		ThreadID:  threadID,
		IP:        observability.IPFromRequest(c.Request),
	})
}
