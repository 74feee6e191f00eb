package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lineup-chat/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, errorResponse{Error: errorBody{Code: "audit_disabled", Message: "audit emitter not configured"}})
			return
		}
		audit(c, emitter, "debug.audit_test", "audit test", "")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
