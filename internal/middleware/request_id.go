package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lineup-chat/internal/observability"
)

const requestIDKey = "request_id"

// RequestID propagates X-Request-Id, generating one when absent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := observability.RequestIDFromRequest(c.Request)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-Id", requestID)
		c.Next()
	}
}

func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
