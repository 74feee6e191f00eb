package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lineup-chat/internal/auth"
	"lineup-chat/internal/observability"
)

const userIDKey = "userID"

// Authenticate rejects requests without a valid bearer token.
func Authenticate(validator auth.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := validator.Validate(observability.BearerToken(c.Request))
		if err != nil {
			code := "invalid_token"
			if errors.Is(err, auth.ErrMissingToken) {
				code = "missing_token"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": code, "message": err.Error()}})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// OptionalAuth attaches the caller identity when a valid token is present.
func OptionalAuth(validator auth.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := validator.Validate(observability.BearerToken(c.Request)); err == nil {
			c.Set(userIDKey, userID)
		}
		c.Next()
	}
}

// UserID returns the authenticated caller, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// SetUserID is used by tests and trusted internal callers.
func SetUserID(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
}
