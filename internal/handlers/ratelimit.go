package handlers

import (
	"net/http"
	"strconv"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"

	"lineup-chat/internal/middleware"
)

// MessageRateLimiter caps message sends per user per second.
func MessageRateLimiter(perSecond uint) gin.HandlerFunc {
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Second,
		Limit: perSecond,
	})
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			c.Header("Retry-After", strconv.Itoa(int(time.Until(info.ResetTime).Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorBody{
				Code:    "rate_limited",
				Message: "too many messages, slow down",
			}})
		},
		KeyFunc: func(c *gin.Context) string {
			if userID := middleware.UserID(c); userID != "" {
				return userID
			}
			return c.ClientIP()
		},
	})
}
