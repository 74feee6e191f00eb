package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lineup-chat/internal/middleware"
	"lineup-chat/internal/repositories"
)

type ProfileHandler struct {
	profiles repositories.ProfileRepository
}

func NewProfileHandler(profiles repositories.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetProfile is public; "self" reports whether the caller is looking at their own profile.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID := c.Param("user_id")
	profile, err := h.profiles.ResolveProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile, "self": middleware.UserID(c) == userID})
}
