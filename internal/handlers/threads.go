package handlers

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"lineup-chat/internal/apperr"
	"lineup-chat/internal/conversation"
	"lineup-chat/internal/middleware"
	"lineup-chat/internal/storage"
	"lineup-chat/internal/telemetry"
)

// ThreadHandler serves thread resolution and lifecycle endpoints.
type ThreadHandler struct {
	svc     *conversation.Service
	objects storage.ObjectStore
	audit   *telemetry.AuditEmitter
}

// NewThreadHandler builds a ThreadHandler. objects may be nil when image uploads are disabled.
func NewThreadHandler(svc *conversation.Service, objects storage.ObjectStore, emitter *telemetry.AuditEmitter) *ThreadHandler {
	return &ThreadHandler{svc: svc, objects: objects, audit: emitter}
}

func (h *ThreadHandler) ListThreads(c *gin.Context) {
	summaries, err := h.svc.ListThreadsForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": summaries})
}

// StartDirect returns the caller's direct thread with user_id, creating it if needed.
func (h *ThreadHandler) StartDirect(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	thread, err := h.svc.GetOrCreateDirectThread(c.Request.Context(), middleware.UserID(c), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread": thread})
}

func (h *ThreadHandler) CreateGroup(c *gin.Context) {
	var req struct {
		UserIDs   []string `json:"user_ids" binding:"required"`
		GroupName string   `json:"group_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	thread, err := h.svc.CreateGroupThread(c.Request.Context(), middleware.UserID(c), req.UserIDs, req.GroupName)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "thread.create_group", "group thread created", thread.ID)
	c.JSON(http.StatusCreated, gin.H{"thread": thread})
}

func (h *ThreadHandler) GetThread(c *gin.Context) {
	summary, err := h.svc.GetThread(c.Request.Context(), middleware.UserID(c), c.Param("thread_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread": summary})
}

func (h *ThreadHandler) UpdateThread(c *gin.Context) {
	var req struct {
		GroupName  *string `json:"group_name"`
		GroupImage *string `json:"group_image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	threadID := c.Param("thread_id")
	thread, err := h.svc.UpdateThreadDetails(c.Request.Context(), middleware.UserID(c), threadID, req.GroupName, req.GroupImage)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "thread.update", "thread details updated", threadID)
	c.JSON(http.StatusOK, gin.H{"thread": thread})
}

func (h *ThreadHandler) AddParticipants(c *gin.Context) {
	var req struct {
		UserIDs []string `json:"user_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	threadID := c.Param("thread_id")
	thread, participants, err := h.svc.AddParticipants(c.Request.Context(), middleware.UserID(c), threadID, req.UserIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "thread.add_participants", "participants added", threadID)
	c.JSON(http.StatusOK, gin.H{
		"thread":       thread,
		"kind":         conversation.ClassifyThread(len(participants)),
		"participants": participants,
	})
}

// UploadImage stores a multipart "image" as the thread's group image.
func (h *ThreadHandler) UploadImage(c *gin.Context) {
	if h.objects == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{Error: errorBody{Code: "storage_disabled", Message: "image uploads are not configured"}})
		return
	}

	threadID := c.Param("thread_id")
	userID := middleware.UserID(c)
	ctx := c.Request.Context()
	current, err := h.svc.GetThread(ctx, userID, threadID)
	if err != nil {
		respondError(c, err)
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		respondBadRequest(c, "image file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		respondBadRequest(c, "image file is unreadable")
		return
	}
	defer file.Close()

	key, url, err := storage.UploadGroupImage(ctx, h.objects, threadID, file)
	if err != nil {
		if errors.Is(err, storage.ErrImageTooLarge) || errors.Is(err, storage.ErrInvalidImage) {
			respondBadRequest(c, errors.Cause(err).Error())
			return
		}
		respondError(c, apperr.StoreUnavailable("upload image", err))
		return
	}

	thread, err := h.svc.UpdateThreadDetails(ctx, userID, threadID, nil, &url)
	if err != nil {
		h.discardObject(ctx, threadID, key)
		respondError(c, err)
		return
	}
	if prev := current.GroupImage; prev != nil && *prev != url {
		if oldKey, ok := storage.ObjectKey(h.objects, *prev); ok {
			h.discardObject(ctx, threadID, oldKey)
		}
	}
	audit(c, h.audit, "thread.upload_image", "group image uploaded", threadID)
	c.JSON(http.StatusOK, gin.H{"thread": thread})
}

// discardObject removes an object that is no longer referenced. Failures
// only leave an orphan behind, so they are logged.
func (h *ThreadHandler) discardObject(ctx context.Context, threadID string, key string) {
	if err := h.objects.Delete(ctx, key); err != nil {
		log.Warn("group image cleanup failed", "thread_id", threadID, "key", key, "err", err)
	}
}

func (h *ThreadHandler) DeleteThread(c *gin.Context) {
	threadID := c.Param("thread_id")
	if err := h.svc.DeleteThread(c.Request.Context(), middleware.UserID(c), threadID); err != nil {
		respondError(c, err)
		return
	}
	audit(c, h.audit, "thread.delete", "thread deleted", threadID)
	c.Status(http.StatusNoContent)
}
