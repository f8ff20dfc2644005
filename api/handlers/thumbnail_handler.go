package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ThumbnailSource serves cached thumbnails
type ThumbnailSource interface {
	Get(ctx context.Context, videoID string) ([]byte, error)
	Prefetch(videoIDs []string) []string
}

// ThumbnailHandler handles thumbnail requests
type ThumbnailHandler struct {
	thumbs ThumbnailSource
}

// NewThumbnailHandler creates a new thumbnail handler
func NewThumbnailHandler(thumbs ThumbnailSource) *ThumbnailHandler {
	return &ThumbnailHandler{thumbs: thumbs}
}

// PrefetchRequest lists video ids to warm
type PrefetchRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// GetThumbnail handles GET /api/v1/thumbs/:videoId
func (h *ThumbnailHandler) GetThumbnail(c *gin.Context) {
	data, err := h.thumbs.Get(c.Request.Context(), c.Param("videoId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "max-age=86400")
	c.Data(http.StatusOK, "image/jpeg", data)
}

// Prefetch handles POST /api/v1/thumbs/prefetch
func (h *ThumbnailHandler) Prefetch(c *gin.Context) {
	var req PrefetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	accepted := h.thumbs.Prefetch(req.IDs)
	c.JSON(http.StatusOK, gin.H{"fetched": len(accepted)})
}
