package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-sync-go/internal/app"
	apperrors "github.com/yourusername/yt-sync-go/pkg/errors"
)

// PlaylistHandler handles playlist and video catalog requests
type PlaylistHandler struct {
	catalog *app.Catalog
	logger  *zap.Logger
}

// NewPlaylistHandler creates a new playlist handler
func NewPlaylistHandler(catalog *app.Catalog, logger *zap.Logger) *PlaylistHandler {
	return &PlaylistHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// URLRequest carries a playlist or video URL
type URLRequest struct {
	URL string `json:"url" binding:"required"`
}

// DeleteFilesRequest lists the videos whose files should be removed
type DeleteFilesRequest struct {
	VideoIDs []string `json:"video_ids" binding:"required"`
}

// ListPlaylists handles GET /api/v1/playlists
func (h *PlaylistHandler) ListPlaylists(c *gin.Context) {
	playlists := h.catalog.Playlists()
	c.JSON(http.StatusOK, gin.H{
		"playlists": playlists,
		"count":     len(playlists),
	})
}

// AddPlaylist handles POST /api/v1/playlists
func (h *PlaylistHandler) AddPlaylist(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	playlist, err := h.catalog.AddPlaylist(c.Request.Context(), req.URL)
	if err != nil {
		if apperrors.IsConflict(err) && playlist != nil {
			c.JSON(http.StatusOK, playlist)
			return
		}
		h.logger.Warn("Failed to add playlist", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, playlist)
}

// GetPlaylist handles GET /api/v1/playlists/:id
func (h *PlaylistHandler) GetPlaylist(c *gin.Context) {
	playlist, err := h.catalog.Playlist(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, playlist)
}

// SyncPlaylist handles POST /api/v1/playlists/:id/sync
func (h *PlaylistHandler) SyncPlaylist(c *gin.Context) {
	playlist, err := h.catalog.SyncPlaylist(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Warn("Failed to sync playlist", zap.String("playlist_id", c.Param("id")), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, playlist)
}

// DeletePlaylist handles DELETE /api/v1/playlists/:id
func (h *PlaylistHandler) DeletePlaylist(c *gin.Context) {
	if err := h.catalog.DeletePlaylist(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "playlist deleted"})
}

// AddVideo handles POST /api/v1/playlists/:id/videos
func (h *PlaylistHandler) AddVideo(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, err := h.catalog.AddVideo(c.Request.Context(), c.Param("id"), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"added": added,
		"count": len(added),
	})
}

// RemoveVideo handles DELETE /api/v1/playlists/:id/videos/:videoId
func (h *PlaylistHandler) RemoveVideo(c *gin.Context) {
	if err := h.catalog.RemoveVideo(c.Param("id"), c.Param("videoId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "video removed"})
}

// DeleteFiles handles POST /api/v1/playlists/:id/files/delete
func (h *PlaylistHandler) DeleteFiles(c *gin.Context) {
	var req DeleteFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deleted, err := h.catalog.DeleteVideoFile(c.Param("id"), req.VideoIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
