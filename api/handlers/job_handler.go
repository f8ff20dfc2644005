package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-sync-go/internal/app"
)

// JobHandler handles download and job requests
type JobHandler struct {
	jobs   *app.JobManager
	logger *zap.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs *app.JobManager, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		jobs:   jobs,
		logger: logger,
	}
}

// EnqueueRequest asks for one video or a batch to be downloaded
type EnqueueRequest struct {
	PlaylistID string   `json:"playlist_id" binding:"required"`
	VideoID    string   `json:"video_id,omitempty"`
	VideoIDs   []string `json:"video_ids,omitempty"`
	Quality    string   `json:"quality,omitempty"`
	AudioOnly  bool     `json:"audio_only,omitempty"`
}

// Enqueue handles POST /api/v1/downloads
func (h *JobHandler) Enqueue(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.VideoIDs) > 0 {
		ids, err := h.jobs.EnqueueBatch(req.PlaylistID, req.VideoIDs, req.Quality, req.AudioOnly)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"job_ids": ids})
		return
	}

	if req.VideoID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video_id or video_ids is required"})
		return
	}

	id, err := h.jobs.Enqueue(req.PlaylistID, req.VideoID, req.Quality, req.AudioOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": id})
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs := h.jobs.List()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
		"stats": h.jobs.Stats(),
	})
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	if err := h.jobs.Cancel(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job cancelled"})
}

// ClearJobs handles POST /api/v1/jobs/clear
func (h *JobHandler) ClearJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cleared": h.jobs.ClearFinished()})
}
