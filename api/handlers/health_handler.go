package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/yt-sync-go/internal/app"
)

// ToolChecker reports whether the acquisition tool is installed
type ToolChecker interface {
	Available() bool
}

// HealthHandler handles health check requests
type HealthHandler struct {
	jobs    *app.JobManager
	tools   ToolChecker
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(jobs *app.JobManager, tools ToolChecker, version string) *HealthHandler {
	return &HealthHandler{
		jobs:    jobs,
		tools:   tools,
		version: version,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Queue   struct {
		Running bool `json:"running"`
	} `json:"queue"`
}

// StatusResponse summarizes the service for clients
type StatusResponse struct {
	Version        string `json:"version"`
	YTDLPAvailable bool   `json:"ytdlp_available"`
	Running        int    `json:"running"`
	Queued         int    `json:"queued"`
	Done           int    `json:"done"`
	Failed         int    `json:"failed"`
	ThreadCount    int    `json:"thread_count"`
	QueueActive    bool   `json:"queue_active"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: h.version,
	}
	response.Queue.Running = h.jobs.IsRunning()

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.jobs.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "job manager not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Status handles GET /api/v1/status
func (h *HealthHandler) Status(c *gin.Context) {
	stats := h.jobs.Stats()
	c.JSON(http.StatusOK, StatusResponse{
		Version:        h.version,
		YTDLPAvailable: h.tools != nil && h.tools.Available(),
		Running:        stats.Running,
		Queued:         stats.Queued,
		Done:           stats.Done,
		Failed:         stats.Failed,
		ThreadCount:    stats.Threads,
		QueueActive:    h.jobs.IsRunning(),
	})
}
