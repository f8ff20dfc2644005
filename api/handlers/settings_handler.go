package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-sync-go/internal/app"
	"github.com/yourusername/yt-sync-go/internal/domain"
)

// SettingsHandler handles settings requests
type SettingsHandler struct {
	catalog *app.Catalog
	jobs    *app.JobManager
	logger  *zap.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(catalog *app.Catalog, jobs *app.JobManager, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		catalog: catalog,
		jobs:    jobs,
		logger:  logger,
	}
}

// GetSettings handles GET /api/v1/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Settings())
}

// UpdateSettings handles PUT /api/v1/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var patch domain.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.jobs.ApplySettings(patch)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Settings updated",
		zap.String("download_dir", settings.DownloadDir),
		zap.Int("thread_count", settings.ThreadCount))
	c.JSON(http.StatusOK, settings)
}
