package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/yt-sync-go/api/handlers"
	"github.com/yourusername/yt-sync-go/api/middleware"
	"github.com/yourusername/yt-sync-go/internal/app"
	"github.com/yourusername/yt-sync-go/pkg/logger"
)

// Dependencies are the services the HTTP API is built on
type Dependencies struct {
	Catalog    *app.Catalog
	Jobs       *app.JobManager
	Streams    *app.StreamEngine
	Thumbnails handlers.ThumbnailSource
	Tools      handlers.ToolChecker
	Hub        *handlers.JobHub
	Streamed   handlers.StreamRecorder
	Metrics    http.Handler
	Logger     *logger.LoggerAdapter
	LogsDir    string
	Version    string
}

// SetupRouter builds the HTTP router
func SetupRouter(deps Dependencies) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNopAdapter()
	}

	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(deps.Jobs, deps.Tools, deps.Version)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", healthHandler.Status)

		playlistHandler := handlers.NewPlaylistHandler(deps.Catalog, log.General())
		playlists := v1.Group("/playlists")
		{
			playlists.GET("", playlistHandler.ListPlaylists)
			playlists.POST("", playlistHandler.AddPlaylist)
			playlists.GET("/:id", playlistHandler.GetPlaylist)
			playlists.POST("/:id/sync", playlistHandler.SyncPlaylist)
			playlists.DELETE("/:id", playlistHandler.DeletePlaylist)
			playlists.POST("/:id/videos", playlistHandler.AddVideo)
			playlists.DELETE("/:id/videos/:videoId", playlistHandler.RemoveVideo)
			playlists.POST("/:id/files/delete", playlistHandler.DeleteFiles)
		}

		jobHandler := handlers.NewJobHandler(deps.Jobs, log.General())
		v1.POST("/downloads", jobHandler.Enqueue)
		jobs := v1.Group("/jobs")
		{
			jobs.GET("", jobHandler.ListJobs)
			jobs.POST("/clear", jobHandler.ClearJobs)
			if deps.Hub != nil {
				jobs.GET("/ws", deps.Hub.HandleWebSocket)
			}
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.POST("/:id/cancel", jobHandler.CancelJob)
		}

		streamHandler := handlers.NewStreamHandler(deps.Streams, deps.Streamed, log.General())
		v1.GET("/stream/:playlistId/:videoId", streamHandler.Stream)
		v1.HEAD("/stream/:playlistId/:videoId", streamHandler.Stream)

		if deps.Thumbnails != nil {
			thumbHandler := handlers.NewThumbnailHandler(deps.Thumbnails)
			v1.GET("/thumbs/:videoId", thumbHandler.GetThumbnail)
			v1.POST("/thumbs/prefetch", thumbHandler.Prefetch)
		}

		settingsHandler := handlers.NewSettingsHandler(deps.Catalog, deps.Jobs, log.General())
		v1.GET("/settings", settingsHandler.GetSettings)
		v1.PUT("/settings", settingsHandler.UpdateSettings)

		logHandler := handlers.NewLogHandler(deps.LogsDir)
		logWS := handlers.NewLogWebSocketHandler(deps.LogsDir, log.General())
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
			logs.GET("/:category/ws", logWS.HandleWebSocket)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
