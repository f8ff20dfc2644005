package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-sync-go/internal/app"
)

// StreamRecorder observes served media responses
type StreamRecorder interface {
	StreamServed(status string, bytes int64)
}

// StreamHandler serves downloaded media
type StreamHandler struct {
	engine   *app.StreamEngine
	recorder StreamRecorder
	logger   *zap.Logger
}

// NewStreamHandler creates a new stream handler. recorder may be nil.
func NewStreamHandler(engine *app.StreamEngine, recorder StreamRecorder, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		engine:   engine,
		recorder: recorder,
		logger:   logger,
	}
}

// Stream handles GET /api/v1/stream/:playlistId/:videoId
func (h *StreamHandler) Stream(c *gin.Context) {
	resp, err := h.engine.Serve(c.Param("playlistId"), c.Param("videoId"), c.GetHeader("Range"))
	if err != nil {
		h.record(StatusFor(err), 0)
		respondError(c, err)
		return
	}

	for k, values := range resp.Header {
		for _, v := range values {
			c.Writer.Header().Add(k, v)
		}
	}
	if !resp.ModTime.IsZero() {
		c.Header("Last-Modified", resp.ModTime.UTC().Format(http.TimeFormat))
	}

	if resp.Body == nil {
		c.Status(resp.Status)
		c.Writer.WriteHeaderNow()
		h.record(resp.Status, 0)
		return
	}
	defer resp.Body.Close()

	c.Status(resp.Status)
	if c.Request.Method == http.MethodHead {
		c.Writer.WriteHeaderNow()
		h.record(resp.Status, 0)
		return
	}

	n, err := io.Copy(c.Writer, resp.Body)
	h.record(resp.Status, n)
	if err != nil {
		// client went away mid-stream
		h.logger.Debug("Stream interrupted",
			zap.String("video_id", c.Param("videoId")),
			zap.Int64("written", n),
			zap.Error(err))
	}
}

func (h *StreamHandler) record(status int, n int64) {
	if h.recorder != nil {
		h.recorder.StreamServed(strconv.Itoa(status), n)
	}
}
