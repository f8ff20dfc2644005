package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/yt-sync-go/pkg/logger"
)

const (
	defaultLogBacklog = 50
	maxLogBacklog     = 500
)

// logMessage wraps one entry for live log clients
type logMessage struct {
	Type     string           `json:"type"`
	Category string           `json:"category"`
	Entry    *logger.LogEntry `json:"entry,omitempty"`
	Backlog  bool             `json:"backlog,omitempty"`
}

// LogWebSocketHandler follows a category log over a WebSocket
type LogWebSocketHandler struct {
	logReader *logger.LogReader
	logger    *zap.Logger
}

// NewLogWebSocketHandler creates a new WebSocket handler
func NewLogWebSocketHandler(logsDir string, log *zap.Logger) *LogWebSocketHandler {
	return &LogWebSocketHandler{
		logReader: logger.NewLogReader(logsDir),
		logger:    log,
	}
}

// HandleWebSocket handles GET /api/v1/logs/:category/ws?backlog=N.
// Today's last N entries are replayed before new ones are followed.
func (h *LogWebSocketHandler) HandleWebSocket(c *gin.Context) {
	category := logger.LogCategory(c.Param("category"))
	if !logger.ValidCategory(category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
		return
	}

	backlog, err := strconv.Atoi(c.DefaultQuery("backlog", strconv.Itoa(defaultLogBacklog)))
	if err != nil || backlog < 0 {
		backlog = defaultLogBacklog
	}
	if backlog > maxLogBacklog {
		backlog = maxLogBacklog
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	send := func(msg logMessage) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg)
	}

	if backlog > 0 {
		entries, err := h.logReader.ReadTodayLogs(category, backlog)
		if err != nil {
			h.logger.Warn("Failed to read log backlog", zap.String("category", string(category)), zap.Error(err))
		}
		for i := range entries {
			if err := send(logMessage{Type: "log", Category: string(category), Entry: &entries[i], Backlog: true}); err != nil {
				return
			}
		}
	}

	entryChan := make(chan logger.LogEntry, 100)
	stopChan := make(chan struct{})
	defer close(stopChan)

	go func() {
		if err := h.logReader.TailLogs(category, entryChan, stopChan); err != nil {
			h.logger.Error("Log tailing error", zap.String("category", string(category)), zap.Error(err))
		}
	}()

	// Clients never send data; a read error means they went away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-entryChan:
			if err := send(logMessage{Type: "log", Category: string(category), Entry: &entry}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
