package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/yt-sync-go/internal/domain"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// JobSnapshotter lists the current jobs
type JobSnapshotter interface {
	List() []domain.Job
}

// wsMessage is what live clients receive
type wsMessage struct {
	Type domain.JobEventType `json:"type"`
	Job  *domain.Job         `json:"job,omitempty"`
	Jobs []domain.Job        `json:"jobs,omitempty"`
	At   time.Time           `json:"at"`
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	kicked chan struct{}
	once   sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		kicked: make(chan struct{}),
	}
}

func (c *wsClient) kick() {
	c.once.Do(func() { close(c.kicked) })
}

// JobHub pushes job events to WebSocket clients. It is a domain.JobListener.
type JobHub struct {
	jobs    JobSnapshotter
	logger  *zap.Logger
	clients map[*wsClient]struct{}
	mu      sync.RWMutex
}

// NewJobHub creates a hub that greets new clients with a snapshot of jobs
func NewJobHub(jobs JobSnapshotter, log *zap.Logger) *JobHub {
	return &JobHub{
		jobs:    jobs,
		logger:  log,
		clients: make(map[*wsClient]struct{}),
	}
}

// ClientCount returns the number of connected clients
func (h *JobHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnJobEvent broadcasts an event. A client whose buffer is full misses
// progress events and is disconnected on any other event, so a connected
// client never holds a stale job state. It gets a fresh snapshot when it
// reconnects.
func (h *JobHub) OnJobEvent(event domain.JobEvent) {
	job := event.Job
	data, err := json.Marshal(wsMessage{Type: event.Type, Job: &job, At: event.At})
	if err != nil {
		h.logger.Error("Failed to marshal job event", zap.Error(err))
		return
	}

	var slow []*wsClient
	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			if event.Type == domain.EventJobProgress {
				h.logger.Debug("Dropping progress for slow client")
				continue
			}
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, client := range slow {
		delete(h.clients, client)
		client.kick()
	}
	h.mu.Unlock()
	h.logger.Warn("Disconnected slow WebSocket clients",
		zap.Int("count", len(slow)),
		zap.String("type", string(event.Type)))
}

// HandleWebSocket handles GET /api/v1/jobs/ws
func (h *JobHub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}

	client := newWSClient(conn)

	// Events broadcast after the snapshot queue behind it.
	h.mu.Lock()
	snapshot, err := json.Marshal(wsMessage{Type: "snapshot", Jobs: h.jobs.List(), At: time.Now()})
	if err != nil {
		h.logger.Error("Failed to marshal job snapshot", zap.Error(err))
	} else {
		client.send <- snapshot
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("WebSocket client connected", zap.String("remote_addr", c.Request.RemoteAddr))

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		conn.Close()
		h.logger.Info("WebSocket client disconnected", zap.String("remote_addr", c.Request.RemoteAddr))
	}()

	// Read messages from client (for close and pong handling)
	done := make(chan struct{})
	go func() {
		defer close(done)
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
		case data := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.kicked:
			return
		case <-done:
			return
		}
	}
}
