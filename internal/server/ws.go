package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/airboard/internal/app"
	"github.com/ayusman/airboard/internal/board"
	"github.com/ayusman/airboard/internal/canvas"
	"github.com/ayusman/airboard/internal/metrics"
)

const (
	clientBuffer = 16
	writeTimeout = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

type pointJSON struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type cursorJSON struct {
	Mode     board.Mode `json:"mode"`
	Position pointJSON  `json:"position"`
	Anchored bool       `json:"anchored"`
}

type segmentJSON struct {
	From      pointJSON `json:"from"`
	To        pointJSON `json:"to"`
	Color     string    `json:"color"`
	Thickness int       `json:"thickness"`
	Stroke    string    `json:"stroke"`
}

// CursorMessage is what cursor feed clients receive once per tick.
type CursorMessage struct {
	Cursor    cursorJSON   `json:"cursor"`
	Drawing   bool         `json:"drawing"`
	Segment   *segmentJSON `json:"segment,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

func cursorFromBoard(c board.Cursor) cursorJSON {
	return cursorJSON{
		Mode:     c.Mode,
		Position: pointJSON{X: c.Position.X, Y: c.Position.Y},
		Anchored: c.Anchored,
	}
}

func segmentFromCanvas(s *canvas.Segment) *segmentJSON {
	if s == nil {
		return nil
	}
	return &segmentJSON{
		From:      pointJSON{X: s.From.X, Y: s.From.Y},
		To:        pointJSON{X: s.To.X, Y: s.To.Y},
		Color:     canvas.FormatColor(s.Color),
		Thickness: s.Thickness,
		Stroke:    s.Stroke.String(),
	}
}

// CursorHub broadcasts the cursor state to WebSocket clients. Slow clients
// miss messages instead of stalling the tick loop.
type CursorHub struct {
	clients map[*websocket.Conn]chan []byte
	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCursorHub creates a hub. m may be nil.
func NewCursorHub(logger *slog.Logger, m *metrics.Metrics) *CursorHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &CursorHub{
		clients: make(map[*websocket.Conn]chan []byte),
		logger:  logger,
		metrics: m,
	}
}

// Publish sends u to every connected client. It never blocks.
func (h *CursorHub) Publish(u app.Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(CursorMessage{
		Cursor:    cursorFromBoard(u.Cursor),
		Drawing:   u.Drawing,
		Segment:   segmentFromCanvas(u.Segment),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		h.logger.Error("cursor encode failed", "error", err)
		return
	}

	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *CursorHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *CursorHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.CursorClients(1)
	}

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		if h.metrics != nil {
			h.metrics.CursorClients(-1)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Keep connection alive by reading messages
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
