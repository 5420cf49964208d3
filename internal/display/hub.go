package display

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// client is one browser connection. send holds at most the newest
// undelivered snapshot; its writer goroutine owns the connection's writes.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, 1)}
}

// enqueue replaces any undelivered snapshot with msg. It never blocks.
// Callers hold the hub lock, so there is a single producer.
func (c *client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- msg:
	default:
	}
}

// Hub is the browser display surface. It keeps the current snapshot and
// pushes it as JSON to every connected WebSocket client when it changes.
// Updates only queue messages, so a slow browser cannot stall the caller.
type Hub struct {
	logger   logrus.FieldLogger
	snapshot Snapshot
	clients  map[*client]bool
	mu       sync.Mutex
}

// NewHub creates an empty Hub. A nil logger discards output.
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = log.Discard()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*client]bool),
	}
}

// SetStatus implements Surface. Repeating the current status is a no-op.
func (h *Hub) SetStatus(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.snapshot.Status == text {
		return
	}
	h.snapshot.Status = text
	h.snapshot.UpdatedAt = time.Now()
	h.broadcast()
}

// SetImage implements Surface. Repeating the current image is a no-op.
func (h *Hub) SetImage(img Image) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.snapshot.Image != nil && *h.snapshot.Image == img {
		return
	}
	h.snapshot.Image = &img
	h.snapshot.UpdatedAt = time.Now()
	h.broadcast()
}

// Snapshot returns a copy of the current display state.
func (h *Hub) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.copySnapshot()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a WebSocket, sends the current
// snapshot and keeps the client registered until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	c := newClient(conn)
	h.mu.Lock()
	h.clients[c] = true
	if msg, ok := h.encode(); ok {
		c.enqueue(msg)
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(c)
	}()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		close(c.send)
		h.mu.Unlock()
		<-done
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump delivers queued snapshots until the client is unregistered.
// A failed write closes the connection, which ends the read loop.
func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.WithError(err).Debug("dropping display client")
			c.conn.Close()
			return
		}
	}
}

func (h *Hub) copySnapshot() Snapshot {
	s := h.snapshot
	if s.Image != nil {
		img := *s.Image
		s.Image = &img
	}
	return s
}

// encode marshals the current snapshot. Callers hold h.mu.
func (h *Hub) encode() ([]byte, bool) {
	msg, err := json.Marshal(h.copySnapshot())
	if err != nil {
		h.logger.WithError(err).Error("encode display snapshot")
		return nil, false
	}
	return msg, true
}

// broadcast queues the snapshot for every client. Callers hold h.mu.
func (h *Hub) broadcast() {
	if len(h.clients) == 0 {
		return
	}
	msg, ok := h.encode()
	if !ok {
		return
	}
	for c := range h.clients {
		c.enqueue(msg)
	}
}
