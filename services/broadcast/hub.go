package broadcastsvc

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/skillforge/skillforge/core"
)

const clientBuffer = 16

// Hub fans real-time payloads out to every open socket of a user.
// Delivery is best effort: a client that cannot keep up with its
// buffer is dropped rather than blocking the sender.
type Hub struct {
	logger core.Logger

	mu      sync.RWMutex
	clients map[int]map[*client]bool // userID -> open connections
}

type client struct {
	userID int
	conn   *websocket.Conn
	send   chan interface{}
}

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[int]map[*client]bool),
	}
}

// Broadcast queues the payload for every open socket of the user.
func (h *Hub) Broadcast(userID int, payload interface{}) {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping slow websocket client", "user", c.userID)
			h.remove(c)
		}
	}
}

// Serve owns the connection until the peer disconnects. Inbound frames
// are read only to detect closure.
func (h *Hub) Serve(userID int, conn *websocket.Conn) {
	c := &client{userID: userID, conn: conn, send: make(chan interface{}, clientBuffer)}
	h.add(c)
	defer h.remove(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload := <-c.send:
			if err := conn.WriteJSON(payload); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// Upgrader returns the websocket upgrader used by the API handler.
func Upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]bool)
	}
	h.clients[c.userID][c] = true
}

// remove never closes c.send: Broadcast may still hold a reference to
// the client and send into it. Closing the connection unblocks Serve's
// reader, which ends the write loop.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[c.userID]; ok && conns[c] {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.clients, c.userID)
		}
		c.conn.Close()
	}
}

// ClientCount reports open sockets for a user.
func (h *Hub) ClientCount(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
