package alerts

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rawblock/authcore/internal/obslog"
)

// Hub fans out alerts to subscribed dashboard websocket connections,
// grounded directly on the teacher's broadcast Hub.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
	upgrader  websocket.Upgrader
	log       *obslog.Logger
}

// NewHub creates an empty Hub. Run must be started in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: obslog.New("alerts-hub"),
	}
}

// Run drains the broadcast channel, writing each message to every
// connected client. Intended to run for the lifetime of the process.
func (h *Hub) Run() {
	for msg := range h.broadcast {
		h.mutex.Lock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Warn("dropping unresponsive client: %v", err)
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades an HTTP connection to a websocket and registers it
// for alert broadcasts until the client disconnects.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade failed: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast publishes an alert to all connected dashboard clients.
func (h *Hub) Broadcast(alert Alert) {
	data, err := json.Marshal(alert)
	if err != nil {
		h.log.Warn("failed to marshal alert for broadcast: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast channel full, dropping alert %s", alert.ID)
	}
}
