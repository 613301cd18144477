package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event names pushed to /field/events subscribers.
const (
	EventStats   = "field:stats"   // Sent once on connect
	EventRebuilt = "field:rebuilt" // Sent after every successful rebuild
)

// MaxEventClients caps concurrent /field/events connections.
const MaxEventClients = 64

const eventWriteTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no origin.
		if origin == "" {
			return true
		}
		return strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1")
	},
}

type eventMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// EventHub fans rebuild notifications out to WebSocket subscribers. Writes
// are serialized under the hub lock, one writer per connection.
type EventHub struct {
	mu         sync.Mutex
	clients    map[*websocket.Conn]string // conn -> client IP
	maxClients int
}

// NewEventHub creates a hub accepting up to maxClients connections.
func NewEventHub(maxClients int) *EventHub {
	if maxClients < 1 {
		maxClients = MaxEventClients
	}
	return &EventHub{
		clients:    make(map[*websocket.Conn]string),
		maxClients: maxClients,
	}
}

// ClientCount returns the number of connected subscribers.
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends event to every subscriber, dropping any that fail.
func (h *EventHub) Broadcast(event string, data any) {
	msg, err := json.Marshal(eventMessage{Event: event, Data: data})
	if err != nil {
		slog.Error("encoding event", "event", event, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ip := range h.clients {
		if err := h.writeLocked(conn, msg); err != nil {
			slog.Info("event subscriber dropped", "ip", ip, "error", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

func (h *EventHub) writeLocked(conn *websocket.Conn, msg []byte) error {
	conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (h *EventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

// Serve upgrades the request, sends the current stats and keeps the
// connection registered until the client goes away. Client messages are
// ignored.
func (h *EventHub) Serve(w http.ResponseWriter, r *http.Request, initial any) {
	if h.ClientCount() >= h.maxClients {
		writeError(w, "too many event subscribers", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		slog.Info("event upgrade failed", "error", err)
		return
	}
	ip := ClientIP(r)

	msg, err := json.Marshal(eventMessage{Event: EventStats, Data: initial})
	if err != nil {
		conn.Close()
		return
	}

	h.mu.Lock()
	// Concurrent upgrades may have filled the hub since the first check.
	if len(h.clients) >= h.maxClients {
		h.mu.Unlock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many event subscribers"),
			time.Now().Add(eventWriteTimeout))
		conn.Close()
		return
	}
	if err := h.writeLocked(conn, msg); err != nil {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = ip
	h.mu.Unlock()

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
