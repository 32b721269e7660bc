package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dentalmart/marketplace/internal/api/middleware"
	"github.com/dentalmart/marketplace/internal/utils/response"
	"github.com/gorilla/websocket"
)

const (
	EventOrderStatus = "order_status"
	EventStockChange = "stock_change"
	EventLowStock    = "low_stock"
)

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub relays order-status and stock-change events to connected clients. One
// connection per user; stock events go to everyone.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*websocket.Conn
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler upgrades an authenticated request and parks the connection until
// the client goes away.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			response.WriteJson(w, http.StatusUnauthorized, "Authentication required")

			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("WebSocket upgrade failed", slog.String("error", err.Error()))

			return
		}

		userID := claims.UserID.String()

		h.mu.Lock()
		if old, exists := h.clients[userID]; exists {
			old.Close()
		}
		h.clients[userID] = conn
		h.mu.Unlock()

		defer func() {
			h.mu.Lock()
			if h.clients[userID] == conn {
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			conn.Close()
		}()

		go h.keepAlive(conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}

func (h *Hub) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
			return
		}
	}
}

// EmitToUser delivers an event to one user's connection, if any.
func (h *Hub) EmitToUser(userID string, event Event) {

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal realtime event", slog.String("error", err.Error()))

		return
	}

	h.mu.RLock()
	conn, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.mu.Lock()
		if h.clients[userID] == conn {
			delete(h.clients, userID)
		}
		h.mu.Unlock()
		conn.Close()
	}
}

// Broadcast delivers an event to every connected client, dropping dead
// connections along the way.
func (h *Hub) Broadcast(event Event) {

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal realtime event", slog.String("error", err.Error()))

		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(h.clients, userID)
			conn.Close()
		}
	}
}
