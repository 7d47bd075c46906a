package websocket

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/clxsh19/llm-chat/internal/chat"
)

// upgrader upgrades HTTP connections to WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow connections from any origin (CORS handled by middleware)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub     *Hub
	resolve func(*http.Request) *chat.Workspace
}

// NewHandler creates a new WebSocket handler. resolve returns the workspace
// the request belongs to, or nil.
func NewHandler(hub *Hub, resolve func(*http.Request) *chat.Workspace) *Handler {
	return &Handler{hub: hub, resolve: resolve}
}

// ServeWS handles WebSocket upgrade requests at /ws. The current State is
// sent immediately, followed by every change.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws := h.resolve(r)
	if ws == nil {
		http.Error(w, "workspace required", http.StatusBadRequest)
		return
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] Upgrade failed: %v", err)
		return
	}

	log.Printf("[WebSocket] New connection: workspace=%s", ws.ID)

	client := NewClient(h.hub, conn, ws.ID, ws.Touch)
	if frame, err := encodeState(ws.State()); err == nil {
		client.send <- frame
	}
	if !h.hub.join(client) {
		conn.Close()
		return
	}

	// Start read/write pumps in separate goroutines
	go client.WritePump()
	go client.ReadPump()
}
