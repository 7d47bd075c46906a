package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/clxsh19/llm-chat/internal/chat"
)

// Hub maintains the set of active clients and pushes State snapshots to the
// clients of a workspace. A browser may hold several connections (tabs) to
// the same workspace.
type Hub struct {
	// workspaces maps workspaceID to a set of clients showing it
	workspaces map[string]map[*Client]bool

	// register requests from clients
	register chan *Client

	// unregister requests from clients
	unregister chan *Client

	// mutex for thread-safe client set operations
	mu sync.RWMutex

	stop chan struct{}
}

// Envelope is the frame format sent to clients
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		workspaces: make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop
// This should be called in a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.stop:
			h.closeAll()
			return
		}
	}
}

// Stop ends the event loop and closes every client.
func (h *Hub) Stop() {
	close(h.stop)
}

// join hands a client to the event loop unless the hub has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stop:
		return false
	}
}

// leave hands a client to the event loop for removal.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// registerClient adds a client to its workspace
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.workspaces[client.WorkspaceID] == nil {
		h.workspaces[client.WorkspaceID] = make(map[*Client]bool)
	}

	h.workspaces[client.WorkspaceID][client] = true
	log.Printf("[WebSocket] Client joined workspace %s (total: %d)",
		client.WorkspaceID, len(h.workspaces[client.WorkspaceID]))
}

// unregisterClient removes a client from its workspace
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.workspaces[client.WorkspaceID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}

	delete(clients, client)
	close(client.send)

	log.Printf("[WebSocket] Client left workspace %s (remaining: %d)",
		client.WorkspaceID, len(clients))

	if len(clients) == 0 {
		delete(h.workspaces, client.WorkspaceID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.workspaces {
		for client := range clients {
			h.removeLocked(client)
		}
	}
}

// Publish sends state to every client of the workspace. It never blocks:
// a client whose buffer is full is dropped.
func (h *Hub) Publish(workspaceID string, state chat.State) {
	frame, err := encodeState(state)
	if err != nil {
		log.Printf("[WebSocket] Failed to encode state for %s: %v", workspaceID, err)
		return
	}

	var slow []*Client

	h.mu.RLock()
	for client := range h.workspaces[workspaceID] {
		select {
		case client.send <- frame:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}

	h.mu.Lock()
	for _, client := range slow {
		log.Printf("[WebSocket] Dropping slow client in workspace %s", workspaceID)
		h.removeLocked(client)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients of a workspace
func (h *Hub) ClientCount(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.workspaces[workspaceID])
}

func encodeState(state chat.State) ([]byte, error) {
	return json.Marshal(Envelope{Type: "state", Payload: state})
}
