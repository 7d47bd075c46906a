package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clxsh19/llm-chat/internal/models"
)

// RoomHandler contains HTTP handlers for the room directory.
// All handlers act on the caller's workspace and return JSON responses.
type RoomHandler struct{}

// NewRoomHandler creates a new RoomHandler instance.
func NewRoomHandler() *RoomHandler {
	return &RoomHandler{}
}

// ListRooms handles GET /api/rooms
// Returns the signed-in user's rooms in creation order.
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Directory.Rooms())
}

// CreateRoom handles POST /api/rooms
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}

	var req models.CreateRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled"
	}

	// Store writes finish even if the client goes away
	roomID, err := ws.Directory.Create(context.WithoutCancel(r.Context()), title)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.CreateRoomResponse{RoomID: roomID})
}

// RenameRoom handles PATCH /api/rooms/{id}
func (h *RoomHandler) RenameRoom(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}

	var req models.RenameRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	if err := ws.Directory.Rename(context.WithoutCancel(r.Context()), chi.URLParam(r, "id"), title); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteRoom handles DELETE /api/rooms/{id}
// Removes the room and its messages; an open transcript of it is cleared.
func (h *RoomHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}

	if err := ws.Directory.Delete(context.WithoutCancel(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SelectRoom handles POST /api/rooms/select
// A null room_id starts a new conversation.
func (h *RoomHandler) SelectRoom(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}

	var req models.SelectRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := ws.Stream.Select(r.Context(), req.RoomID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ws.State())
}

// SearchRooms handles GET /api/rooms/search?q=
// Matches titles case-insensitively; a blank query returns nothing.
func (h *RoomHandler) SearchRooms(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Directory.Search(r.URL.Query().Get("q")))
}
