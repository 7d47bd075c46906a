package handlers

import (
	"net/http"

	"github.com/clxsh19/llm-chat/internal/models"
)

// MessageHandler contains HTTP handlers for the open transcript.
type MessageHandler struct{}

// NewMessageHandler creates a new MessageHandler instance.
func NewMessageHandler() *MessageHandler {
	return &MessageHandler{}
}

// GetMessages handles GET /api/messages
// Returns the transcript of the selected room, or of the guest conversation.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}

	msgs := ws.Stream.Messages()
	if msgs == nil {
		msgs = []models.Message{}
	}

	writeJSON(w, http.StatusOK, models.GetMessagesResponse{
		RoomID:   ws.Stream.Selected(),
		Messages: msgs,
	})
}

// SendMessage handles POST /api/messages
// Sends the user's text and waits for the AI reply. Intermediate states
// reach the browser over the websocket.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := ws.Controller.HandleUserSend(r.Context(), req.Text); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ws.State())
}
