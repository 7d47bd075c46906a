package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/clxsh19/llm-chat/internal/auth"
	"github.com/clxsh19/llm-chat/internal/chat"
	"github.com/clxsh19/llm-chat/internal/store"
)

// ErrorResponse carries an error message shown to the user as is.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON is a helper function to write JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[HTTP] Failed to write response: %v", err)
	}
}

// writeError maps err to a status code and writes its message.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[HTTP] %v", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrAIBusy):
		return http.StatusConflict
	case errors.Is(err, chat.ErrNoIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeAuthError reports a failure from the auth collaborator with its
// message unchanged.
func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, auth.ErrInvalidCredentials) {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// decodeJSON reads the request body into v, writing 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
