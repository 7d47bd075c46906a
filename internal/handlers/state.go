package handlers

import (
	"net/http"

	"github.com/clxsh19/llm-chat/internal/prefs"
)

// GetState handles GET /api/state
// Returns the full view-model the websocket pushes on every change.
func GetState(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.State())
}

// PreferencesHandler serves the persisted display preference.
type PreferencesHandler struct {
	prefs *prefs.Store
}

// NewPreferencesHandler creates a new PreferencesHandler instance.
func NewPreferencesHandler(p *prefs.Store) *PreferencesHandler {
	return &PreferencesHandler{prefs: p}
}

// GetPreferences handles GET /api/preferences
func (h *PreferencesHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.prefs.Get())
}

// UpdatePreferences handles PUT /api/preferences
// The file is rewritten on every toggle.
func (h *PreferencesHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req prefs.Preferences
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.prefs.SetDark(req.IsDark)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
