package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clxsh19/llm-chat/internal/chat"
	"github.com/clxsh19/llm-chat/internal/models"
)

// AuthHandler contains HTTP handlers for the auth passthrough.
type AuthHandler struct {
	// redirectURL is where the identity provider sends the browser back
	redirectURL string
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(redirectURL string) *AuthHandler {
	return &AuthHandler{redirectURL: redirectURL}
}

func sessionResponse(ws *chat.Workspace) models.SessionResponse {
	return models.SessionResponse{
		Identity: ws.Session.CurrentIdentity(),
		Loading:  ws.Session.Loading(),
	}
}

// Session handles GET /api/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(ws))
}

// credentials decodes and checks a sign-in or sign-up body.
func credentials(w http.ResponseWriter, r *http.Request) (models.CredentialsRequest, bool) {
	var req models.CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// SignUp handles POST /api/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	req, ok := credentials(w, r)
	if !ok {
		return
	}

	identity, err := ws.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	log.Printf("[Auth] Signed up %s", identity.UserID)
	setCookie(w, r, TokenCookie, identity.AccessToken)
	writeJSON(w, http.StatusCreated, sessionResponse(ws))
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	req, ok := credentials(w, r)
	if !ok {
		return
	}

	identity, err := ws.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	setCookie(w, r, TokenCookie, identity.AccessToken)
	writeJSON(w, http.StatusOK, sessionResponse(ws))
}

// Logout handles POST /api/auth/logout
// Ends the session and starts a new, empty conversation.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}

	if err := ws.SignOut(r.Context()); err != nil {
		writeAuthError(w, err)
		return
	}

	clearCookie(w, r, TokenCookie)
	writeJSON(w, http.StatusOK, sessionResponse(ws))
}

// FederatedURL handles GET /api/auth/federated/{provider}
// Returns the URL the browser opens to sign in with the provider.
func (h *AuthHandler) FederatedURL(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}

	url, err := ws.FederatedURL(chi.URLParam(r, "provider"), h.redirectURL)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.FederatedURLResponse{URL: url})
}

// FederatedCallback handles POST /api/auth/federated/callback
// Completes a federated sign-in with the token from the redirect.
func (h *AuthHandler) FederatedCallback(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}

	var req models.FederatedCallbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AccessToken == "" {
		http.Error(w, "access_token is required", http.StatusBadRequest)
		return
	}

	identity, err := ws.CompleteFederated(r.Context(), req.AccessToken)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	setCookie(w, r, TokenCookie, identity.AccessToken)
	writeJSON(w, http.StatusOK, sessionResponse(ws))
}
