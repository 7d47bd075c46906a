package handlers

import (
	"context"
	"net/http"

	"github.com/clxsh19/llm-chat/internal/chat"
	"github.com/clxsh19/llm-chat/internal/services"
)

// Cookie names. The token cookie lets a new workspace resume the session
// after the old one was evicted or the server restarted.
const (
	WorkspaceCookie = "llmchat_ws"
	TokenCookie     = "llmchat_token"
)

type workspaceKey struct{}

// Workspaces attaches the caller's workspace to the request context,
// opening one and setting its cookie on first contact.
func Workspaces(svc *services.WorkspaceService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id, token string
			if c, err := r.Cookie(WorkspaceCookie); err == nil {
				id = c.Value
			}
			if c, err := r.Cookie(TokenCookie); err == nil {
				token = c.Value
			}

			ws, created := svc.Open(r.Context(), id, token)
			if created {
				setCookie(w, r, WorkspaceCookie, ws.ID)
			}

			ctx := context.WithValue(r.Context(), workspaceKey{}, ws)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WorkspaceFromRequest returns the workspace attached by Workspaces, or nil.
func WorkspaceFromRequest(r *http.Request) *chat.Workspace {
	ws, _ := r.Context().Value(workspaceKey{}).(*chat.Workspace)
	return ws
}

// workspace fetches the request's workspace, writing 500 if the middleware
// is missing from the route.
func workspace(w http.ResponseWriter, r *http.Request) (*chat.Workspace, bool) {
	ws := WorkspaceFromRequest(r)
	if ws == nil {
		http.Error(w, "workspace unavailable", http.StatusInternalServerError)
		return nil, false
	}
	return ws, true
}

func setCookie(w http.ResponseWriter, r *http.Request, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
