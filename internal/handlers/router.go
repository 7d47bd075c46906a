package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clxsh19/llm-chat/internal/prefs"
	"github.com/clxsh19/llm-chat/internal/services"
	"github.com/clxsh19/llm-chat/internal/websocket"

	ratelimit "github.com/clxsh19/llm-chat/internal/middleware"
)

// RouterConfig holds what the HTTP surface is wired to.
type RouterConfig struct {
	CORSOrigins          []string
	FederatedRedirectURL string

	Workspaces  *services.WorkspaceService
	Prefs       *prefs.Store
	Hub         *websocket.Hub
	AuthLimiter *ratelimit.LimiterStore
}

// NewRouter builds the chi router with the middleware stack and all routes.
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.FederatedRedirectURL)
	roomHandler := NewRoomHandler()
	messageHandler := NewMessageHandler()
	prefsHandler := NewPreferencesHandler(cfg.Prefs)
	wsHandler := websocket.NewHandler(cfg.Hub, WorkspaceFromRequest)

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(Workspaces(cfg.Workspaces))

		r.Get("/ws", wsHandler.ServeWS)

		r.Route("/api", func(r chi.Router) {
			r.Get("/session", authHandler.Session)
			r.Get("/state", GetState)

			r.Route("/auth", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					if cfg.AuthLimiter != nil {
						r.Use(ratelimit.RateLimit(cfg.AuthLimiter))
					}
					r.Post("/signup", authHandler.SignUp)
					r.Post("/login", authHandler.Login)
					r.Post("/federated/callback", authHandler.FederatedCallback)
				})
				r.Post("/logout", authHandler.Logout)
				r.Get("/federated/{provider}", authHandler.FederatedURL)
			})

			r.Route("/rooms", func(r chi.Router) {
				r.Get("/", roomHandler.ListRooms)
				r.Post("/", roomHandler.CreateRoom)
				r.Get("/search", roomHandler.SearchRooms)
				r.Post("/select", roomHandler.SelectRoom)
				r.Patch("/{id}", roomHandler.RenameRoom)
				r.Delete("/{id}", roomHandler.DeleteRoom)
			})

			r.Get("/messages", messageHandler.GetMessages)
			r.Post("/messages", messageHandler.SendMessage)

			// Preferences belong to the installation, not to a workspace
			r.Get("/preferences", prefsHandler.GetPreferences)
			r.Put("/preferences", prefsHandler.UpdatePreferences)
		})
	})

	return r
}
