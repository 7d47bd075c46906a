package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clxsh19/llm-chat/internal/ai"
	"github.com/clxsh19/llm-chat/internal/auth"
	"github.com/clxsh19/llm-chat/internal/config"
	"github.com/clxsh19/llm-chat/internal/handlers"
	"github.com/clxsh19/llm-chat/internal/memstore"
	"github.com/clxsh19/llm-chat/internal/middleware"
	"github.com/clxsh19/llm-chat/internal/mongostore"
	"github.com/clxsh19/llm-chat/internal/prefs"
	"github.com/clxsh19/llm-chat/internal/services"
	"github.com/clxsh19/llm-chat/internal/store"
	"github.com/clxsh19/llm-chat/internal/supabase"
	"github.com/clxsh19/llm-chat/internal/websocket"
)

// Local tokens stay valid for a day
const localTokenDuration = 24 * time.Hour

func main() {
	// Load configuration from environment
	cfg := config.Load()

	st, provider, closeStore := openBackend(cfg)
	defer closeStore()

	aiClient := ai.NewClient(cfg.AIWorkerURL, cfg.AITimeout)
	preferences := prefs.Open(cfg.PrefsPath)

	// Initialize services
	workspaces := services.NewWorkspaceService(st, provider, aiClient)
	hub := websocket.NewHub()
	go hub.Run()
	workspaces.SetPublisher(hub.Publish)

	cleanupService := services.NewCleanupService(
		workspaces,
		hub,
		1*time.Minute, // Check every minute
		cfg.WorkspaceIdleTimeout,
	)

	// Start background cleanup worker
	go cleanupService.Start()

	// Small burst so a mistyped password can be retried right away
	limiterStore := middleware.NewLimiterStore(cfg.AuthRateLimitRPM, 3, 1*time.Minute)

	log.Printf("CORS allowed origins: %v", cfg.CORSOrigins)
	router := handlers.NewRouter(handlers.RouterConfig{
		CORSOrigins:          cfg.CORSOrigins,
		FederatedRedirectURL: cfg.FederatedRedirectURL,
		Workspaces:           workspaces,
		Prefs:                preferences,
		Hub:                  hub,
		AuthLimiter:          limiterStore,
	})

	// Start server
	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("llm-chat backend starting on %s (store: %s)", addr, cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	cleanupService.Stop()
	limiterStore.Stop()
	workspaces.CloseAll()
	hub.Stop()
}

// openBackend builds the persistence and auth collaborators selected by
// STORE_BACKEND. The returned func releases the backend's connections.
func openBackend(cfg *config.Config) (store.Store, auth.Provider, func()) {
	switch cfg.StoreBackend {
	case config.BackendSupabase:
		client := supabase.NewClient(cfg)

		var jwtMgr *auth.JWTManager
		if cfg.SupabaseJWTSecret != "" {
			jwtMgr = auth.NewJWTManager(cfg.SupabaseJWTSecret, time.Hour).WithAudience("authenticated")
		}
		return client, supabase.NewAuthProvider(client, jwtMgr), func() {}

	case config.BackendMongo:
		if cfg.MongoURI == "" {
			log.Fatal("MONGODB_URI must be set")
		}
		if cfg.JWTSecret == "" {
			log.Fatal("JWT_SECRET must be set")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		client, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Fatalf("failed to connect to DB: %v", err)
		}
		if err := client.CreateIndexes(ctx); err != nil {
			log.Fatalf("failed to create indexes: %v", err)
		}

		st := mongostore.NewStore(client)
		provider := auth.NewLocalProvider(st, auth.NewJWTManager(cfg.JWTSecret, localTokenDuration))
		return st, provider, func() {
			if err := client.Close(context.Background()); err != nil {
				log.Printf("failed to close MongoDB client: %v", err)
			}
		}

	default:
		secret := cfg.JWTSecret
		if secret == "" {
			log.Println("WARNING: JWT_SECRET is not set, using an insecure development secret")
			secret = "dev-secret"
		}

		st := memstore.New()
		provider := auth.NewLocalProvider(st, auth.NewJWTManager(secret, localTokenDuration))
		return st, provider, func() {}
	}
}
