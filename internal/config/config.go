package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendSupabase = "supabase"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// Config holds all environment configuration values for the application.
// These values are loaded from a .env file at startup.
type Config struct {
	// ServerPort is the port the HTTP server listens on
	ServerPort string

	// CORSOrigins lists the browser origins allowed to call the API
	CORSOrigins []string

	// StoreBackend selects the persistence and auth collaborator
	StoreBackend string

	// SupabaseURL is the URL of your Supabase project
	SupabaseURL string

	// SupabaseKey is the anon key; requests run with the signed-in user's token
	SupabaseKey string

	// SupabaseJWTSecret verifies access tokens issued by Supabase Auth
	SupabaseJWTSecret string

	// MongoURI and MongoDatabase configure the self-hosted backend
	MongoURI      string
	MongoDatabase string

	// JWTSecret signs tokens issued by the local auth provider
	JWTSecret string

	// AIWorkerURL is the inference endpoint receiving {"prompt": "..."}
	AIWorkerURL string
	AITimeout   time.Duration

	// PrefsPath is where the display preference file lives
	PrefsPath string

	// WorkspaceIdleTimeout evicts browser workspaces nobody has touched
	WorkspaceIdleTimeout time.Duration

	// AuthRateLimitRPM caps sign-in/sign-up attempts per client per minute
	AuthRateLimitRPM int

	// FederatedRedirectURL is where the identity provider sends the browser back
	FederatedRedirectURL string
}

// Load reads environment variables and returns a populated Config struct.
// It will load from a .env file if present, then read from environment variables.
// Falls back to sensible defaults if values are not set.
func Load() *Config {
	// Not an error if .env is missing; production uses real environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		ServerPort:           getEnv("PORT", "8080"),
		CORSOrigins:          splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		StoreBackend:         strings.ToLower(getEnv("STORE_BACKEND", BackendSupabase)),
		SupabaseURL:          strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseKey:          getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseJWTSecret:    getEnv("SUPABASE_JWT_SECRET", ""),
		MongoURI:             getEnv("MONGODB_URI", ""),
		MongoDatabase:        getEnv("MONGODB_DATABASE", "llm_chat"),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		AIWorkerURL:          getEnv("AI_WORKER_URL", ""),
		AITimeout:            getDuration("AI_TIMEOUT", 60*time.Second),
		PrefsPath:            getEnv("PREFS_PATH", "prefs.json"),
		WorkspaceIdleTimeout: getDuration("WORKSPACE_IDLE_TIMEOUT", 30*time.Minute),
		AuthRateLimitRPM:     getInt("AUTH_RATE_LIMIT_RPM", 10),
		FederatedRedirectURL: getEnv("FEDERATED_REDIRECT_URL", "http://localhost:5173/auth/callback"),
	}

	// Validate required configuration
	switch config.StoreBackend {
	case BackendSupabase:
		if config.SupabaseURL == "" {
			log.Println("WARNING: SUPABASE_URL is not set")
		}
		if config.SupabaseKey == "" {
			log.Println("WARNING: SUPABASE_ANON_KEY is not set")
		}
		if config.SupabaseJWTSecret == "" {
			log.Println("WARNING: SUPABASE_JWT_SECRET is not set")
		}
	case BackendMongo:
		if config.MongoURI == "" {
			log.Println("WARNING: MONGODB_URI is not set")
		}
		if config.JWTSecret == "" {
			log.Println("WARNING: JWT_SECRET is not set")
		}
	case BackendMemory:
	default:
		log.Printf("WARNING: unknown STORE_BACKEND %q, using %s", config.StoreBackend, BackendMemory)
		config.StoreBackend = BackendMemory
	}
	if config.AIWorkerURL == "" {
		log.Println("WARNING: AI_WORKER_URL is not set")
	}

	return config
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("WARNING: invalid %s %q, using %v", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("WARNING: invalid %s %q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// splitList splits a comma-separated list and trims whitespace
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
