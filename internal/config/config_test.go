package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("PORT", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("AI_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, 60*time.Second, cfg.AITimeout)
	assert.Equal(t, 10, cfg.AuthRateLimitRPM)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CORS_ORIGINS", " https://a.example.com , ,https://b.example.com")
	t.Setenv("AI_TIMEOUT", "5s")
	t.Setenv("AUTH_RATE_LIMIT_RPM", "nope")
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co/")

	cfg := Load()

	assert.Equal(t, BackendMongo, cfg.StoreBackend)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 5*time.Second, cfg.AITimeout)
	assert.Equal(t, 10, cfg.AuthRateLimitRPM)
	assert.Equal(t, "https://proj.supabase.co", cfg.SupabaseURL)
}

func TestLoad_UnknownBackendFallsBackToMemory(t *testing.T) {
	t.Setenv("STORE_BACKEND", "cassandra")

	cfg := Load()

	assert.Equal(t, BackendMemory, cfg.StoreBackend)
}
