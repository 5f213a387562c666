package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LLM_PROVIDER", "STORE_DRIVER", "NATS_URL", "SESSION_TTL", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Nil(t, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("LLM_MAX_STEPS", "3")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("ALLOWED_ORIGINS", "chrome-extension://abc, https://ace.example.com,")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")

	cfg := Load()
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, 3, cfg.LLMMaxSteps)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, []string{"chrome-extension://abc", "https://ace.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 120, cfg.RateLimitRequests)
}
