package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 3000, cfg.Dispatch.RateLimitBackoffMs)
	assert.Equal(t, 2, cfg.Pipeline.MaxStepRetries)
	assert.Equal(t, 300, cfg.Render.DebounceMs)
	assert.Equal(t, 3, cfg.Render.MaxConcurrent)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.GeminiModel)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 0.0001)
	assert.Equal(t, 8192, cfg.LLM.MaxOutputTokens)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GLYPHSMITH_SERVER_PORT", "9090")
	t.Setenv("GLYPHSMITH_SERVER_LOG_LEVEL", "debug")
	t.Setenv("GLYPHSMITH_RENDER_MAX_CONCURRENT", "5")
	t.Setenv("GLYPHSMITH_PIPELINE_MAX_STEP_RETRIES", "4")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 5, cfg.Render.MaxConcurrent)
	assert.Equal(t, 4, cfg.Pipeline.MaxStepRetries)
}

func TestLoadEnvKeysWithoutDefaults(t *testing.T) {
	// Keys with no default value must still be readable from the
	// environment, not just from a config file.
	t.Setenv("GLYPHSMITH_LLM_GEMINI_API_KEY", "test-key")
	t.Setenv("GLYPHSMITH_STORE_BACKEND", "redis")
	t.Setenv("GLYPHSMITH_STORE_REDIS_ADDR", "redis.internal:6379")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.LLM.GeminiAPIKey)
	assert.Equal(t, "redis.internal:6379", cfg.Store.RedisAddr)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "GLYPHSMITH_SERVER_LOG_LEVEL", "verbose"},
		{"port out of range", "GLYPHSMITH_SERVER_PORT", "70000"},
		{"unknown store backend", "GLYPHSMITH_STORE_BACKEND", "cassandra"},
		{"zero concurrency", "GLYPHSMITH_RENDER_MAX_CONCURRENT", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRedisBackendRequiresAddr(t *testing.T) {
	t.Setenv("GLYPHSMITH_STORE_BACKEND", "redis")

	_, err := Load()
	require.Error(t, err, "redis backend without an address must fail validation")

	t.Setenv("GLYPHSMITH_STORE_REDIS_ADDR", "localhost:6379")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "localhost:6379", cfg.Store.RedisAddr)
}
