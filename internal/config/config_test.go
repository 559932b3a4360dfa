package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENROUTER_API_KEY", "OPENROUTER_API_URL", "COUNCIL_MODELS",
		"CHAIRMAN_MODEL", "TITLE_MODEL", "MODEL_TIMEOUT", "TITLE_TIMEOUT",
		"DATA_DIR", "CONVERSATION_STORE_PG_DSN", "CORS_ALLOWED_ORIGINS",
		"MAX_REQUEST_BODY_BYTES", "FETCH_CACHE_TTL", "FETCH_CACHE_SIZE",
		"PORT", "LOG_LEVEL", "LOG_FORMAT", "COUNCIL_CONFIG",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// TestLoadConfig tests configuration loading
func TestLoadConfig(t *testing.T) {
	t.Run("loads API key from environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENROUTER_API_KEY", "test-key-12345")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "test-key-12345", cfg.OpenRouterAPIKey)
		assert.Equal(t, DefaultCouncilModels, cfg.CouncilModels)
		assert.Equal(t, DefaultChairmanModel, cfg.ChairmanModel)
		assert.Equal(t, DefaultModelTimeout, cfg.ModelTimeout)
		assert.Equal(t, DefaultDataDir, cfg.DataDir)
	})

	t.Run("missing API key is an error", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("environment overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENROUTER_API_KEY", "k")
		t.Setenv("COUNCIL_MODELS", "a/one, b/two,,a/one")
		t.Setenv("CHAIRMAN_MODEL", "c/chair")
		t.Setenv("MODEL_TIMEOUT", "45s")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
		t.Setenv("FETCH_CACHE_SIZE", "16")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"a/one", "b/two"}, cfg.CouncilModels)
		assert.Equal(t, "c/chair", cfg.ChairmanModel)
		assert.Equal(t, 45*time.Second, cfg.ModelTimeout)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
		assert.Equal(t, 16, cfg.FetchCacheSize)
	})

	t.Run("invalid duration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENROUTER_API_KEY", "k")
		t.Setenv("TITLE_TIMEOUT", "soon")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("council file overrides environment", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "council.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
council:
  - x/first
  - y/second
chairman: x/first
model_timeout: 10s
`), 0o644))
		t.Setenv("OPENROUTER_API_KEY", "k")
		t.Setenv("COUNCIL_MODELS", "ignored/model")
		t.Setenv("COUNCIL_CONFIG", path)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"x/first", "y/second"}, cfg.CouncilModels)
		assert.Equal(t, "x/first", cfg.ChairmanModel)
		assert.Equal(t, 10*time.Second, cfg.ModelTimeout)
		assert.Equal(t, DefaultTitleTimeout, cfg.TitleTimeout)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults with key", mutate: func(c *Config) {}},
		{name: "empty council", mutate: func(c *Config) { c.CouncilModels = []string{" ", ""} }, wantErr: true},
		{name: "no chairman", mutate: func(c *Config) { c.ChairmanModel = "" }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.ModelTimeout = 0 }, wantErr: true},
		{name: "title model falls back to chairman", mutate: func(c *Config) { c.TitleModel = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.OpenRouterAPIKey = "k"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, cfg.TitleModel)
		})
	}
}

// TestCouncilModels tests that the default council is properly configured
func TestCouncilModels(t *testing.T) {
	cfg := Default()
	assert.Equal(t, []string{
		"openai/gpt-5.1",
		"google/gemini-3-pro-preview",
		"anthropic/claude-sonnet-4.5",
		"x-ai/grok-4",
	}, cfg.CouncilModels)
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", cfg.OpenRouterAPIURL)

	// Default must hand out a copy.
	cfg.CouncilModels[0] = "mutated"
	assert.Equal(t, "openai/gpt-5.1", DefaultCouncilModels[0])
}
