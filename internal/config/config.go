package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Defaults used when the environment does not override them.
var (
	DefaultCouncilModels = []string{
		"openai/gpt-5.1",
		"google/gemini-3-pro-preview",
		"anthropic/claude-sonnet-4.5",
		"x-ai/grok-4",
	}

	DefaultChairmanModel = "google/gemini-3-pro-preview"

	// DefaultTitleModel is a fast model used only for conversation titles.
	DefaultTitleModel = "google/gemini-2.5-flash"

	DefaultOpenRouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"

	DefaultDataDir = "data/conversations"

	DefaultModelTimeout = 120 * time.Second
	DefaultTitleTimeout = 30 * time.Second

	// DefaultMaxRequestBodySize is 1MB.
	DefaultMaxRequestBodySize int64 = 1 << 20

	DefaultFetchCacheTTL  = 5 * time.Minute
	DefaultFetchCacheSize = 128

	DefaultPort = "8001"
)

// Config is the process-wide configuration. It is loaded once at startup and
// handed to each component explicitly.
type Config struct {
	OpenRouterAPIKey string
	OpenRouterAPIURL string

	CouncilModels []string
	ChairmanModel string
	TitleModel    string

	ModelTimeout time.Duration
	TitleTimeout time.Duration

	DataDir     string
	PostgresDSN string

	// CORSAllowedOrigins is empty in development, which allows any
	// localhost origin.
	CORSAllowedOrigins []string
	MaxRequestBodySize int64

	FetchCacheTTL  time.Duration
	FetchCacheSize int

	Port      string
	LogLevel  string
	LogFormat string
}

// Default returns a Config populated with the built-in defaults and no API key.
func Default() *Config {
	return &Config{
		OpenRouterAPIURL:   DefaultOpenRouterAPIURL,
		CouncilModels:      append([]string(nil), DefaultCouncilModels...),
		ChairmanModel:      DefaultChairmanModel,
		TitleModel:         DefaultTitleModel,
		ModelTimeout:       DefaultModelTimeout,
		TitleTimeout:       DefaultTitleTimeout,
		DataDir:            DefaultDataDir,
		MaxRequestBodySize: DefaultMaxRequestBodySize,
		FetchCacheTTL:      DefaultFetchCacheTTL,
		FetchCacheSize:     DefaultFetchCacheSize,
		Port:               DefaultPort,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load loads configuration from a .env file (if one is found), the process
// environment and, when COUNCIL_CONFIG is set, a YAML council file.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if path := strings.TrimSpace(os.Getenv("COUNCIL_CONFIG")); path != "" {
		file, err := LoadCouncilFile(path)
		if err != nil {
			return nil, err
		}
		file.Apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv tries the current and the parent directory. Variables already
// present in the environment win over the file.
func loadDotEnv() {
	for _, envPath := range []string{".env", "../.env"} {
		absPath, err := filepath.Abs(envPath)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err != nil {
			continue
		}
		if err := godotenv.Load(absPath); err == nil {
			logrus.WithField("path", absPath).Debug("config.dotenv.loaded")
			return
		}
	}
	logrus.Debug("config.dotenv.missing")
}

func (c *Config) applyEnv() error {
	c.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	setString(&c.OpenRouterAPIURL, "OPENROUTER_API_URL")
	setString(&c.ChairmanModel, "CHAIRMAN_MODEL")
	setString(&c.TitleModel, "TITLE_MODEL")
	setString(&c.DataDir, "DATA_DIR")
	setString(&c.PostgresDSN, "CONVERSATION_STORE_PG_DSN")
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")

	if models := splitList(os.Getenv("COUNCIL_MODELS")); len(models) > 0 {
		c.CouncilModels = models
	}
	if origins := splitList(os.Getenv("CORS_ALLOWED_ORIGINS")); len(origins) > 0 {
		c.CORSAllowedOrigins = origins
	}

	var err error
	if c.ModelTimeout, err = durationEnv("MODEL_TIMEOUT", c.ModelTimeout); err != nil {
		return err
	}
	if c.TitleTimeout, err = durationEnv("TITLE_TIMEOUT", c.TitleTimeout); err != nil {
		return err
	}
	if c.FetchCacheTTL, err = durationEnv("FETCH_CACHE_TTL", c.FetchCacheTTL); err != nil {
		return err
	}
	if v := strings.TrimSpace(os.Getenv("FETCH_CACHE_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FETCH_CACHE_SIZE %q: %w", v, err)
		}
		c.FetchCacheSize = n
	}
	if v := strings.TrimSpace(os.Getenv("MAX_REQUEST_BODY_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_REQUEST_BODY_BYTES %q: %w", v, err)
		}
		c.MaxRequestBodySize = n
	}
	return nil
}

// Validate checks required values and normalizes the council list into an
// ordered set.
func (c *Config) Validate() error {
	if c.OpenRouterAPIKey == "" {
		return errors.New("OPENROUTER_API_KEY environment variable is required")
	}
	c.CouncilModels = dedupe(c.CouncilModels)
	if len(c.CouncilModels) == 0 {
		return errors.New("at least one council model is required")
	}
	if c.ChairmanModel == "" {
		return errors.New("chairman model is required")
	}
	if c.TitleModel == "" {
		c.TitleModel = c.ChairmanModel
	}
	if c.ModelTimeout <= 0 || c.TitleTimeout <= 0 {
		return errors.New("model and title timeouts must be positive")
	}
	if c.FetchCacheSize <= 0 {
		c.FetchCacheSize = DefaultFetchCacheSize
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

// splitList splits a comma separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
