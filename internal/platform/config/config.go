// Package config loads application configuration from environment variables.
// All variables use the QUIZ_ prefix.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	AI       AIConfig
	Sources  SourcesConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	Host            string
	AllowedOrigins  []string
	GenerateTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// results in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL uses an
// in-process cache.
type CacheConfig struct {
	URL string
	TTL time.Duration
}

// AIConfig holds configuration for all generative providers.
type AIConfig struct {
	OpenAI     ProviderConfig
	Anthropic  ProviderConfig
	DeepSeek   ProviderConfig
	Google     ProviderConfig
	OpenRouter ProviderConfig
	Ollama     OllamaConfig
	// Order is the fallback order by provider name.
	Order       []string
	CallTimeout time.Duration
	// TokenBudget caps tokens per provider per BudgetWindow; zero disables it.
	TokenBudget  int
	BudgetWindow time.Duration
}

// ProviderConfig holds a hosted provider's key and model.
type ProviderConfig struct {
	APIKey string
	Model  string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
	Model   string
}

// SourcesConfig holds the non-generative data source settings.
type SourcesConfig struct {
	DatasetsDir  string
	LiveEnabled  bool
	LiveBaseURL  string
	MaxQuestions int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// ProviderNames lists every provider name accepted in QUIZ_AI_ORDER.
var ProviderNames = []string{"openai", "anthropic", "deepseek", "google", "openrouter", "ollama"}

// Load reads configuration from environment variables with QUIZ_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("QUIZ_SERVER_PORT", 8080),
			Host:            envStr("QUIZ_SERVER_HOST", "0.0.0.0"),
			AllowedOrigins:  envList("QUIZ_SERVER_ALLOWED_ORIGINS", nil),
			GenerateTimeout: envDuration("QUIZ_SERVER_GENERATE_TIMEOUT", 90*time.Second),
		},
		Database: DatabaseConfig{
			URL:      envStr("QUIZ_DATABASE_URL", ""),
			MaxConns: envInt("QUIZ_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("QUIZ_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL: envStr("QUIZ_CACHE_URL", ""),
			TTL: envDuration("QUIZ_CACHE_TTL", 24*time.Hour),
		},
		AI: AIConfig{
			OpenAI: ProviderConfig{
				APIKey: envStr("QUIZ_AI_OPENAI_API_KEY", ""),
				Model:  envStr("QUIZ_AI_OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: ProviderConfig{
				APIKey: envStr("QUIZ_AI_ANTHROPIC_API_KEY", ""),
				Model:  envStr("QUIZ_AI_ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			},
			DeepSeek: ProviderConfig{
				APIKey: envStr("QUIZ_AI_DEEPSEEK_API_KEY", ""),
				Model:  envStr("QUIZ_AI_DEEPSEEK_MODEL", "deepseek-chat"),
			},
			Google: ProviderConfig{
				APIKey: envStr("QUIZ_AI_GOOGLE_API_KEY", ""),
				Model:  envStr("QUIZ_AI_GOOGLE_MODEL", "gemini-2.0-flash"),
			},
			OpenRouter: ProviderConfig{
				APIKey: envStr("QUIZ_AI_OPENROUTER_API_KEY", ""),
				Model:  envStr("QUIZ_AI_OPENROUTER_MODEL", "openai/gpt-4o-mini"),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("QUIZ_AI_OLLAMA_ENABLED", false),
				URL:     envStr("QUIZ_AI_OLLAMA_URL", "http://localhost:11434"),
				Model:   envStr("QUIZ_AI_OLLAMA_MODEL", "llama3.1"),
			},
			Order:        envList("QUIZ_AI_ORDER", []string{"openai", "anthropic", "google", "deepseek", "openrouter", "ollama"}),
			CallTimeout:  envDuration("QUIZ_AI_CALL_TIMEOUT", 60*time.Second),
			TokenBudget:  envInt("QUIZ_AI_TOKEN_BUDGET", 0),
			BudgetWindow: envDuration("QUIZ_AI_BUDGET_WINDOW", 24*time.Hour),
		},
		Sources: SourcesConfig{
			DatasetsDir:  envStr("QUIZ_DATASETS_DIR", ""),
			LiveEnabled:  envBool("QUIZ_LIVE_ENABLED", true),
			LiveBaseURL:  envStr("QUIZ_LIVE_BASE_URL", "https://www.basketball-reference.com"),
			MaxQuestions: envInt("QUIZ_MAX_QUESTIONS", 25),
		},
		Log: LogConfig{
			Level:  envStr("QUIZ_LOG_LEVEL", "info"),
			Format: envStr("QUIZ_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("QUIZ_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("QUIZ_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	for _, name := range c.AI.Order {
		if !slices.Contains(ProviderNames, name) {
			return fmt.Errorf("QUIZ_AI_ORDER: unknown provider %q", name)
		}
	}

	if c.Database.URL != "" && c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("QUIZ_DATABASE_MIN_CONNS (%d) exceeds QUIZ_DATABASE_MAX_CONNS (%d)",
			c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Sources.MaxQuestions <= 0 {
		return fmt.Errorf("QUIZ_MAX_QUESTIONS must be positive, got %d", c.Sources.MaxQuestions)
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.Anthropic.APIKey != "" ||
		c.AI.DeepSeek.APIKey != "" ||
		c.AI.Google.APIKey != "" ||
		c.AI.OpenRouter.APIKey != "" ||
		c.AI.Ollama.Enabled
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("QUIZ_LOG_LEVEL: %w", err)
	}
	return level, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping blanks.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
