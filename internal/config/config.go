// Package config provides configuration management for the Tomoru server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Tomoru server.
type Config struct {
	// ServerAddr is the address the HTTP server listens on (e.g., ":8080").
	ServerAddr string

	// DataDir is the directory for persistent data (SQLite DB, logs).
	DataDir string

	// DatabasePath is the full path to the SQLite event database.
	DatabasePath string

	// GeminiAPIKey is the credential for the generation endpoint. Never logged.
	GeminiAPIKey string

	// Model is the Gemini model name. Empty means the client default.
	Model string

	// LLMTimeout bounds a single generation call.
	LLMTimeout time.Duration

	// VisitIdleTimeout is how long an untouched visit is kept.
	VisitIdleTimeout time.Duration

	// ChatRPS and ChatBurst rate-limit chat submissions per visitor IP.
	ChatRPS   float64
	ChatBurst int

	// ChatMaxRunes bounds a single submission.
	ChatMaxRunes int

	// VisitRPS and VisitBurst rate-limit page loads and visit creation per
	// client IP. MaxOpenVisits caps visits held in memory.
	VisitRPS      float64
	VisitBurst    int
	MaxOpenVisits int

	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a reverse proxy that overwrites those headers.
	TrustProxy bool

	// SiteFile overrides the embedded site content.
	SiteFile string

	// Logging.
	LogLevel  string
	LogFormat string
	LogFile   string

	// Slack failure alerts (optional).
	SlackBotToken     string
	SlackAlertChannel string
}

// Load creates a Config from environment variables with sensible defaults.
func Load() (*Config, error) {
	dataDir := envOr("TOMORU_DATA_DIR", defaultDataDir())
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	cfg := &Config{
		ServerAddr:        envOr("TOMORU_ADDR", ":8080"),
		DataDir:           dataDir,
		DatabasePath:      envOr("TOMORU_DATABASE", filepath.Join(dataDir, "tomoru.db")),
		GeminiAPIKey:      strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Model:             os.Getenv("TOMORU_MODEL"),
		LLMTimeout:        time.Duration(envOrInt("TOMORU_LLM_TIMEOUT", 60)) * time.Second,
		VisitIdleTimeout:  time.Duration(envOrInt("TOMORU_VISIT_IDLE_MINUTES", 30)) * time.Minute,
		ChatRPS:           envOrFloat("TOMORU_CHAT_RPS", 0.5),
		ChatBurst:         envOrInt("TOMORU_CHAT_BURST", 3),
		ChatMaxRunes:      envOrInt("TOMORU_CHAT_MAX_RUNES", 1000),
		VisitRPS:          envOrFloat("TOMORU_VISIT_RPS", 1),
		VisitBurst:        envOrInt("TOMORU_VISIT_BURST", 10),
		MaxOpenVisits:     envOrInt("TOMORU_MAX_VISITS", 10000),
		TrustProxy:        envOrBool("TOMORU_TRUST_PROXY", false),
		SiteFile:          os.Getenv("TOMORU_SITE_FILE"),
		LogLevel:          envOr("TOMORU_LOG_LEVEL", "info"),
		LogFormat:         envOr("TOMORU_LOG_FORMAT", "json"),
		LogFile:           os.Getenv("TOMORU_LOG_FILE"),
		SlackBotToken:     os.Getenv("SLACK_BOT_TOKEN"),
		SlackAlertChannel: os.Getenv("SLACK_ALERT_CHANNEL"),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("TOMORU_LLM_TIMEOUT must be positive")
	}
	if c.VisitIdleTimeout <= 0 {
		return fmt.Errorf("TOMORU_VISIT_IDLE_MINUTES must be positive")
	}
	if c.ChatRPS <= 0 || c.ChatBurst <= 0 {
		return fmt.Errorf("TOMORU_CHAT_RPS and TOMORU_CHAT_BURST must be positive")
	}
	if c.VisitRPS <= 0 || c.VisitBurst <= 0 {
		return fmt.Errorf("TOMORU_VISIT_RPS and TOMORU_VISIT_BURST must be positive")
	}
	if c.MaxOpenVisits < 0 {
		return fmt.Errorf("TOMORU_MAX_VISITS must not be negative")
	}
	if (c.SlackBotToken == "") != (c.SlackAlertChannel == "") {
		return fmt.Errorf("SLACK_BOT_TOKEN and SLACK_ALERT_CHANNEL must be set together")
	}
	return nil
}

// SlackEnabled returns true if Slack failure alerts are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackAlertChannel != ""
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tomoru"
	}
	return filepath.Join(home, ".tomoru")
}
