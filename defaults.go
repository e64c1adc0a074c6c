package tomoru

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jxucoder/tomoru/internal/alert"
	"github.com/jxucoder/tomoru/internal/config"
	"github.com/jxucoder/tomoru/internal/metrics"
	"github.com/jxucoder/tomoru/llm/gemini"
	"github.com/jxucoder/tomoru/site"
	sqliteStore "github.com/jxucoder/tomoru/store/sqlite"
)

// applyDefaults fills in missing fields on the builder with sensible defaults.
func applyDefaults(ctx context.Context, b *Builder) error {
	if b.config == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		b.config = cfg
	}
	cfg := b.config

	// Config defaults.
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = ":8080"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = ".tomoru"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "tomoru.db")
	}
	if cfg.ChatRPS <= 0 {
		cfg.ChatRPS = 0.5
	}
	if cfg.ChatBurst <= 0 {
		cfg.ChatBurst = 3
	}
	if cfg.VisitRPS <= 0 {
		cfg.VisitRPS = 1
	}
	if cfg.VisitBurst <= 0 {
		cfg.VisitBurst = 10
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	// Store.
	if b.store == nil {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		st, err := sqliteStore.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("initializing store: %w", err)
		}
		b.store = st
	}

	// Generator.
	if b.llm == nil {
		client, err := gemini.New(ctx, gemini.Options{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.Model,
			Timeout: cfg.LLMTimeout,
		})
		if err != nil {
			return fmt.Errorf("initializing gemini client: %w", err)
		}
		b.llm = client
		b.logger.Info("gemini client ready", "model", client.Model())
	}

	// Site content.
	if b.site == nil {
		s, err := site.Load(cfg.SiteFile)
		if err != nil {
			return err
		}
		b.site = s
	}

	if b.metrics == nil {
		b.metrics = metrics.New()
	}

	if b.alerter == nil && cfg.SlackEnabled() {
		b.alerter = alert.NewSlack(cfg.SlackBotToken, cfg.SlackAlertChannel, b.logger)
	}

	return nil
}
