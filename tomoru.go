// Package tomoru is the top-level entry point for the 喫茶灯 site server.
//
// Use the Builder to compose an application:
//
//	app, err := tomoru.NewBuilder().WithConfig(cfg).Build(ctx)
//	app.Start(ctx)
//
// Or swap components:
//
//	app, err := tomoru.NewBuilder().
//	    WithConfig(cfg).
//	    WithStore(myStore).
//	    WithLLM(myClient).
//	    Build(ctx)
package tomoru

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jxucoder/tomoru/engine"
	"github.com/jxucoder/tomoru/httpapi"
	"github.com/jxucoder/tomoru/internal/config"
	"github.com/jxucoder/tomoru/internal/metrics"
	"github.com/jxucoder/tomoru/llm"
	"github.com/jxucoder/tomoru/site"
	"github.com/jxucoder/tomoru/store"
	"github.com/jxucoder/tomoru/web"
)

const shutdownTimeout = 10 * time.Second

// Builder constructs an App.
type Builder struct {
	config  *config.Config
	store   store.EventStore
	llm     llm.Client
	site    *site.Site
	metrics *metrics.Metrics
	alerter engine.Alerter
	logger  *slog.Logger
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the application configuration.
func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the event store implementation.
func (b *Builder) WithStore(s store.EventStore) *Builder {
	b.store = s
	return b
}

// WithLLM sets the text-generation client behind the chat widget.
func (b *Builder) WithLLM(client llm.Client) *Builder {
	b.llm = client
	return b
}

// WithSite sets the page content.
func (b *Builder) WithSite(s *site.Site) *Builder {
	b.site = s
	return b
}

// WithAlerter sets the chat failure alerter.
func (b *Builder) WithAlerter(a engine.Alerter) *Builder {
	b.alerter = a
	return b
}

// WithLogger sets the logger used by all components.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Build creates the App. Missing components are filled with defaults.
func (b *Builder) Build(ctx context.Context) (*App, error) {
	if err := applyDefaults(ctx, b); err != nil {
		return nil, err
	}

	renderer, err := web.NewRenderer(b.site, web.WithMaxInput(b.config.ChatMaxRunes))
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{engine.WithMetrics(b.metrics), engine.WithLogger(b.logger)}
	if b.alerter != nil {
		opts = append(opts, engine.WithAlerter(b.alerter))
	}
	eng := engine.New(
		engine.Config{
			Blocks:           site.Blocks(),
			VisitIdleTimeout: b.config.VisitIdleTimeout,
			ChatMaxRunes:     b.config.ChatMaxRunes,
			MaxOpenVisits:    b.config.MaxOpenVisits,
		},
		b.store,
		b.llm,
		opts...,
	)

	limiter := httpapi.NewRateLimiter(b.config.ChatRPS, b.config.ChatBurst)
	visitLimiter := httpapi.NewRateLimiter(b.config.VisitRPS, b.config.VisitBurst)
	handler := httpapi.New(eng, renderer,
		httpapi.WithRateLimiter(limiter),
		httpapi.WithVisitLimiter(visitLimiter),
		httpapi.WithTrustedProxy(b.config.TrustProxy),
		httpapi.WithMetrics(b.metrics),
		httpapi.WithLogger(b.logger),
	)

	return &App{
		config:   b.config,
		engine:   eng,
		limiters: []*httpapi.RateLimiter{limiter, visitLimiter},
		handler:  handler,
		logger:   b.logger,
	}, nil
}

// App is a running site server.
type App struct {
	config   *config.Config
	engine   *engine.Engine
	limiters []*httpapi.RateLimiter
	handler  *httpapi.Handler
	logger   *slog.Logger
}

// Engine returns the underlying engine for direct access.
func (a *App) Engine() *engine.Engine { return a.engine }

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.handler.Router() }

// Start starts the HTTP server. Blocks until ctx is done, then shuts down
// gracefully and closes the store.
func (a *App) Start(ctx context.Context) error {
	a.engine.Start(ctx)
	for _, rl := range a.limiters {
		go rl.Run(ctx)
	}

	srv := &http.Server{
		Addr:              a.config.ServerAddr,
		Handler:           a.handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown", "error", err)
		}
	}()

	a.logger.Info("tomoru server listening", "addr", a.config.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.engine.Stop()
		serveErr := fmt.Errorf("serving http: %w", err)
		if cerr := a.engine.Store().Close(); cerr != nil {
			return errors.Join(serveErr, fmt.Errorf("closing store: %w", cerr))
		}
		return serveErr
	}

	// Stop waits for chat calls still running so their outcomes reach the
	// store before it closes.
	a.engine.Stop()
	return a.engine.Store().Close()
}
