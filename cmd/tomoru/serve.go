package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jxucoder/tomoru"
	"github.com/jxucoder/tomoru/internal/config"
	"github.com/jxucoder/tomoru/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tomoru server",
	Long:  "Start the HTTP server that renders the café page and answers the chat widget.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.Init(cfg)
	if err != nil {
		logger.Warn("log file unavailable, logging to stderr", "error", err)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := tomoru.NewBuilder().
		WithConfig(cfg).
		WithLogger(logger).
		Build(ctx)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down...")
	}()

	return app.Start(ctx)
}
