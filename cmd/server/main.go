// Package main implements the entry point for the chapterforge server, which
// accepts chapter generation requests over HTTP and runs them as background
// jobs against the Gemini API.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/chapterforge/internal/config"
	"github.com/phrazzld/chapterforge/internal/platform/gemini"
	"github.com/phrazzld/chapterforge/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chapterforge: %v\n", err)
		os.Exit(1)
	}
}

// run loads configuration, wires the application, and serves until SIGINT
// or SIGTERM.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"model", cfg.LLM.ModelName,
		"job_timeout", cfg.Jobs.Timeout(),
		"retention", cfg.Jobs.Retention())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	generator, err := gemini.NewGenerator(ctx, log.With("component", "llm_generator"), cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	log.Info("LLM generator initialized successfully")

	app := newApplication(cfg, log, generator)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", cfg.Server.Port, err)
	}

	return app.serve(ctx, listener)
}
