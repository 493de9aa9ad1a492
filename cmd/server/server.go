package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	serverShutdownTimeout = 10 * time.Second
	readHeaderTimeout     = 10 * time.Second
)

// serve runs the HTTP server on listener and the retention janitor until ctx
// is cancelled or the server fails, then shuts both down and cancels any
// running jobs.
func (app *application) serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("starting server", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return app.processor.RunJanitor(gctx,
			app.config.Jobs.CleanupInterval(),
			app.config.Jobs.Retention())
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()

	app.cleanup()

	if err != nil {
		app.logger.Error("server stopped with error", "error", err)
		return err
	}
	app.logger.Info("server shutdown completed")
	return nil
}
