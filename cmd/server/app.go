package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/phrazzld/chapterforge/internal/chapter"
	"github.com/phrazzld/chapterforge/internal/config"
	"github.com/phrazzld/chapterforge/internal/events"
	"github.com/phrazzld/chapterforge/internal/generation"
	"github.com/phrazzld/chapterforge/internal/job"
	"github.com/phrazzld/chapterforge/internal/metrics"
)

// processorShutdownTimeout bounds how long cleanup waits for cancelled jobs
// to return.
const processorShutdownTimeout = 10 * time.Second

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	generator      generation.Generator
	eventEmitter   *events.InMemoryEventEmitter
	processor      *job.Processor
	chapterService *chapter.Service
}

// newApplication wires the job processor, its event handlers and the chapter
// service around generator.
func newApplication(cfg *config.Config, logger *slog.Logger, generator generation.Generator) *application {
	app := &application{
		config:    cfg,
		logger:    logger,
		generator: generator,
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(metrics.NewJobEventHandler(), metrics.HandledEventTypes...)
	app.eventEmitter.RegisterHandler(events.HandlerFunc(app.logJobEvent))

	app.processor = job.NewProcessor(logger, job.Options{
		JobTimeout: cfg.Jobs.Timeout(),
		Emitter:    app.eventEmitter,
	})

	app.chapterService = chapter.NewService(app.processor, generator, logger)

	logger.Info("job processor initialized",
		"job_timeout", cfg.Jobs.Timeout(),
		"cleanup_interval", cfg.Jobs.CleanupInterval())

	return app
}

// logJobEvent records every lifecycle event at debug level.
func (app *application) logJobEvent(ctx context.Context, event *events.JobEvent) error {
	app.logger.DebugContext(ctx, "job event",
		"event_type", event.Type,
		"job_id", event.JobID,
		"generation", event.Generation,
		"status", event.Status,
		"duration", event.Duration)
	return nil
}

// cleanup cancels running jobs and waits for them to return.
func (app *application) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), processorShutdownTimeout)
	defer cancel()

	if err := app.processor.Shutdown(ctx); err != nil {
		app.logger.Error("job processor shutdown incomplete", "error", err)
	}
}
