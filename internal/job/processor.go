package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/chapterforge/internal/events"
)

// WorkFunc is the unit of work a job executes. It receives the job context,
// which is cancelled when the job is cancelled, and the arguments given to
// Submit. The returned value becomes the Record's Result.
type WorkFunc func(ctx context.Context, args ...any) (any, error)

// Options holds configuration for the Processor
type Options struct {
	// JobTimeout bounds how long a single job may run. Zero means no limit.
	// An expired deadline is recorded as a failure, not a cancellation.
	JobTimeout time.Duration

	// Emitter receives a JobEvent for every lifecycle transition.
	// If nil, no events are emitted.
	Emitter events.EventEmitter

	// Clock returns the current time. If nil, time.Now is used.
	Clock func() time.Time
}

// DefaultOptions returns Options with no timeout and no event emitter.
func DefaultOptions() Options {
	return Options{}
}

// handle carries the cancellation signal for one submission of a job.
// It is stored at Submit, not when the job starts running, so a pending or
// paused job can be cancelled too; it is removed when the goroutine returns.
type handle struct {
	generation uuid.UUID
	cancel     context.CancelFunc
}

// Processor schedules jobs on goroutines and tracks them in an in-memory
// registry. It is safe for concurrent use. Construct one per process with
// NewProcessor and share the pointer with every collaborator.
type Processor struct {
	mu      sync.RWMutex
	records map[string]*Record
	handles map[string]handle
	stopped bool

	// outbox holds events queued under mu in transition order; whichever
	// goroutine holds flushing delivers them, so handlers see each job's
	// events in the order its record changed
	outbox   []*events.JobEvent
	flushing bool

	// baseCtx is the parent of every job context; cancelled on Shutdown
	baseCtx    context.Context
	cancelBase context.CancelFunc

	// wg tracks running job goroutines for clean shutdown
	wg sync.WaitGroup

	jobTimeout time.Duration
	emitter    events.EventEmitter
	now        func() time.Time
	logger     *slog.Logger
}

// NewProcessor creates a new Processor with the specified options.
func NewProcessor(logger *slog.Logger, opts Options) *Processor {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.JobTimeout < 0 {
		logger.Warn("negative job timeout specified, disabling timeout",
			"specified_timeout", opts.JobTimeout)
		opts.JobTimeout = 0
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		records:    make(map[string]*Record),
		handles:    make(map[string]handle),
		baseCtx:    ctx,
		cancelBase: cancel,
		jobTimeout: opts.JobTimeout,
		emitter:    opts.Emitter,
		now:        clock,
		logger:     logger.With("component", "job_processor"),
	}
}

// Submit registers a new pending job and starts work on its own goroutine.
// It returns as soon as the record exists and the goroutine has been
// started; the returned snapshot is pending or already running.
//
// Submitting an id that is already registered replaces the old record. The
// previous submission is cancelled and, because every write is tagged with
// its submission generation, it can never update the new record.
func (p *Processor) Submit(id string, work WorkFunc, args ...any) (Record, error) {
	if id == "" {
		return Record{}, ErrEmptyJobID
	}
	if work == nil {
		return Record{}, ErrNilWork
	}

	ctx, cancel := context.WithCancel(p.baseCtx)
	rec := &Record{
		ID:         id,
		Generation: uuid.New(),
		Status:     StatusPending,
		CreatedAt:  p.now(),
		Progress:   map[string]any{},
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		cancel()
		return Record{}, ErrProcessorStopped
	}

	if prev, ok := p.handles[id]; ok {
		prev.cancel()
		p.logger.Warn("job id resubmitted, superseding previous submission",
			"job_id", id,
			"previous_generation", prev.generation,
			"generation", rec.Generation)
	}
	if prev, ok := p.records[id]; ok && !prev.Status.IsTerminal() {
		event := events.NewJobEvent(events.JobCancelled, id, string(StatusCancelled))
		event.Error = SupersededMessage
		event.Duration = prev.Duration(rec.CreatedAt)
		p.queueEvent(event, prev.Generation)
	}

	p.records[id] = rec
	p.handles[id] = handle{generation: rec.Generation, cancel: cancel}
	snapshot := rec.snapshot()
	p.queueEvent(events.NewJobEvent(events.JobSubmitted, id, string(StatusPending)), rec.Generation)
	p.wg.Add(1)
	p.mu.Unlock()

	p.logger.Info("job submitted", "job_id", id, "generation", rec.Generation)
	p.flushEvents()

	go p.execute(ctx, cancel, id, rec.Generation, work, args)

	return snapshot, nil
}

// execute is the wrapper around one submission's work. It moves the record
// to running, invokes the work, and records exactly one terminal outcome.
// It never propagates failures to the caller.
func (p *Processor) execute(
	ctx context.Context,
	cancel context.CancelFunc,
	id string,
	generation uuid.UUID,
	work WorkFunc,
	args []any,
) {
	defer p.wg.Done()
	defer cancel()
	defer p.removeHandle(id, generation)

	logger := p.logger.With("job_id", id, "generation", generation)

	if !p.markRunning(id, generation) {
		logger.Debug("job no longer pending, skipping execution")
		return
	}

	runCtx := withJob(ctx, p, id, generation)
	if p.jobTimeout > 0 {
		var stop context.CancelFunc
		runCtx, stop = context.WithTimeout(runCtx, p.jobTimeout)
		defer stop()
	}

	result, err := p.invoke(runCtx, logger, work, args)

	switch {
	case err == nil:
		if p.finish(id, generation, StatusCompleted, result, "") {
			logger.Info("job completed successfully")
		}
	case errors.Is(ctx.Err(), context.Canceled):
		if p.finish(id, generation, StatusCancelled, nil, CancelledMessage) {
			logger.Info("job stopped after cancellation", "error", err)
		}
	default:
		if p.finish(id, generation, StatusFailed, nil, err.Error()) {
			logger.Error("job execution failed", "error", err)
		}
	}
}

// invoke calls work and converts a panic into an error.
func (p *Processor) invoke(
	ctx context.Context,
	logger *slog.Logger,
	work WorkFunc,
	args []any,
) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job work panicked",
				"panic", r,
				"stack", string(debug.Stack()))
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return work(ctx, args...)
}

// markRunning moves a pending record to running. It returns false if the
// record was cancelled, removed, or superseded before the goroutine started.
func (p *Processor) markRunning(id string, generation uuid.UUID) bool {
	p.mu.Lock()
	rec, ok := p.records[id]
	if !ok || rec.Generation != generation || rec.Status != StatusPending {
		p.mu.Unlock()
		return false
	}
	now := p.now()
	rec.Status = StatusRunning
	rec.StartedAt = &now
	p.queueEvent(events.NewJobEvent(events.JobStarted, id, string(StatusRunning)), generation)
	p.mu.Unlock()

	p.flushEvents()
	return true
}

// finish applies a terminal outcome produced by the work itself. Outcomes
// for records that are already terminal (cancelled by the caller) or that
// belong to a superseded generation are discarded.
func (p *Processor) finish(id string, generation uuid.UUID, status Status, result any, message string) bool {
	p.mu.Lock()
	rec, ok := p.records[id]
	if !ok || rec.Generation != generation || rec.Status.IsTerminal() {
		p.mu.Unlock()
		return false
	}

	now := p.now()
	rec.Status = status
	rec.CompletedAt = &now
	if status == StatusCompleted {
		rec.Result = result
	} else {
		rec.Error = message
	}
	event := events.NewJobEvent(terminalEventType(status), id, string(status))
	event.Error = message
	event.Duration = rec.Duration(now)
	p.queueEvent(event, generation)
	p.mu.Unlock()

	p.flushEvents()
	return true
}

// removeHandle drops the execution handle for generation, if it is still
// the registered one.
func (p *Processor) removeHandle(id string, generation uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.handles[id]; ok && h.generation == generation {
		delete(p.handles, id)
	}
}

// Shutdown stops accepting jobs, cancels every running job, and waits for
// their goroutines to return or for ctx to expire. Records are left in place.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	running := len(p.handles)
	p.mu.Unlock()

	p.logger.Info("shutting down job processor", "running_jobs", running)
	p.cancelBase()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("job processor stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("job processor shutdown timed out", "error", ctx.Err())
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

// queueEvent appends event to the outbox. It must be called with p.mu held,
// in the same critical section as the change the event describes.
func (p *Processor) queueEvent(event *events.JobEvent, generation uuid.UUID) {
	if p.emitter == nil {
		return
	}
	event.Generation = generation
	p.outbox = append(p.outbox, event)
}

// flushEvents delivers queued events in order. If another goroutine is
// already delivering, it returns at once and that goroutine picks up the
// new events before it stops. It must be called without holding p.mu.
func (p *Processor) flushEvents() {
	p.mu.Lock()
	if p.flushing {
		p.mu.Unlock()
		return
	}
	p.flushing = true
	for len(p.outbox) > 0 {
		batch := p.outbox
		p.outbox = nil
		p.mu.Unlock()

		for _, event := range batch {
			p.emit(event)
		}

		p.mu.Lock()
	}
	p.flushing = false
	p.mu.Unlock()
}

// emit publishes event to the configured emitter. It must be called
// without holding p.mu.
func (p *Processor) emit(event *events.JobEvent) {
	if p.emitter == nil {
		return
	}
	if err := p.emitter.EmitEvent(context.Background(), event); err != nil {
		p.logger.Warn("failed to emit job event",
			"error", err,
			"event_type", event.Type,
			"job_id", event.JobID)
	}
}

func terminalEventType(status Status) events.EventType {
	switch status {
	case StatusCompleted:
		return events.JobCompleted
	case StatusCancelled:
		return events.JobCancelled
	default:
		return events.JobFailed
	}
}
