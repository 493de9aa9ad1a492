package events

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// subscription is a handler plus the event types it asked for. An empty
// types list receives every job event.
type subscription struct {
	handler EventHandler
	types   []EventType
}

func (s subscription) wants(t EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// InMemoryEventEmitter dispatches job lifecycle events to in-process handlers.
//
// Handlers run synchronously on the goroutine that calls EmitEvent, in
// registration order. The job processor calls EmitEvent from a single
// delivering goroutine at a time, so a handler observes the events of one
// job in the order the job changed state. A handler that panics is reported
// as a failed handler and does not stop delivery to the others.
type InMemoryEventEmitter struct {
	subs   []subscription
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		logger: logger.With("component", "job_event_emitter"),
	}
}

// RegisterHandler subscribes handler to the given event types, or to all
// job events when none are given.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler, types ...EventType) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.subs = append(e.subs, subscription{handler: handler, types: slices.Clone(types)})
	e.logger.Debug("registered job event handler",
		"handler_count", len(e.subs),
		"event_types", types)
}

// EmitEvent publishes the given event to every handler subscribed to its type.
// If any handler fails, the event is still sent to the remaining handlers and
// the first error encountered is returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *JobEvent) error {
	e.mu.RLock()
	subs := slices.Clone(e.subs)
	e.mu.RUnlock()

	var firstErr error
	delivered := 0
	for i, sub := range subs {
		if !sub.wants(event.Type) {
			continue
		}
		delivered++

		if err := e.dispatch(ctx, sub.handler, event); err != nil {
			e.logger.Error("handler failed to process job event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_type", event.Type,
				"job_id", event.JobID,
				"generation", event.Generation)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if delivered == 0 {
		e.logger.Debug("no handlers subscribed to job event",
			"event_type", event.Type,
			"job_id", event.JobID)
	}

	return firstErr
}

// dispatch calls one handler, turning a panic into an error.
func (e *InMemoryEventEmitter) dispatch(ctx context.Context, handler EventHandler, event *JobEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked on %s for job %s: %v", event.Type, event.JobID, r)
		}
	}()
	return handler.HandleEvent(ctx, event)
}

var _ EventEmitter = (*InMemoryEventEmitter)(nil)
