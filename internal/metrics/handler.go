package metrics

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/chapterforge/internal/events"
)

// HandledEventTypes lists the events JobEventHandler reacts to. Pause and
// resume do not change any collector.
var HandledEventTypes = []events.EventType{
	events.JobSubmitted,
	events.JobStarted,
	events.JobCompleted,
	events.JobFailed,
	events.JobCancelled,
	events.JobRemoved,
}

// submission identifies one run of a job; a resubmitted ID is a new submission.
type submission struct {
	jobID      string
	generation uuid.UUID
}

// JobEventHandler updates the collectors from job lifecycle events.
type JobEventHandler struct {
	mu      sync.Mutex
	running map[submission]struct{}
}

var _ events.EventHandler = (*JobEventHandler)(nil)

// NewJobEventHandler creates a JobEventHandler.
func NewJobEventHandler() *JobEventHandler {
	return &JobEventHandler{running: make(map[submission]struct{})}
}

// HandleEvent implements events.EventHandler.
func (h *JobEventHandler) HandleEvent(_ context.Context, event *events.JobEvent) error {
	key := submission{jobID: event.JobID, generation: event.Generation}

	switch event.Type {
	case events.JobSubmitted:
		JobsSubmitted.Inc()
	case events.JobStarted:
		h.mu.Lock()
		if _, ok := h.running[key]; !ok {
			h.running[key] = struct{}{}
			JobsActive.Inc()
		}
		h.mu.Unlock()
	case events.JobCompleted, events.JobFailed, events.JobCancelled:
		h.mu.Lock()
		if _, ok := h.running[key]; ok {
			delete(h.running, key)
			JobsActive.Dec()
		}
		h.mu.Unlock()

		JobsFinished.WithLabelValues(event.Status).Inc()
		if event.Duration > 0 {
			JobDuration.WithLabelValues(event.Status).Observe(event.Duration.Seconds())
		}
	case events.JobRemoved:
		JobsCleaned.Inc()
	}
	return nil
}
