package job

import (
	"github.com/phrazzld/chapterforge/internal/events"
)

// Pause marks a running job as paused. It returns false unless the job is
// currently running.
//
// Pause is bookkeeping only. The work is not suspended or throttled and keeps
// running to completion while the record reads paused; a paused job can still
// finish as completed, failed or cancelled.
func (p *Processor) Pause(id string) bool {
	return p.transition(id, StatusRunning, StatusPaused, events.JobPaused)
}

// Resume marks a paused job as running again. It returns false unless the
// job is currently paused. Like Pause, it does not touch the running work.
func (p *Processor) Resume(id string) bool {
	return p.transition(id, StatusPaused, StatusRunning, events.JobResumed)
}

func (p *Processor) transition(id string, from, to Status, eventType events.EventType) bool {
	p.mu.Lock()
	rec, ok := p.records[id]
	if !ok || rec.Status != from {
		p.mu.Unlock()
		return false
	}
	rec.Status = to
	p.queueEvent(events.NewJobEvent(eventType, id, string(to)), rec.Generation)
	p.mu.Unlock()

	p.logger.Info("job status changed", "job_id", id, "from", from, "to", to)
	p.flushEvents()
	return true
}

// Cancel marks a pending, running or paused job as cancelled and signals its
// context. It returns false if the job is unknown or already terminal.
//
// The record becomes cancelled immediately, but cancellation of the work is
// cooperative: the goroutine keeps running until the work observes ctx.Done()
// and returns. Whatever the work returns afterwards is discarded, so the
// record never leaves the cancelled state.
func (p *Processor) Cancel(id string) bool {
	p.mu.Lock()
	rec, ok := p.records[id]
	if !ok || rec.Status.IsTerminal() {
		p.mu.Unlock()
		return false
	}

	if h, ok := p.handles[id]; ok {
		h.cancel()
	}

	now := p.now()
	rec.Status = StatusCancelled
	rec.CompletedAt = &now
	rec.Error = CancelledByUserMessage

	event := events.NewJobEvent(events.JobCancelled, id, string(StatusCancelled))
	event.Error = CancelledByUserMessage
	event.Duration = rec.Duration(now)
	p.queueEvent(event, rec.Generation)
	p.mu.Unlock()

	p.logger.Info("job cancelled by user", "job_id", id)
	p.flushEvents()
	return true
}
