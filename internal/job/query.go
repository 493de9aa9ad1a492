package job

import (
	"maps"
	"time"

	"github.com/phrazzld/chapterforge/internal/events"
)

// GetStatus returns a snapshot of the job's record, or false if no job with
// that id is registered.
func (p *Processor) GetStatus(id string) (Record, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.snapshot(), true
}

// ListJobs returns a snapshot of every registered job keyed by id. If a
// status is given, only jobs in that status are returned; additional
// arguments are ignored.
func (p *Processor) ListJobs(filter ...Status) map[string]Record {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]Record, len(p.records))
	for id, rec := range p.records {
		if len(filter) > 0 && rec.Status != filter[0] {
			continue
		}
		out[id] = rec.snapshot()
	}
	return out
}

// UpdateProgress replaces the job's progress map with a copy of progress.
// It returns false if the job is unknown. No status check is made, so
// progress can be written to jobs in any state.
func (p *Processor) UpdateProgress(id string, progress map[string]any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[id]
	if !ok {
		return false
	}
	rec.Progress = cloneProgress(progress)
	return true
}

// CleanupCompleted removes completed, failed and cancelled jobs that
// finished more than maxAge ago and returns how many were removed. Pending,
// running and paused jobs are never removed.
func (p *Processor) CleanupCompleted(maxAge time.Duration) int {
	now := p.now()
	cutoff := now.Add(-maxAge)

	p.mu.Lock()
	var removed []*Record
	for id, rec := range p.records {
		if !rec.Status.IsTerminal() || rec.CompletedAt == nil {
			continue
		}
		if rec.CompletedAt.Before(cutoff) {
			delete(p.records, id)
			removed = append(removed, rec)
			p.queueEvent(events.NewJobEvent(events.JobRemoved, id, string(rec.Status)), rec.Generation)
		}
	}
	p.mu.Unlock()

	if len(removed) > 0 {
		p.logger.Info("removed finished jobs",
			"count", len(removed),
			"max_age", maxAge)
	}

	p.flushEvents()

	return len(removed)
}

func cloneProgress(progress map[string]any) map[string]any {
	if progress == nil {
		return map[string]any{}
	}
	return maps.Clone(progress)
}
