package job

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Record is the status and metadata of one submitted job.
// Records returned by the Processor are snapshots; mutating them has no
// effect on the registry.
type Record struct {
	// ID is the caller-supplied job identifier
	ID string `json:"id"`

	// Generation distinguishes successive submissions of the same ID
	Generation uuid.UUID `json:"generation"`

	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error is set only for failed and cancelled jobs
	Error string `json:"error,omitempty"`

	// Progress is replaced wholesale on every update
	Progress map[string]any `json:"progress"`

	// Result is the value returned by the work, set only for completed jobs
	Result any `json:"result,omitempty"`
}

// Duration returns how long the job ran, measured up to now for jobs that
// have not finished. Jobs that never started report zero.
func (r Record) Duration(now time.Time) time.Duration {
	if r.StartedAt == nil {
		return 0
	}
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(*r.StartedAt)
	}
	return now.Sub(*r.StartedAt)
}

// snapshot returns a copy that shares nothing mutable with r.
func (r *Record) snapshot() Record {
	out := *r
	out.Progress = maps.Clone(r.Progress)
	if out.Progress == nil {
		out.Progress = map[string]any{}
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
