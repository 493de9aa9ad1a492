package api

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/phrazzld/chapterforge/internal/api/shared"
	"github.com/phrazzld/chapterforge/internal/generation"
	"github.com/phrazzld/chapterforge/internal/job"
)

// CreateChapterRequest is the body of POST /api/chapters.
type CreateChapterRequest struct {
	// JobID is optional; the server generates one when empty
	JobID string `json:"job_id,omitempty"`

	generation.ChapterRequest
}

// Validate checks the job id and the chapter request. Job ids must be
// addressable as a single path segment.
func (r CreateChapterRequest) Validate() error {
	if err := shared.ValidateVar(r.JobID, "omitempty,max=128,printascii"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJobID, err)
	}
	if strings.ContainsAny(r.JobID, "/?# ") {
		return fmt.Errorf("%w: must not contain '/', '?', '#' or spaces", ErrInvalidJobID)
	}
	return r.ChapterRequest.Validate()
}

// JobResponse is the JSON rendering of a job record.
type JobResponse struct {
	ID          string         `json:"id"`
	Status      job.Status     `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Progress    map[string]any `json:"progress"`
	Result      any            `json:"result,omitempty"`
}

// ListJobsResponse is the body of GET /api/jobs.
type ListJobsResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Count int           `json:"count"`
}

// CleanupResponse is the body of DELETE /api/jobs.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

func newJobResponse(rec job.Record) JobResponse {
	progress := rec.Progress
	if progress == nil {
		progress = map[string]any{}
	}
	return JobResponse{
		ID:          rec.ID,
		Status:      rec.Status,
		CreatedAt:   rec.CreatedAt,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
		Error:       rec.Error,
		Progress:    progress,
		Result:      rec.Result,
	}
}

// newListJobsResponse orders jobs oldest first, ties broken by id.
func newListJobsResponse(records map[string]job.Record) ListJobsResponse {
	jobs := make([]JobResponse, 0, len(records))
	for _, rec := range records {
		jobs = append(jobs, newJobResponse(rec))
	}
	slices.SortFunc(jobs, func(a, b JobResponse) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return ListJobsResponse{Jobs: jobs, Count: len(jobs)}
}
