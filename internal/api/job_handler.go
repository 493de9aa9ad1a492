package api

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/chapterforge/internal/api/shared"
	"github.com/phrazzld/chapterforge/internal/job"
)

// JobService is the part of job.Processor the HTTP layer uses.
type JobService interface {
	GetStatus(id string) (job.Record, bool)
	ListJobs(filter ...job.Status) map[string]job.Record
	Pause(id string) bool
	Resume(id string) bool
	Cancel(id string) bool
	CleanupCompleted(maxAge time.Duration) int
}

// JobHandler handles job query and control requests.
type JobHandler struct {
	jobs             JobService
	defaultRetention time.Duration
	logger           *slog.Logger
}

// NewJobHandler creates a new JobHandler. defaultRetention is the age used
// by DELETE /api/jobs when older_than_hours is not given.
func NewJobHandler(jobs JobService, defaultRetention time.Duration, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		jobs:             jobs,
		defaultRetention: defaultRetention,
		logger:           logger.With("component", "job_handler"),
	}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, ok := h.jobs.GetStatus(id)
	if !ok {
		respondWithDomainError(w, r, fmt.Errorf("%w: %s", ErrJobNotFound, id))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newJobResponse(rec))
}

// ListJobs handles GET /api/jobs with an optional ?status= filter.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	var records map[string]job.Record

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := job.ParseStatus(raw)
		if err != nil {
			respondWithDomainError(w, r, err)
			return
		}
		records = h.jobs.ListJobs(status)
	} else {
		records = h.jobs.ListJobs()
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newListJobsResponse(records))
}

// PauseJob handles POST /api/jobs/{id}/pause.
func (h *JobHandler) PauseJob(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "pause", h.jobs.Pause)
}

// ResumeJob handles POST /api/jobs/{id}/resume.
func (h *JobHandler) ResumeJob(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "resume", h.jobs.Resume)
}

// CancelJob handles POST /api/jobs/{id}/cancel.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "cancel", h.jobs.Cancel)
}

// control applies action to the job named in the URL. A refused action is
// 404 when the job does not exist and 409 when its status does not allow it.
func (h *JobHandler) control(w http.ResponseWriter, r *http.Request, name string, action func(string) bool) {
	id := chi.URLParam(r, "id")

	if !action(id) {
		rec, ok := h.jobs.GetStatus(id)
		if !ok {
			respondWithDomainError(w, r, fmt.Errorf("%w: %s", ErrJobNotFound, id))
			return
		}
		err := fmt.Errorf("%w: cannot %s job in status %s", ErrInvalidTransition, name, rec.Status)
		shared.RespondWithErrorAndLog(w, r, http.StatusConflict,
			fmt.Sprintf("Cannot %s a %s job", name, rec.Status), err)
		return
	}

	h.logger.InfoContext(r.Context(), "job control applied",
		"job_id", id,
		"action", name,
		"trace_id", shared.GetTraceID(r.Context()))

	rec, ok := h.jobs.GetStatus(id)
	if !ok {
		// removed by cleanup between the action and the read
		respondWithDomainError(w, r, fmt.Errorf("%w: %s", ErrJobNotFound, id))
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, newJobResponse(rec))
}

// CleanupJobs handles DELETE /api/jobs. Finished jobs older than
// ?older_than_hours= (default: the configured retention) are removed.
func (h *JobHandler) CleanupJobs(w http.ResponseWriter, r *http.Request) {
	maxAge := h.defaultRetention

	if raw := r.URL.Query().Get("older_than_hours"); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || hours < 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest,
				"older_than_hours must be a non-negative number",
				fmt.Errorf("%w: older_than_hours=%q", ErrInvalidQuery, raw))
			return
		}
		maxAge = time.Duration(hours * float64(time.Hour))
	}

	removed := h.jobs.CleanupCompleted(maxAge)

	h.logger.InfoContext(r.Context(), "finished jobs cleaned up",
		"removed", removed,
		"max_age", maxAge)

	shared.RespondWithJSON(w, r, http.StatusOK, CleanupResponse{Removed: removed})
}
