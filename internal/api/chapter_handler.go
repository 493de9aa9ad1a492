package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/chapterforge/internal/api/shared"
	"github.com/phrazzld/chapterforge/internal/generation"
	"github.com/phrazzld/chapterforge/internal/job"
)

// ChapterStarter starts chapter generation jobs.
type ChapterStarter interface {
	StartChapter(ctx context.Context, jobID string, req generation.ChapterRequest) (job.Record, error)
}

// ChapterHandler handles chapter-related HTTP requests.
type ChapterHandler struct {
	chapters ChapterStarter
	logger   *slog.Logger
}

// NewChapterHandler creates a new ChapterHandler.
func NewChapterHandler(chapters ChapterStarter, logger *slog.Logger) *ChapterHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChapterHandler{
		chapters: chapters,
		logger:   logger.With("component", "chapter_handler"),
	}
}

// CreateChapter handles POST /api/chapters. It submits a generation job and
// responds 202 Accepted with the job record; the chapter itself is fetched
// later from /api/jobs/{id}.
func (h *ChapterHandler) CreateChapter(w http.ResponseWriter, r *http.Request) {
	var req CreateChapterRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	if err := shared.ValidateRequest(&req); err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	rec, err := h.chapters.StartChapter(r.Context(), req.JobID, req.ChapterRequest)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "chapter job accepted",
		"job_id", rec.ID,
		"trace_id", shared.GetTraceID(r.Context()))

	w.Header().Set("Location", "/api/jobs/"+rec.ID)
	shared.RespondWithJSON(w, r, http.StatusAccepted, newJobResponse(rec))
}
