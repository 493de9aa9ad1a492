package chapter

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/chapterforge/internal/generation"
	"github.com/phrazzld/chapterforge/internal/job"
)

// Submitter is the part of job.Processor the service depends on.
type Submitter interface {
	Submit(id string, work job.WorkFunc, args ...any) (job.Record, error)
}

// Service starts chapter generation jobs.
type Service struct {
	jobs   Submitter
	work   job.WorkFunc
	logger *slog.Logger
}

// NewService creates a Service that submits chapter work generated by gen
// to jobs.
func NewService(jobs Submitter, gen generation.Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		jobs:   jobs,
		work:   NewWork(gen, logger),
		logger: logger.With("component", "chapter_service"),
	}
}

// StartChapter validates req and submits a job that writes the chapter.
// A new job id is generated when jobID is empty. The returned record is the
// pending (or already running) snapshot from the processor.
func (s *Service) StartChapter(ctx context.Context, jobID string, req generation.ChapterRequest) (job.Record, error) {
	if err := req.Validate(); err != nil {
		return job.Record{}, err
	}

	if jobID == "" {
		jobID = uuid.NewString()
	}

	rec, err := s.jobs.Submit(jobID, s.work, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to submit chapter job",
			"job_id", jobID,
			"error", err)
		return job.Record{}, err
	}

	s.logger.InfoContext(ctx, "chapter job submitted",
		"job_id", rec.ID,
		"book_title", req.BookTitle,
		"chapter_title", req.ChapterTitle)

	return rec, nil
}
