package chapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/chapterforge/internal/generation"
	"github.com/phrazzld/chapterforge/internal/job"
)

// Progress stages reported while a chapter job runs.
const (
	StageValidating = "validating"
	StageGenerating = "generating"
	StageDone       = "done"
)

// ErrBadArguments is returned when a chapter job is submitted with anything
// other than a single generation.ChapterRequest.
var ErrBadArguments = errors.New("chapter work expects a single ChapterRequest argument")

// NewWork returns the job.WorkFunc that writes one chapter with gen.
// The work expects exactly one generation.ChapterRequest argument and
// returns a *generation.Chapter.
func NewWork(gen generation.Generator, logger *slog.Logger) job.WorkFunc {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "chapter_work")

	return func(ctx context.Context, args ...any) (any, error) {
		jobID, _ := job.IDFromContext(ctx)
		log := logger.With("job_id", jobID)

		job.ReportProgress(ctx, map[string]any{"stage": StageValidating})

		req, err := requestFromArgs(args)
		if err != nil {
			return nil, err
		}
		if err := req.Validate(); err != nil {
			return nil, err
		}

		job.ReportProgress(ctx, map[string]any{
			"stage":         StageGenerating,
			"book_title":    req.BookTitle,
			"chapter_title": req.ChapterTitle,
		})
		log.InfoContext(ctx, "generating chapter",
			"book_title", req.BookTitle,
			"chapter_title", req.ChapterTitle)

		chapter, err := gen.GenerateChapter(ctx, req)
		if err != nil {
			log.ErrorContext(ctx, "chapter generation failed", "error", err)
			return nil, fmt.Errorf("generating chapter %q: %w", req.ChapterTitle, err)
		}

		job.ReportProgress(ctx, map[string]any{
			"stage":         StageDone,
			"book_title":    req.BookTitle,
			"chapter_title": chapter.Title,
			"word_count":    chapter.WordCount,
		})
		log.InfoContext(ctx, "chapter generated", "word_count", chapter.WordCount)

		return chapter, nil
	}
}

func requestFromArgs(args []any) (generation.ChapterRequest, error) {
	if len(args) != 1 {
		return generation.ChapterRequest{}, fmt.Errorf("%w: got %d arguments", ErrBadArguments, len(args))
	}
	switch req := args[0].(type) {
	case generation.ChapterRequest:
		return req, nil
	case *generation.ChapterRequest:
		if req != nil {
			return *req, nil
		}
	}
	return generation.ChapterRequest{}, fmt.Errorf("%w: got %T", ErrBadArguments, args[0])
}
