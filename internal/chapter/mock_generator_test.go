package chapter

import (
	"context"
	"sync"

	"github.com/phrazzld/chapterforge/internal/generation"
)

// MockGenerator is a generation.Generator whose behavior is set per test.
type MockGenerator struct {
	GenerateChapterFn func(ctx context.Context, req generation.ChapterRequest) (*generation.Chapter, error)

	mu       sync.Mutex
	requests []generation.ChapterRequest
}

func (m *MockGenerator) GenerateChapter(ctx context.Context, req generation.ChapterRequest) (*generation.Chapter, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateChapterFn != nil {
		return m.GenerateChapterFn(ctx, req)
	}
	return &generation.Chapter{
		Title:     req.ChapterTitle,
		Content:   "It was a dark and stormy night.",
		WordCount: 7,
		Model:     "mock",
	}, nil
}

func (m *MockGenerator) Requests() []generation.ChapterRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generation.ChapterRequest(nil), m.requests...)
}
