package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/chapterforge/internal/api/middleware"
	"github.com/phrazzld/chapterforge/internal/api/shared"
	"github.com/phrazzld/chapterforge/internal/chapter"
	"github.com/phrazzld/chapterforge/internal/generation"
	"github.com/phrazzld/chapterforge/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockGenerator is a generation.Generator whose behavior is set per test.
type MockGenerator struct {
	GenerateChapterFn func(ctx context.Context, req generation.ChapterRequest) (*generation.Chapter, error)
}

func (m *MockGenerator) GenerateChapter(ctx context.Context, req generation.ChapterRequest) (*generation.Chapter, error) {
	if m.GenerateChapterFn != nil {
		return m.GenerateChapterFn(ctx, req)
	}
	return &generation.Chapter{Title: req.ChapterTitle, Content: "The end.", WordCount: 2}, nil
}

// MockChapterStarter is a ChapterStarter whose behavior is set per test.
type MockChapterStarter struct {
	StartChapterFn func(ctx context.Context, jobID string, req generation.ChapterRequest) (job.Record, error)
}

func (m *MockChapterStarter) StartChapter(
	ctx context.Context,
	jobID string,
	req generation.ChapterRequest,
) (job.Record, error) {
	return m.StartChapterFn(ctx, jobID, req)
}

// testClock is a settable time source for the processor.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	router    http.Handler
	processor *job.Processor
	clock     *testClock
}

func newTestEnv(t *testing.T, gen generation.Generator) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &testClock{now: time.Date(2025, time.April, 1, 12, 0, 0, 0, time.UTC)}
	p := job.NewProcessor(logger, job.Options{Clock: clock.Now})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})

	return &testEnv{
		router:    newTestRouter(NewChapterHandler(chapter.NewService(p, gen, logger), logger), p, logger),
		processor: p,
		clock:     clock,
	}
}

func newTestRouter(chapters *ChapterHandler, jobs JobService, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, chapters, NewJobHandler(jobs, 24*time.Hour, logger))
	})
	return r
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) waitForStatus(t *testing.T, id string, status job.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, ok := e.processor.GetStatus(id)
		return ok && rec.Status == status
	}, 2*time.Second, 5*time.Millisecond, "job %s never reached %s", id, status)
}

func (e *testEnv) submitBlocking(t *testing.T, id string) {
	t.Helper()
	_, err := e.processor.Submit(id, func(ctx context.Context, args ...any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	e.waitForStatus(t, id, job.StatusRunning)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out
}

func validChapterBody() map[string]any {
	return map[string]any{
		"book_title":    "The Long Road",
		"chapter_title": "Departure",
		"outline":       "Mara leaves the village at dawn.",
	}
}

func TestChapterHandler_CreateChapter(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &MockGenerator{})
	body := validChapterBody()
	body["job_id"] = "chapter-1"

	rr := env.do(t, http.MethodPost, "/api/chapters", body)

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	assert.Equal(t, "/api/jobs/chapter-1", rr.Header().Get("Location"))
	assert.NotEmpty(t, rr.Header().Get(shared.TraceIDHeader))

	resp := decode[JobResponse](t, rr)
	assert.Equal(t, "chapter-1", resp.ID)
	assert.Contains(t, []job.Status{job.StatusPending, job.StatusRunning, job.StatusCompleted}, resp.Status)

	env.waitForStatus(t, "chapter-1", job.StatusCompleted)

	rr = env.do(t, http.MethodGet, "/api/jobs/chapter-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	assert.Equal(t, "completed", raw["status"])
	assert.Contains(t, raw, "completed_at")
	result, ok := raw["result"].(map[string]any)
	require.True(t, ok, "result should be an object: %v", raw["result"])
	assert.Equal(t, "Departure", result["title"])
	progress, ok := raw["progress"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, chapter.StageDone, progress["stage"])
}

func TestChapterHandler_GeneratesJobID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &MockGenerator{})

	rr := env.do(t, http.MethodPost, "/api/chapters", validChapterBody())

	require.Equal(t, http.StatusAccepted, rr.Code)
	resp := decode[JobResponse](t, rr)
	assert.NotEmpty(t, resp.ID)
	_, ok := env.processor.GetStatus(resp.ID)
	assert.True(t, ok)
}

func TestChapterHandler_BadRequests(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &MockGenerator{})

	missingOutline := validChapterBody()
	delete(missingOutline, "outline")

	unknownField := validChapterBody()
	unknownField["genre"] = "fantasy"

	badJobID := validChapterBody()
	badJobID["job_id"] = "a/b"

	tests := []struct {
		name        string
		body        any
		wantMessage string
	}{
		{"malformed JSON", `{"book_title":`, "Invalid request format"},
		{"trailing data", `{"book_title":"a"} {}`, "Invalid request format"},
		{"unknown field", unknownField, "Invalid request format"},
		{"missing outline", missingOutline, "Invalid outline: required field"},
		{"bad job id", badJobID, "Invalid job id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/chapters", tt.body)

			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			resp := decode[shared.ErrorResponse](t, rr)
			assert.Equal(t, tt.wantMessage, resp.Error)
			assert.NotEmpty(t, resp.TraceID)
		})
	}

	assert.Empty(t, env.processor.ListJobs(), "no job is submitted for a bad request")
}

func TestChapterHandler_ProcessorStopped(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	starter := &MockChapterStarter{
		StartChapterFn: func(ctx context.Context, jobID string, req generation.ChapterRequest) (job.Record, error) {
			return job.Record{}, job.ErrProcessorStopped
		},
	}
	p := job.NewProcessor(logger, job.DefaultOptions())
	router := newTestRouter(NewChapterHandler(starter, logger), p, logger)

	data, err := json.Marshal(validChapterBody())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/chapters", bytes.NewReader(data))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "Server is shutting down", decode[shared.ErrorResponse](t, rr).Error)
}

func TestJobHandler_GetUnknownJob(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &MockGenerator{})

	rr := env.do(t, http.MethodGet, "/api/jobs/missing", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Job not found", decode[shared.ErrorResponse](t, rr).Error)
}

func TestJobHandler_Control(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &MockGenerator{})
	env.submitBlocking(t, "j1")

	steps := []struct {
		path       string
		wantCode   int
		wantStatus job.Status
	}{
		{"/api/jobs/j1/pause", http.StatusOK, job.StatusPaused},
		{"/api/jobs/j1/pause", http.StatusConflict, ""},
		{"/api/jobs/j1/resume", http.StatusOK, job.StatusRunning},
		{"/api/jobs/j1/resume", http.StatusConflict, ""},
		{"/api/jobs/j1/cancel", http.StatusOK, job.StatusCancelled},
		{"/api/jobs/j1/cancel", http.StatusConflict, ""},
		{"/api/jobs/j1/pause", http.StatusConflict, ""},
		{"/api/jobs/nope/cancel", http.StatusNotFound, ""},
	}

	for _, step := range steps {
		rr := env.do(t, http.MethodPost, step.path, nil)
		require.Equal(t, step.wantCode, rr.Code, "%s: %s", step.path, rr.Body.String())

		if step.wantStatus != "" {
			resp := decode[JobResponse](t, rr)
			assert.Equal(t, step.wantStatus, resp.Status, step.path)
		}
	}

	rec, ok := env.processor.GetStatus("j1")
	require.True(t, ok)
	assert.Equal(t, job.CancelledByUserMessage, rec.Error)
}

func TestJobHandler_ListJobs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &MockGenerator{})
	env.submitBlocking(t, "running-1")
	env.submitBlocking(t, "running-2")
	require.True(t, env.processor.Pause("running-2"))

	rr := env.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	all := decode[ListJobsResponse](t, rr)
	assert.Equal(t, 2, all.Count)
	assert.Len(t, all.Jobs, 2)

	rr = env.do(t, http.MethodGet, "/api/jobs?status=paused", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	paused := decode[ListJobsResponse](t, rr)
	require.Equal(t, 1, paused.Count)
	assert.Equal(t, "running-2", paused.Jobs[0].ID)

	rr = env.do(t, http.MethodGet, "/api/jobs?status=completed", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	completed := decode[ListJobsResponse](t, rr)
	assert.Zero(t, completed.Count)
	assert.NotNil(t, completed.Jobs, "empty list renders as []")

	rr = env.do(t, http.MethodGet, "/api/jobs?status=sleeping", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid status filter", decode[shared.ErrorResponse](t, rr).Error)
}

func TestJobHandler_CleanupJobs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &MockGenerator{})
	env.submitBlocking(t, "old")
	require.True(t, env.processor.Cancel("old"))
	env.submitBlocking(t, "live")

	env.clock.Advance(2 * time.Hour)

	rr := env.do(t, http.MethodDelete, "/api/jobs?older_than_hours=3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decode[CleanupResponse](t, rr).Removed)

	rr = env.do(t, http.MethodDelete, "/api/jobs?older_than_hours=1.5", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[CleanupResponse](t, rr).Removed)

	_, ok := env.processor.GetStatus("old")
	assert.False(t, ok)
	_, ok = env.processor.GetStatus("live")
	assert.True(t, ok, "running jobs are never cleaned up")

	for _, bad := range []string{"-1", "soon", "NaN"} {
		rr = env.do(t, http.MethodDelete, "/api/jobs?older_than_hours="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, bad)
	}
}

func TestJobHandler_CleanupUsesDefaultRetention(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &MockGenerator{})
	env.submitBlocking(t, "old")
	require.True(t, env.processor.Cancel("old"))

	env.clock.Advance(time.Hour)
	rr := env.do(t, http.MethodDelete, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decode[CleanupResponse](t, rr).Removed)

	env.clock.Advance(24 * time.Hour)
	rr = env.do(t, http.MethodDelete, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[CleanupResponse](t, rr).Removed)
}
