package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/chapterforge/internal/config"
	"github.com/phrazzld/chapterforge/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const testTemplate = `Book: {{.BookTitle}}
Chapter: {{.ChapterTitle}}
Words: {{.TargetWords}}
{{- if .PreviousSummary}}
Previously: {{.PreviousSummary}}
{{- end}}
Outline: {{.Outline}}`

// fakeClient returns scripted responses in order and records prompts.
type fakeClient struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     int
	prompts   []string
}

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeClient) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(contents) > 0 && contents[0] != nil && len(contents[0].Parts) > 0 {
		f.prompts = append(f.prompts, contents[0].Parts[0].Text)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]
	return r.resp, r.err
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func textResponse(text string) fakeResponse {
	return fakeResponse{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: text}}},
			FinishReason: genai.FinishReasonStop,
		}},
	}}
}

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chapter.tmpl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testConfig(t *testing.T) config.LLMConfig {
	return config.LLMConfig{
		GeminiAPIKey:       "test-key",
		ModelName:          "gemini-test",
		PromptTemplatePath: writeTemplate(t, testTemplate),
		MaxRetries:         2,
		RetryDelaySeconds:  1,
		RequestsPerMinute:  60,
	}
}

func newTestGenerator(t *testing.T, client contentGenerator) *Generator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g, err := newGenerator(logger, testConfig(t), client)
	require.NoError(t, err)
	g.baseDelay = time.Millisecond
	g.limiter = rate.NewLimiter(rate.Inf, 1)
	return g
}

func validRequest() generation.ChapterRequest {
	return generation.ChapterRequest{
		BookTitle:       "The Long Road",
		ChapterTitle:    "Departure",
		Outline:         "Mara leaves the village at dawn.",
		PreviousSummary: "Mara's brother vanished.",
	}
}

func TestNewGenerator_InvalidConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name   string
		mutate func(cfg *config.LLMConfig)
	}{
		{"empty model name", func(cfg *config.LLMConfig) { cfg.ModelName = "" }},
		{"empty template path", func(cfg *config.LLMConfig) { cfg.PromptTemplatePath = "" }},
		{"missing template file", func(cfg *config.LLMConfig) {
			cfg.PromptTemplatePath = filepath.Join(t.TempDir(), "missing.tmpl")
		}},
		{"unparseable template", func(cfg *config.LLMConfig) {
			cfg.PromptTemplatePath = writeTemplate(t, "{{.BookTitle")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)

			_, err := newGenerator(logger, cfg, &fakeClient{})
			require.Error(t, err)
			assert.ErrorIs(t, err, generation.ErrInvalidConfig)
		})
	}

	t.Run("empty API key", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.GeminiAPIKey = ""

		_, err := NewGenerator(context.Background(), logger, cfg)
		assert.ErrorIs(t, err, generation.ErrInvalidConfig)
	})

	t.Run("nil logger", func(t *testing.T) {
		_, err := newGenerator(nil, testConfig(t), &fakeClient{})
		assert.Error(t, err)
	})
}

func TestGenerateChapter_Success(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		textResponse(`{"title":"Departure","content":"Mara walked out before the sun rose.","summary":"Mara leaves."}`),
	}}
	g := newTestGenerator(t, client)

	chapter, err := g.GenerateChapter(context.Background(), validRequest())

	require.NoError(t, err)
	assert.Equal(t, "Departure", chapter.Title)
	assert.Equal(t, "Mara walked out before the sun rose.", chapter.Content)
	assert.Equal(t, "Mara leaves.", chapter.Summary)
	assert.Equal(t, 7, chapter.WordCount)
	assert.Equal(t, "gemini-test", chapter.Model)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Book: The Long Road")
	assert.Contains(t, client.prompts[0], "Previously: Mara's brother vanished.")
	assert.Contains(t, client.prompts[0], "Words: 2500")
}

func TestGenerateChapter_FencedJSONAndMissingTitle(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		textResponse("```json\n{\"content\":\"One two three.\"}\n```"),
	}}
	g := newTestGenerator(t, client)

	chapter, err := g.GenerateChapter(context.Background(), validRequest())

	require.NoError(t, err)
	assert.Equal(t, "Departure", chapter.Title, "falls back to the requested title")
	assert.Equal(t, 3, chapter.WordCount)
}

func TestGenerateChapter_InvalidRequest(t *testing.T) {
	client := &fakeClient{}
	g := newTestGenerator(t, client)

	_, err := g.GenerateChapter(context.Background(), generation.ChapterRequest{BookTitle: "x"})

	assert.ErrorIs(t, err, generation.ErrInvalidRequest)
	assert.Zero(t, client.callCount(), "no API call for an invalid request")
}

func TestGenerateChapter_PermanentErrors(t *testing.T) {
	tests := []struct {
		name     string
		response fakeResponse
		wantErr  error
	}{
		{
			name: "safety block",
			response: fakeResponse{resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
			}},
			wantErr: generation.ErrContentBlocked,
		},
		{
			name:     "no candidates",
			response: fakeResponse{resp: &genai.GenerateContentResponse{}},
			wantErr:  generation.ErrInvalidResponse,
		},
		{
			name:     "malformed JSON",
			response: textResponse("Once upon a time"),
			wantErr:  generation.ErrInvalidResponse,
		},
		{
			name:     "empty content",
			response: textResponse(`{"title":"Departure","content":"  "}`),
			wantErr:  generation.ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{responses: []fakeResponse{tt.response}}
			g := newTestGenerator(t, client)

			_, err := g.GenerateChapter(context.Background(), validRequest())

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, client.callCount(), "permanent errors are not retried")
		})
	}
}

func TestGenerateChapter_RetriesTransientErrors(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{err: errors.New("503 unavailable")},
		{err: errors.New("503 unavailable")},
		textResponse(`{"title":"Departure","content":"Finally."}`),
	}}
	g := newTestGenerator(t, client)

	chapter, err := g.GenerateChapter(context.Background(), validRequest())

	require.NoError(t, err)
	assert.Equal(t, "Finally.", chapter.Content)
	assert.Equal(t, 3, client.callCount())
}

func TestGenerateChapter_ExhaustsRetries(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{err: errors.New("503 unavailable")}}}
	g := newTestGenerator(t, client)

	_, err := g.GenerateChapter(context.Background(), validRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, generation.ErrTransientFailure)
	assert.Equal(t, 3, client.callCount(), "one call plus MaxRetries retries")
}

func TestGenerateChapter_ContextCancelled(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{err: errors.New("503 unavailable")}}}
	g := newTestGenerator(t, client)
	g.baseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for client.callCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := g.GenerateChapter(ctx, validRequest())
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, generation.ErrTransientFailure)
		assert.Equal(t, 1, client.callCount())
	case <-time.After(2 * time.Second):
		t.Fatal("GenerateChapter did not return after cancellation")
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
}
