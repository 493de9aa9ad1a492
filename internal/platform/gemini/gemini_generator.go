package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/chapterforge/internal/config"
	"github.com/phrazzld/chapterforge/internal/generation"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// contentGenerator is the slice of the genai client used by Generator.
// *genai.Models satisfies it.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Generator implements the generation.Generator interface using
// Google's Gemini API to write book chapters.
type Generator struct {
	logger         *slog.Logger
	config         config.LLMConfig
	promptTemplate *template.Template
	client         contentGenerator
	limiter        *rate.Limiter

	// baseDelay is the first retry delay; doubled on every attempt
	baseDelay time.Duration
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates a Generator backed by a live Gemini client.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return newGenerator(logger, cfg, client.Models)
}

// newGenerator wires a Generator around any contentGenerator.
func newGenerator(logger *slog.Logger, cfg config.LLMConfig, client contentGenerator) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if client == nil {
		return nil, fmt.Errorf("%w: client cannot be nil", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.PromptTemplatePath == "" {
		return nil, fmt.Errorf("%w: prompt template path cannot be empty", generation.ErrInvalidConfig)
	}

	templateContent, err := os.ReadFile(cfg.PromptTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
			generation.ErrInvalidConfig, cfg.PromptTemplatePath, err)
	}

	promptTemplate, err := template.New("chapter").
		Option("missingkey=error").
		Parse(string(templateContent))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v",
			generation.ErrInvalidConfig, err)
	}

	if cfg.MaxRetries < 0 {
		logger.Warn("invalid max retries value, using default", "max_retries", 3)
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelaySeconds < 1 {
		logger.Warn("invalid retry delay value, using default", "retry_delay_seconds", 2)
		cfg.RetryDelaySeconds = 2
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &Generator{
		logger:         logger.With("component", "gemini_generator", "model", cfg.ModelName),
		config:         cfg,
		promptTemplate: promptTemplate,
		client:         client,
		limiter:        rate.NewLimiter(limit, 1),
		baseDelay:      time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}, nil
}

// GenerateChapter renders the prompt for req, calls Gemini, and parses the
// chapter out of the JSON response.
func (g *Generator) GenerateChapter(
	ctx context.Context,
	req generation.ChapterRequest,
) (*generation.Chapter, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prompt, err := g.createPrompt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}

	response, err := g.callGeminiWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return g.parseResponse(ctx, response, req)
}

// createPrompt generates a prompt string from the template.
func (g *Generator) createPrompt(ctx context.Context, req generation.ChapterRequest) (string, error) {
	var buf bytes.Buffer
	if err := g.promptTemplate.Execute(&buf, newPromptData(req)); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	prompt := buf.String()
	g.logger.DebugContext(ctx, "prompt generated",
		"chapter_title", req.ChapterTitle,
		"prompt_length", len(prompt))

	return prompt, nil
}

// callGeminiWithRetry makes a call to the Gemini API with exponential backoff retry logic.
//
// Transient errors are retried up to config.MaxRetries times. Permanent errors
// (content blocked by safety filters, malformed responses) are returned
// immediately. Cancelling ctx stops both the wait and any in-flight call.
func (g *Generator) callGeminiWithRetry(ctx context.Context, prompt string) (*ResponseSchema, error) {
	maxRetries := g.config.MaxRetries
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1

		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: waiting for rate limiter: %v", generation.ErrTransientFailure, err)
		}

		g.logger.InfoContext(ctx, "making Gemini API call",
			"attempt", attemptNum,
			"max_attempts", maxRetries+1)

		response, err := g.callGemini(ctx, prompt)
		if err == nil {
			g.logger.InfoContext(ctx, "Gemini API call successful", "attempt", attemptNum)
			return response, nil
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}

		if errors.Is(err, generation.ErrContentBlocked) || errors.Is(err, generation.ErrInvalidResponse) {
			g.logger.WarnContext(ctx, "permanent error occurred, not retrying",
				"attempt", attemptNum,
				"error", err)
			return nil, err
		}

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attemptNum,
			"error", err)

		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * [0.5, 1.0)
		backoff := float64(g.baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))

		g.logger.InfoContext(ctx, "retrying after delay",
			"attempt", attemptNum,
			"delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			g.logger.WarnContext(ctx, "API call cancelled during retry delay",
				"attempt", attemptNum,
				"ctx_err", ctx.Err())
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// callGemini performs a single request. API errors are transient; anything
// wrong with a response that did arrive is permanent.
func (g *Generator) callGemini(ctx context.Context, prompt string) (*ResponseSchema, error) {
	resp, err := g.client.GenerateContent(ctx, g.config.ModelName, genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
	if err != nil {
		return nil, err
	}

	switch {
	case resp == nil:
		return nil, fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	case len(resp.Candidates) == 0:
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return nil, generation.ErrContentBlocked
	case resp.Candidates[0].Content == nil:
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	var parsed ResponseSchema
	if err := json.Unmarshal([]byte(stripCodeFence(text.String())), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}

	return &parsed, nil
}

// parseResponse converts a ResponseSchema into a generation.Chapter.
func (g *Generator) parseResponse(
	ctx context.Context,
	response *ResponseSchema,
	req generation.ChapterRequest,
) (*generation.Chapter, error) {
	if response == nil {
		return nil, fmt.Errorf("%w: response is nil", generation.ErrInvalidResponse)
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: chapter content is empty", generation.ErrInvalidResponse)
	}

	title := strings.TrimSpace(response.Title)
	if title == "" {
		title = req.ChapterTitle
	}

	chapter := &generation.Chapter{
		Title:     title,
		Content:   content,
		Summary:   strings.TrimSpace(response.Summary),
		WordCount: generation.CountWords(content),
		Model:     g.config.ModelName,
	}

	g.logger.InfoContext(ctx, "parsed chapter from API response",
		"chapter_title", chapter.Title,
		"word_count", chapter.WordCount)

	return chapter, nil
}

// stripCodeFence removes a surrounding ```json fence some models add even
// when asked for raw JSON.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
