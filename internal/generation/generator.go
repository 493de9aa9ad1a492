package generation

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports field errors by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ChapterRequest describes the chapter to write.
type ChapterRequest struct {
	BookTitle       string `json:"book_title" validate:"required,max=200"`
	ChapterTitle    string `json:"chapter_title" validate:"required,max=200"`
	Outline         string `json:"outline" validate:"required,max=20000"`
	PreviousSummary string `json:"previous_summary,omitempty" validate:"max=10000"`
	Style           string `json:"style,omitempty" validate:"max=500"`
	TargetWords     int    `json:"target_words,omitempty" validate:"omitempty,min=100,max=20000"`
}

// Validate checks the request against its field constraints. The returned
// error wraps both ErrInvalidRequest and the validator.ValidationErrors.
func (r ChapterRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// Chapter is a generated chapter.
type Chapter struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Summary   string `json:"summary,omitempty"`
	WordCount int    `json:"word_count"`
	Model     string `json:"model,omitempty"`
}

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Generator defines the interface for generating chapters with an LLM.
// This interface serves as a boundary between the application core and
// external AI/LLM services.
type Generator interface {
	// GenerateChapter writes the chapter described by req.
	// Implementations must honor ctx cancellation, which is how a cancelled
	// job stops an in-flight call.
	GenerateChapter(ctx context.Context, req ChapterRequest) (*Chapter, error)
}
