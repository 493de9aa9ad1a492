package gemini

import "github.com/phrazzld/chapterforge/internal/generation"

// defaultTargetWords is used when a request leaves TargetWords unset
const defaultTargetWords = 2500

// promptData represents the data passed to the prompt template
type promptData struct {
	generation.ChapterRequest
}

func newPromptData(req generation.ChapterRequest) promptData {
	if req.TargetWords == 0 {
		req.TargetWords = defaultTargetWords
	}
	return promptData{ChapterRequest: req}
}

// ResponseSchema represents the expected structure of a chapter from the Gemini API
type ResponseSchema struct {
	// Title is the chapter title as written by the model
	Title string `json:"title"`

	// Content is the chapter body
	Content string `json:"content"`

	// Summary is a short recap used to chain the next chapter
	Summary string `json:"summary,omitempty"`
}
