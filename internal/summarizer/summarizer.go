package summarizer

import (
	"context"
)

// Input describes the payload for a summary request.
type Input struct {
	// Text is the plain-text article excerpt.
	Text string
	// SourceURL is the article link, passed as context.
	SourceURL string
}

// Summarizer produces a single summary for a given input text.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}
