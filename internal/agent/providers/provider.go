package providers

import (
	"context"
	"errors"
)

// ErrRateLimited is returned when the upstream model API refused the call
// because of quota or rate limits.
var ErrRateLimited = errors.New("ai provider rate limited")

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
}

// Completer produces free text. An empty string with a nil error means the
// model returned no text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Classifier returns the raw safety verdict of a moderation model.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

const (
	DefaultGroqCompletionModel = "llama-3.1-8b-instant"
	DefaultGroqModerationModel = "meta-llama/llama-guard-4-12b"
	DefaultGeminiModel         = "gemini-2.5-flash"
)
