package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const geminiModerationInstruction = `You are a content safety classifier for a public discussion forum.
Reply with exactly one line. Reply "SAFE" when the message is acceptable.
Otherwise reply "UNSAFE" followed by one category out of VIOLENCE, HATE,
HARASSMENT, SELF-HARM, SEXUAL, ILLEGAL.`

// GeminiProvider implements Completer and Classifier on Google Gemini.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	return &GeminiProvider{client: client, modelName: modelName}, nil
}

// model returns a fresh handle since temperature and instructions differ per call.
func (g *GeminiProvider) model(systemPrompt string, maxTokens int, temperature float32) *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(temperature)
	if maxTokens > 0 {
		m.SetMaxOutputTokens(int32(maxTokens))
	}
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	return m
}

func (g *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := g.model(req.SystemPrompt, req.MaxTokens, req.Temperature).
		GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		return "", mapGeminiError(err)
	}
	return responseText(resp), nil
}

// Classify answers UNSAFE when Gemini's own safety filter blocks the prompt
// or the answer.
func (g *GeminiProvider) Classify(ctx context.Context, text string) (string, error) {
	resp, err := g.model(geminiModerationInstruction, 20, 0).GenerateContent(ctx, genai.Text(text))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "UNSAFE", nil
		}
		return "", mapGeminiError(err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "UNSAFE", nil
	}
	for _, c := range resp.Candidates {
		if c.FinishReason == genai.FinishReasonSafety {
			return "UNSAFE", nil
		}
	}
	return responseText(resp), nil
}

func (g *GeminiProvider) Close() error {
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String())
}

func mapGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("gemini: %v: %w", err, ErrRateLimited)
	}
	if status.Code(err) == codes.ResourceExhausted {
		return fmt.Errorf("gemini: %v: %w", err, ErrRateLimited)
	}
	return fmt.Errorf("gemini: %w", err)
}
