package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAICompatProvider talks to an OpenAI-compatible /chat/completions
// endpoint such as Groq. One model serves completions and one serves
// moderation.
type OpenAICompatProvider struct {
	baseURL         string
	apiKey          string
	completionModel string
	moderationModel string
	httpClient      *http.Client
}

// NewOpenAICompatProvider builds a provider. baseURL includes the /v1 prefix,
// e.g. "https://api.groq.com/openai/v1". Empty model names use the Groq defaults.
func NewOpenAICompatProvider(baseURL, apiKey, completionModel, moderationModel string) *OpenAICompatProvider {
	if strings.TrimSpace(completionModel) == "" {
		completionModel = DefaultGroqCompletionModel
	}
	if strings.TrimSpace(moderationModel) == "" {
		moderationModel = DefaultGroqModerationModel
	}
	return &OpenAICompatProvider{
		baseURL:         strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:          strings.TrimSpace(apiKey),
		completionModel: strings.TrimSpace(completionModel),
		moderationModel: strings.TrimSpace(moderationModel),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *OpenAICompatProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]oaiMessage, 0, 2)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, oaiMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, oaiMessage{Role: "user", Content: req.UserPrompt})

	return p.chat(ctx, oaiChatRequest{
		Model:       p.completionModel,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
}

// Classify sends the text as a single user message to the guard model.
func (p *OpenAICompatProvider) Classify(ctx context.Context, text string) (string, error) {
	return p.chat(ctx, oaiChatRequest{
		Model:       p.moderationModel,
		Messages:    []oaiMessage{{Role: "user", Content: text}},
		MaxTokens:   20,
		Temperature: 0,
	})
}

func (p *OpenAICompatProvider) chat(ctx context.Context, reqBody oaiChatRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai-compat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if resp.StatusCode == http.StatusTooManyRequests || errResp.Error.Code == "rate_limit_exceeded" {
			return "", fmt.Errorf("openai-compat %s: %w", resp.Status, ErrRateLimited)
		}
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("openai-compat api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("openai-compat api error: %s", resp.Status)
	}

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("openai-compat decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float32      `json:"temperature"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
