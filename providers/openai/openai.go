package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/reprompt"
)

// Provider implements the reprompt Provider interface for the OpenAI chat
// completions API.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	name       string
}

// Config holds configuration for the OpenAI provider.
type Config struct {
	APIKey  string
	Model   string        // e.g. "gpt-4o-mini", "gpt-3.5-turbo"
	BaseURL string        // Optional, defaults to "https://api.openai.com/v1"
	Timeout time.Duration // Optional, defaults to 30s
}

// New creates a new OpenAI provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "gpt-3.5-turbo"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Provider{
		apiKey:  config.APIKey,
		model:   config.Model,
		baseURL: config.BaseURL,
		name:    "openai",
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Call sends messages to OpenAI and returns the assistant's reply.
// A 429 yields RATE_LIMIT_EXCEEDED and a 401 AUTHENTICATION_FAILED; any
// other non-200 status is returned as a status-bearing *reprompt.Error.
func (p *Provider) Call(ctx context.Context, messages []reprompt.Message, opts reprompt.CallOptions) (string, error) {
	startTime := time.Now()

	capitan.Info(ctx, reprompt.ProviderCallStarted,
		reprompt.ProviderKey.Field(p.name),
		reprompt.ModelKey.Field(p.model),
	)

	requestBody := chatCompletionRequest{
		Model:       p.model,
		Messages:    make([]message, len(messages)),
		Temperature: opts.Temperature,
	}
	for i, m := range messages {
		requestBody.Messages[i] = message{Role: m.Role, Content: m.Content}
	}
	if opts.JSON {
		requestBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		capitan.Error(ctx, reprompt.ProviderCallFailed,
			reprompt.ProviderKey.Field(p.name),
			reprompt.ModelKey.Field(p.model),
			reprompt.ErrorKey.Field(err.Error()),
			reprompt.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		)
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("openai error: status %d", resp.StatusCode)
		var errorResp errorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			detail = fmt.Sprintf("openai error (%d): %s", resp.StatusCode, errorResp.Error.Message)
		}

		capitan.Error(ctx, reprompt.ProviderCallFailed,
			reprompt.ProviderKey.Field(p.name),
			reprompt.ModelKey.Field(p.model),
			reprompt.HTTPStatusCodeKey.Field(resp.StatusCode),
			reprompt.ErrorKey.Field(detail),
			reprompt.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		)
		return "", statusError(resp.StatusCode, detail)
	}

	var completionResp chatCompletionResponse
	if err := json.Unmarshal(body, &completionResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(completionResp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	capitan.Info(ctx, reprompt.ProviderCallCompleted,
		reprompt.ProviderKey.Field(p.name),
		reprompt.ModelKey.Field(completionResp.Model),
		reprompt.PromptTokensKey.Field(completionResp.Usage.PromptTokens),
		reprompt.CompletionTokensKey.Field(completionResp.Usage.CompletionTokens),
		reprompt.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		reprompt.HTTPStatusCodeKey.Field(resp.StatusCode),
	)

	return completionResp.Choices[0].Message.Content, nil
}

func statusError(status int, detail string) *reprompt.Error {
	e := &reprompt.Error{Status: status, Details: detail}
	switch status {
	case http.StatusTooManyRequests:
		e.Code = reprompt.CodeRateLimitExceeded
	case http.StatusUnauthorized:
		e.Code = reprompt.CodeAuthenticationFailed
	}
	return e
}

// Request/Response types for OpenAI API

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float32         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
