package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/reprompt"
)

// Provider implements the reprompt Provider interface for Azure OpenAI Service.
type Provider struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	httpClient *http.Client
	name       string
}

// Config holds configuration for the Azure provider.
type Config struct {
	Endpoint   string        // Your Azure OpenAI endpoint (https://{your-resource}.openai.azure.com)
	APIKey     string        // Your Azure API key
	Deployment string        // Your deployment name
	APIVersion string        // API version, defaults to "2024-02-01"
	Timeout    time.Duration // Optional, defaults to 30s
}

// New creates a new Azure OpenAI provider.
func New(config Config) *Provider {
	if config.APIVersion == "" {
		config.APIVersion = "2024-02-01"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Provider{
		endpoint:   strings.TrimRight(config.Endpoint, "/"),
		apiKey:     config.APIKey,
		deployment: config.Deployment,
		apiVersion: config.APIVersion,
		name:       "azure",
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Call sends messages to the configured deployment and returns the reply.
// Status handling matches the OpenAI provider.
func (p *Provider) Call(ctx context.Context, messages []reprompt.Message, opts reprompt.CallOptions) (string, error) {
	startTime := time.Now()

	capitan.Info(ctx, reprompt.ProviderCallStarted,
		reprompt.ProviderKey.Field(p.name),
		reprompt.ModelKey.Field(p.deployment),
	)

	requestBody := chatCompletionRequest{
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

	// Build Azure-specific URL
	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, p.deployment, p.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		capitan.Error(ctx, reprompt.ProviderCallFailed,
			reprompt.ProviderKey.Field(p.name),
			reprompt.ModelKey.Field(p.deployment),
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
		detail := fmt.Sprintf("azure error: status %d", resp.StatusCode)
		var errorResp errorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			detail = fmt.Sprintf("azure error (%d): %s", resp.StatusCode, errorResp.Error.Message)
		}

		capitan.Error(ctx, reprompt.ProviderCallFailed,
			reprompt.ProviderKey.Field(p.name),
			reprompt.ModelKey.Field(p.deployment),
			reprompt.HTTPStatusCodeKey.Field(resp.StatusCode),
			reprompt.ErrorKey.Field(detail),
			reprompt.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		)

		e := &reprompt.Error{Status: resp.StatusCode, Details: detail}
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			e.Code = reprompt.CodeRateLimitExceeded
		case http.StatusUnauthorized:
			e.Code = reprompt.CodeAuthenticationFailed
		}
		return "", e
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

// Request/Response types (compatible with OpenAI)

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
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
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
