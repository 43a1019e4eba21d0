package anthropic

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

// Provider implements the reprompt Provider interface for the Anthropic
// Messages API.
type Provider struct {
	apiKey     string
	model      string
	version    string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
	name       string
}

// Config holds configuration for the Anthropic provider.
type Config struct {
	APIKey    string
	Model     string        // e.g. "claude-3-5-haiku-latest"
	Version   string        // API version, defaults to "2023-06-01"
	BaseURL   string        // Optional, defaults to "https://api.anthropic.com/v1"
	MaxTokens int           // Optional, defaults to 4096
	Timeout   time.Duration // Optional, defaults to 30s
}

// New creates a new Anthropic provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "claude-3-5-haiku-latest"
	}
	if config.Version == "" {
		config.Version = "2023-06-01"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com/v1"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Provider{
		apiKey:    config.APIKey,
		model:     config.Model,
		version:   config.Version,
		baseURL:   config.BaseURL,
		maxTokens: config.MaxTokens,
		name:      "anthropic",
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Call sends messages to Anthropic and returns the concatenated text blocks.
// System messages are lifted into the request's system field. The API has no
// JSON mode, so opts.JSON adds a prefilled "{" to the assistant turn.
func (p *Provider) Call(ctx context.Context, messages []reprompt.Message, opts reprompt.CallOptions) (string, error) {
	startTime := time.Now()

	capitan.Info(ctx, reprompt.ProviderCallStarted,
		reprompt.ProviderKey.Field(p.name),
		reprompt.ModelKey.Field(p.model),
	)

	requestBody := messagesRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: opts.Temperature,
	}
	var system []string
	for _, m := range messages {
		if m.Role == reprompt.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		requestBody.Messages = append(requestBody.Messages, message{Role: m.Role, Content: m.Content})
	}
	requestBody.System = strings.Join(system, "\n\n")
	if opts.JSON {
		requestBody.Messages = append(requestBody.Messages, message{Role: reprompt.RoleAssistant, Content: "{"})
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", p.version)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		capitan.Error(ctx, reprompt.ProviderCallFailed,
			reprompt.ProviderKey.Field(p.name),
			reprompt.ModelKey.Field(p.model),
			reprompt.ErrorKey.Field(err.Error()),
		)
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("anthropic error: status %d", resp.StatusCode)
		var errorResp errorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			detail = fmt.Sprintf("anthropic error (%d): %s", resp.StatusCode, errorResp.Error.Message)
		}

		capitan.Error(ctx, reprompt.ProviderCallFailed,
			reprompt.ProviderKey.Field(p.name),
			reprompt.ModelKey.Field(p.model),
			reprompt.HTTPStatusCodeKey.Field(resp.StatusCode),
			reprompt.ErrorKey.Field(detail),
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

	var messagesResp messagesResponse
	if err := json.Unmarshal(body, &messagesResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var result strings.Builder
	if opts.JSON {
		result.WriteString("{")
	}
	for _, c := range messagesResp.Content {
		if c.Type == "text" {
			result.WriteString(c.Text)
		}
	}

	if result.Len() == 0 || (opts.JSON && result.Len() == 1) {
		return "", fmt.Errorf("no text content in response")
	}

	capitan.Info(ctx, reprompt.ProviderCallCompleted,
		reprompt.ProviderKey.Field(p.name),
		reprompt.ModelKey.Field(messagesResp.Model),
		reprompt.PromptTokensKey.Field(messagesResp.Usage.InputTokens),
		reprompt.CompletionTokensKey.Field(messagesResp.Usage.OutputTokens),
		reprompt.DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		reprompt.HTTPStatusCodeKey.Field(resp.StatusCode),
	)

	return result.String(), nil
}

// Request/Response types for Anthropic API

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Role    string    `json:"role"`
	Content []content `json:"content"`
	Model   string    `json:"model"`
	Usage   usage     `json:"usage"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
