package reprompt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
)

// maxResponseBytes caps the size of a proxy response. Larger bodies fail
// with INVALID_RESPONSE.
const maxResponseBytes = 1 << 20

// HTTPTransport posts JSON to an edge proxy over HTTP.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
	name       string
}

// HTTPConfig holds configuration for the HTTP transport.
type HTTPConfig struct {
	BaseURL string        // Proxy origin, e.g. "https://proxy.example.workers.dev"
	Timeout time.Duration // Optional transport ceiling, defaults to 60s; the client's own timeouts are shorter
	Client  *http.Client  // Optional, overrides Timeout
}

// NewHTTPTransport creates a transport for the proxy at config.BaseURL.
func NewHTTPTransport(config HTTPConfig) *HTTPTransport {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &HTTPTransport{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: client,
		name:       "http",
	}
}

// Name returns the transport identifier.
func (t *HTTPTransport) Name() string {
	return t.name
}

// Call posts body to route and returns the status and body of the reply.
func (t *HTTPTransport) Call(ctx context.Context, route string, body []byte) (*TransportResponse, error) {
	startTime := time.Now()

	capitan.Info(ctx, TransportCallStarted,
		TransportKey.Field(t.name),
		RouteKey.Field(route),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		capitan.Error(ctx, TransportCallFailed,
			TransportKey.Field(t.name),
			RouteKey.Field(route),
			ErrorKey.Field(err.Error()),
			DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
		)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err == nil && len(respBody) > maxResponseBytes {
		err = &Error{
			Code:    CodeInvalidResponse,
			Status:  resp.StatusCode,
			Details: "response exceeds 1 MiB",
		}
	}
	if err != nil {
		capitan.Error(ctx, TransportCallFailed,
			TransportKey.Field(t.name),
			RouteKey.Field(route),
			HTTPStatusCodeKey.Field(resp.StatusCode),
			ErrorKey.Field(err.Error()),
		)
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	capitan.Info(ctx, TransportCallCompleted,
		TransportKey.Field(t.name),
		RouteKey.Field(route),
		HTTPStatusCodeKey.Field(resp.StatusCode),
		DurationMsKey.Field(int(time.Since(startTime).Milliseconds())),
	)

	return &TransportResponse{StatusCode: resp.StatusCode, Body: respBody}, nil
}
