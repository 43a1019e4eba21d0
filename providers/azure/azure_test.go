package azure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zoobzio/reprompt"
)

func TestProviderCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "test-key" {
			t.Errorf("Expected api-key header, got %s", r.Header.Get("api-key"))
		}

		expectedPath := "/openai/deployments/test-deployment/chat/completions"
		if r.URL.Path != expectedPath {
			t.Errorf("Expected path %s, got %s", expectedPath, r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != "2024-02-01" {
			t.Errorf("Expected default api-version, got %s", r.URL.Query().Get("api-version"))
		}

		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != reprompt.RoleSystem {
			t.Errorf("Unexpected messages: %v", req.Messages)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("Expected json_object response format, got %v", req.ResponseFormat)
		}

		resp := chatCompletionResponse{
			ID:    "test-id",
			Model: "gpt-4",
			Choices: []choice{
				{
					Message:      message{Role: "assistant", Content: "test response"},
					FinishReason: "stop",
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := New(Config{
		Endpoint:   server.URL + "/",
		APIKey:     "test-key",
		Deployment: "test-deployment",
	})
	if provider.Name() != "azure" {
		t.Errorf("Expected name azure, got %s", provider.Name())
	}

	response, err := provider.Call(context.Background(), reprompt.ChatMessages("test prompt"), reprompt.CallOptions{Temperature: 0.7, JSON: true})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if response != "test response" {
		t.Errorf("Expected 'test response', got '%s'", response)
	}
}

func TestProviderErrorHandling(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		responseBody  string
		expectedError string
		expectedCode  reprompt.ErrorCode
	}{
		{
			name:       "Rate limit",
			statusCode: http.StatusTooManyRequests,
			responseBody: `{
				"error": {
					"message": "Rate limit exceeded",
					"type": "rate_limit_error",
					"code": "rate_limit"
				}
			}`,
			expectedError: "azure error (429)",
			expectedCode:  reprompt.CodeRateLimitExceeded,
		},
		{
			name:          "Unauthorized",
			statusCode:    http.StatusUnauthorized,
			responseBody:  `{"error": {"message": "Access denied"}}`,
			expectedError: "Access denied",
			expectedCode:  reprompt.CodeAuthenticationFailed,
		},
		{
			name:       "API error",
			statusCode: http.StatusBadRequest,
			responseBody: `{
				"error": {
					"message": "Invalid request",
					"type": "invalid_request_error"
				}
			}`,
			expectedError: "azure error (400)",
			expectedCode:  reprompt.CodeUnknown,
		},
		{
			name:          "Server error without body",
			statusCode:    http.StatusInternalServerError,
			responseBody:  ``,
			expectedError: "azure error: status 500",
			expectedCode:  reprompt.CodeWorkerUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			provider := New(Config{
				Endpoint:   server.URL,
				APIKey:     "test-key",
				Deployment: "test",
			})

			_, err := provider.Call(context.Background(), reprompt.ChatMessages("test"), reprompt.CallOptions{})
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.expectedError) {
				t.Errorf("Expected error containing '%s', got '%s'", tt.expectedError, err.Error())
			}
			if code := reprompt.Classify(err).Code; code != tt.expectedCode {
				t.Errorf("Expected code %s, got %s", tt.expectedCode, code)
			}
		})
	}
}

func TestProviderDefaults(t *testing.T) {
	provider := New(Config{Endpoint: "https://x.openai.azure.com", APIKey: "k", Deployment: "d"})
	if provider.apiVersion != "2024-02-01" {
		t.Errorf("Expected default api version, got %s", provider.apiVersion)
	}
	if provider.httpClient.Timeout.Seconds() != 30 {
		t.Errorf("Expected 30s timeout, got %v", provider.httpClient.Timeout)
	}
}
