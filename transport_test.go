package reprompt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPTransport(t *testing.T) {
	t.Run("posts JSON", func(t *testing.T) {
		var gotPath, gotMethod, gotType, gotBody string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotMethod = r.Method
			gotType = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		transport := NewHTTPTransport(HTTPConfig{BaseURL: server.URL + "/"})
		resp, err := transport.Call(context.Background(), RouteImprove, []byte(`{"a":1}`))
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}

		if gotPath != RouteImprove || gotMethod != http.MethodPost {
			t.Errorf("Expected POST %s, got %s %s", RouteImprove, gotMethod, gotPath)
		}
		if gotType != "application/json" {
			t.Errorf("Expected JSON content type, got %q", gotType)
		}
		if gotBody != `{"a":1}` {
			t.Errorf("Unexpected body %q", gotBody)
		}
		if resp.StatusCode != http.StatusAccepted || string(resp.Body) != `{"ok":true}` {
			t.Errorf("Unexpected response %d %s", resp.StatusCode, resp.Body)
		}
		if transport.Name() != "http" {
			t.Errorf("Expected name http, got %s", transport.Name())
		}
	})

	t.Run("non-2xx is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		resp, err := NewHTTPTransport(HTTPConfig{BaseURL: server.URL}).Call(context.Background(), RouteChat, nil)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("Expected 502, got %d", resp.StatusCode)
		}
	})

	t.Run("oversized response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(strings.Repeat("x", maxResponseBytes+1)))
		}))
		defer server.Close()

		_, err := NewHTTPTransport(HTTPConfig{BaseURL: server.URL}).Call(context.Background(), RouteImprove, nil)
		if err == nil {
			t.Fatal("Expected error for oversized response")
		}
		failure := Classify(err)
		if failure.Code != CodeInvalidResponse {
			t.Errorf("Expected INVALID_RESPONSE, got %s", failure.Code)
		}
		if !strings.Contains(failure.RawDetails, "response exceeds 1 MiB") {
			t.Errorf("Expected size detail, got %q", failure.RawDetails)
		}
	})

	t.Run("response at the limit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(strings.Repeat("x", maxResponseBytes)))
		}))
		defer server.Close()

		resp, err := NewHTTPTransport(HTTPConfig{BaseURL: server.URL}).Call(context.Background(), RouteImprove, nil)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(resp.Body) != maxResponseBytes {
			t.Errorf("Expected full body, got %d bytes", len(resp.Body))
		}
	})

	t.Run("connection failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		_, err := NewHTTPTransport(HTTPConfig{BaseURL: url}).Call(context.Background(), RouteImprove, nil)
		if err == nil {
			t.Fatal("Expected error")
		}
		if Classify(err).Code != CodeNetworkError {
			t.Errorf("Expected NETWORK_ERROR, got %s (%v)", Classify(err).Code, err)
		}
	})

	t.Run("context deadline", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := NewHTTPTransport(HTTPConfig{BaseURL: server.URL}).Call(ctx, RouteImprove, nil)
		if Classify(err).Code != CodeAPITimeout {
			t.Errorf("Expected API_TIMEOUT, got %s (%v)", Classify(err).Code, err)
		}
	})
}

func TestClientUnreachableProxy(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	req := ImprovementRequest{OriginalPrompt: "red can.", UserFeedback: "vague"}

	t.Run("default timeouts", func(t *testing.T) {
		client := New(NewHTTPTransport(HTTPConfig{BaseURL: url}))
		_, err := client.Submit(context.Background(), NewSession(), req)
		failure := asClassified(t, err)
		if failure.Code != CodeNetworkError {
			t.Errorf("Expected NETWORK_ERROR, got %s (%s)", failure.Code, failure.RawDetails)
		}
		if failure.Message != CodeNetworkError.Message() {
			t.Errorf("Expected network message, got %q", failure.Message)
		}
	})

	t.Run("with timeout option", func(t *testing.T) {
		client := New(NewHTTPTransport(HTTPConfig{BaseURL: url}), WithTimeout(5*time.Second))
		_, err := client.Submit(context.Background(), NewSession(), req)
		if failure := asClassified(t, err); failure.Code != CodeNetworkError {
			t.Errorf("Expected NETWORK_ERROR, got %s (%s)", failure.Code, failure.RawDetails)
		}
	})

	t.Run("chat", func(t *testing.T) {
		client := New(NewHTTPTransport(HTTPConfig{BaseURL: url}))
		_, err := client.Chat(context.Background(), "hello")
		if failure := asClassified(t, err); failure.Code != CodeNetworkError {
			t.Errorf("Expected NETWORK_ERROR, got %s (%s)", failure.Code, failure.RawDetails)
		}
	})
}

func TestClientOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		resp, _ := NewMockTransport().Call(r.Context(), r.URL.Path, body)
		w.WriteHeader(resp.StatusCode)
		w.Write(resp.Body)
	}))
	defer server.Close()

	client := New(NewHTTPTransport(HTTPConfig{BaseURL: server.URL}))
	resp, err := client.Submit(context.Background(), NewSession(), ImprovementRequest{OriginalPrompt: "red can.", UserFeedback: "vague"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(ExtractHighlights(resp.ImprovedPrompt)) != 6 {
		t.Errorf("Expected 6 highlights for %q", resp.ImprovedPrompt)
	}
}
