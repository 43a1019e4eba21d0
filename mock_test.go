package reprompt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"testing"
)

func TestMockProvider(t *testing.T) {
	t.Run("chat", func(t *testing.T) {
		provider := NewMockProvider()
		if provider.Name() != "mock" {
			t.Errorf("Expected name mock, got %s", provider.Name())
		}

		reply, err := provider.Call(context.Background(), ChatMessages("hi"), CallOptions{})
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if reply != "Mock response" {
			t.Errorf("Unexpected reply %q", reply)
		}
	})

	t.Run("improvement", func(t *testing.T) {
		provider := NewMockProvider()
		messages := ImprovementMessages(ImprovementRequest{OriginalPrompt: "Write a poem. Make it rhyme!", UserFeedback: "bland"})

		reply, err := provider.Call(context.Background(), messages, CallOptions{JSON: true})
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}

		resp, err := ValidatePayload([]byte(reply))
		if err != nil {
			t.Fatalf("Expected valid payload, got %v", err)
		}
		want := []string{"Write a poem.", "Make it rhyme!"}
		for i, m := range resp.Mapping {
			if m.OriginalSentence != want[i] {
				t.Errorf("mapping[%d] = %q, want %q", i, m.OriginalSentence, want[i])
			}
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		provider := NewMockProviderWithName("flaky")
		provider.SetAvailable(false)

		_, err := provider.Call(context.Background(), ChatMessages("hi"), CallOptions{})
		var e *Error
		if !errors.As(err, &e) || e.Status != http.StatusServiceUnavailable {
			t.Fatalf("Expected 503 error, got %v", err)
		}
		if Classify(err).Code != CodeWorkerUnavailable {
			t.Errorf("Expected WORKER_UNAVAILABLE, got %s", Classify(err).Code)
		}

		provider.SetAvailable(true)
		if _, err := provider.Call(context.Background(), ChatMessages("hi"), CallOptions{}); err != nil {
			t.Errorf("Expected success once available, got %v", err)
		}
	})
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"red can.", []string{"red can."}},
		{"One. Two? Three!", []string{"One.", "Two?", "Three!"}},
		{"no terminator", []string{"no terminator"}},
		{"Wait... what", []string{"Wait.", "what"}},
	}
	for _, tt := range tests {
		if got := SplitSentences(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitSentences(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMockTransport(t *testing.T) {
	t.Run("routes", func(t *testing.T) {
		transport := NewMockTransport()

		body, _ := json.Marshal(ImprovementRequest{OriginalPrompt: "red can.", UserFeedback: "x"})
		resp, err := transport.Call(context.Background(), RouteImprove, body)
		if err != nil || resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %v %v", resp, err)
		}
		if _, err := ValidateEnvelope(resp.Body); err != nil {
			t.Errorf("Expected valid envelope, got %v", err)
		}

		resp, _ = transport.Call(context.Background(), "/api/nope", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", resp.StatusCode)
		}

		resp, _ = transport.Call(context.Background(), RouteChat, []byte("{"))
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}

		if transport.Calls() != 3 {
			t.Errorf("Expected 3 calls, got %d", transport.Calls())
		}
	})

	t.Run("fixed response", func(t *testing.T) {
		transport := NewMockTransportWithResponse(http.StatusTeapot, "short and stout")
		resp, err := transport.Call(context.Background(), RouteImprove, nil)
		if err != nil || resp.StatusCode != http.StatusTeapot || string(resp.Body) != "short and stout" {
			t.Errorf("Unexpected fixed response %+v %v", resp, err)
		}
	})
}
