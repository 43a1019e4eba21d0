package reprompt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// MockProvider simulates the model for testing and local development.
// Improvement calls get a deterministic, valid rewrite of the original prompt;
// chat calls get a fixed reply.
type MockProvider struct {
	name      string
	available bool
	mu        sync.Mutex
}

// NewMockProvider creates a new mock provider for testing.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:      "mock",
		available: true,
	}
}

// NewMockProviderWithName creates a new mock provider with a specific name.
func NewMockProviderWithName(name string) *MockProvider {
	return &MockProvider{
		name:      name,
		available: true,
	}
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string {
	return m.name
}

// Call simulates a model call with deterministic responses.
func (m *MockProvider) Call(_ context.Context, messages []Message, opts CallOptions) (string, error) {
	m.mu.Lock()
	available := m.available
	m.mu.Unlock()

	if !available {
		return "", &Error{Status: http.StatusServiceUnavailable, Details: fmt.Sprintf("provider %s is unavailable", m.name)}
	}

	var prompt string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			prompt = messages[i].Content
			break
		}
	}

	if !opts.JSON {
		return "Mock response", nil
	}

	resp := MockImprovement(extractQuoted(prompt, "Original prompt: "))
	jsonBytes, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}

// SetAvailable sets the availability status (for testing failures).
func (m *MockProvider) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// MockImprovement returns a valid improvement of original that maps every
// sentence to the Task section.
func MockImprovement(original string) *ImprovementResponse {
	sentences := SplitSentences(original)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(original)}
	}

	mapping := make([]MappingEntry, len(sentences))
	for i, s := range sentences {
		mapping[i] = MappingEntry{
			OriginalSentence: s,
			ImprovedSections: []string{string(SectionTask)},
		}
	}

	return &ImprovementResponse{
		ImprovedPrompt: fmt.Sprintf("Task: %s\n\nRules: Keep it concise.\n\nExamples: A short, specific answer.",
			strings.TrimSpace(original)),
		Mapping: mapping,
		Explanations: []ExplanationEntry{
			{Section: SectionTask, Tooltip: "States what to produce. A clear task anchors the answer."},
			{Section: SectionRules, Tooltip: "Sets the limits. Rules keep the output on target."},
			{Section: SectionExamples, Tooltip: "Shows the expected style. Examples reduce guesswork."},
		},
	}
}

// SplitSentences cuts text after each '.', '!' or '?' and trims the pieces.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// extractQuoted returns the quoted value that follows label on its line.
func extractQuoted(prompt, label string) string {
	idx := strings.Index(prompt, label)
	if idx == -1 {
		return ""
	}
	rest := prompt[idx+len(label):]
	if end := strings.Index(rest, "\n"); end != -1 {
		rest = rest[:end]
	}
	if unquoted, err := strconv.Unquote(strings.TrimSpace(rest)); err == nil {
		return unquoted
	}
	return strings.TrimSpace(rest)
}

// MockTransport answers proxy calls in memory.
// The improve route returns a valid envelope built by MockImprovement; the
// chat route echoes the prompt.
type MockTransport struct {
	name  string
	calls int
	mu    sync.Mutex
}

// NewMockTransport creates a new mock transport for testing.
func NewMockTransport() *MockTransport {
	return &MockTransport{name: "mock"}
}

// Name returns the transport identifier.
func (m *MockTransport) Name() string {
	return m.name
}

// Calls returns how many calls the transport has received.
func (m *MockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Call simulates the proxy.
func (m *MockTransport) Call(_ context.Context, route string, body []byte) (*TransportResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	var data any
	switch route {
	case RouteImprove:
		var req ImprovementRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return mockFailure(http.StatusBadRequest, CodeMissingFields, "invalid JSON body"), nil
		}
		data = MockImprovement(req.OriginalPrompt)
	case RouteChat:
		var req ChatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return mockFailure(http.StatusBadRequest, CodeMissingFields, "invalid JSON body"), nil
		}
		data = ChatReply{Message: "Mock response to: " + req.Prompt}
	default:
		return mockFailure(http.StatusNotFound, "NOT_FOUND", "unknown route "+route), nil
	}

	return &TransportResponse{StatusCode: http.StatusOK, Body: mustEnvelope(data)}, nil
}

func mustEnvelope(data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	body, err := json.Marshal(Envelope{Success: true, Data: raw})
	if err != nil {
		panic(err)
	}
	return body
}

func mockFailure(status int, code ErrorCode, details string) *TransportResponse {
	body, _ := json.Marshal(Envelope{Error: &EnvelopeError{
		Code:    string(code),
		Message: code.Message(),
		Details: details,
	}})
	return &TransportResponse{StatusCode: status, Body: body}
}

// NewMockTransportWithResponse creates a mock that always returns status and body.
func NewMockTransportWithResponse(status int, body string) Transport {
	return &mockTransportFixed{status: status, body: []byte(body)}
}

// NewMockTransportWithCallback creates a mock that calls a function to generate responses.
func NewMockTransportWithCallback(callback func(ctx context.Context, route string, body []byte) (*TransportResponse, error)) Transport {
	return &mockTransportCallback{callback: callback}
}

// mockTransportFixed always returns a fixed response.
type mockTransportFixed struct {
	status int
	body   []byte
}

func (*mockTransportFixed) Name() string {
	return "mock"
}

func (m *mockTransportFixed) Call(_ context.Context, _ string, _ []byte) (*TransportResponse, error) {
	return &TransportResponse{StatusCode: m.status, Body: m.body}, nil
}

// mockTransportCallback uses a callback to generate responses.
type mockTransportCallback struct {
	callback func(context.Context, string, []byte) (*TransportResponse, error)
}

func (*mockTransportCallback) Name() string {
	return "mock"
}

func (m *mockTransportCallback) Call(ctx context.Context, route string, body []byte) (*TransportResponse, error) {
	return m.callback(ctx, route, body)
}
