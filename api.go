// Package reprompt implements the prompt-improvement pipeline behind a chat
// assistant: a strict contract for the model's JSON rewrite, the validator
// that enforces it, the highlighter that maps Task/Rules/Examples sections
// back onto the text, and the error taxonomy that wraps every network call.
//
// The same validator runs at both ends of the wire. The edge proxy (package
// proxy) calls ValidatePayload on raw model output before anything is
// returned; the Client calls ValidateEnvelope on whatever the proxy sends.
//
// Basic usage:
//
//	transport := reprompt.NewHTTPTransport(reprompt.HTTPConfig{BaseURL: proxyURL})
//	client := reprompt.New(transport)
//	session := reprompt.NewSession()
//	resp, err := client.Submit(ctx, session, reprompt.ImprovementRequest{
//		OriginalPrompt: "red can.",
//		UserFeedback:   "too generic",
//	})
//	if err != nil {
//		var failure *reprompt.ClassifiedError
//		if errors.As(err, &failure) && failure.Retryable {
//			resp, err = client.Retry(ctx, session)
//		}
//	}
//	highlights := reprompt.ExtractHighlights(resp.ImprovedPrompt)
package reprompt

import "context"

// Provider is the LLM behind the edge proxy.
// Providers return the assistant's text or an *Error carrying a taxonomy code
// or HTTP status.
type Provider interface {
	// Call sends messages to the model and returns the text reply.
	// Messages should be in chronological order with any system message first.
	Call(ctx context.Context, messages []Message, opts CallOptions) (string, error)

	// Name returns the provider identifier (e.g., "openai", "anthropic")
	Name() string
}

// CallOptions tunes a single provider call.
type CallOptions struct {
	Temperature float32
	JSON        bool // Ask the model for a JSON object
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string // RoleSystem, RoleUser or RoleAssistant
	Content string // The message content
}

// Role constants for message types.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Proxy routes.
const (
	RouteImprove = "/api/improve"
	RouteChat    = "/api/chat"
)

// Transport carries a request body to the proxy and returns whatever came
// back. A non-2xx status is not an error at this layer; only failures to
// complete the exchange are.
type Transport interface {
	Call(ctx context.Context, route string, body []byte) (*TransportResponse, error)

	// Name returns the transport identifier used in hooks.
	Name() string
}

// TransportResponse is a completed exchange with the proxy.
type TransportResponse struct {
	StatusCode int
	Body       []byte
}
