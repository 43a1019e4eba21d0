package reprompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// Default time budgets for proxy calls.
const (
	DefaultImproveTimeout = 15 * time.Second
	DefaultChatTimeout    = 10 * time.Second
)

// MaxChatPromptLength is the longest chat prompt, in characters, the client sends.
const MaxChatPromptLength = 2000

var (
	// ErrSuperseded is returned by a call whose session started a newer call
	// (or was reset) before it completed. Its result was discarded.
	ErrSuperseded = errors.New("request superseded by a newer request")

	// ErrNothingToRetry is returned by Retry when the session holds no
	// retryable failure.
	ErrNothingToRetry = errors.New("no retryable request")
)

// Client talks to the edge proxy. It bounds every call with a timeout,
// validates every reply and classifies every failure.
//
// A Client is stateless between calls; per-flow state lives in the Session
// passed to Submit and Retry. One Client may serve many sessions.
type Client struct {
	improve       pipz.Chainable[*Call]
	chat          pipz.Chainable[*Call]
	transportName string
}

// NewTerminal creates the processor that performs the proxy exchange.
func NewTerminal(transport Transport) pipz.Chainable[*Call] {
	return pipz.Apply("proxy-call", func(ctx context.Context, call *Call) (*Call, error) {
		resp, err := transport.Call(ctx, call.Route, call.Body)
		if err != nil {
			return call, err
		}
		call.StatusCode = resp.StatusCode
		call.Response = resp.Body
		return call, nil
	})
}

// New creates a Client that reaches the proxy through transport.
// Options wrap the terminal in order; the default timeouts wrap the result.
func New(transport Transport, opts ...Option) *Client {
	pipeline := NewTerminal(transport)
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}

	return &Client{
		improve:       pipz.NewTimeout("improve-timeout", pipeline, DefaultImproveTimeout),
		chat:          pipz.NewTimeout("chat-timeout", pipeline, DefaultChatTimeout),
		transportName: transport.Name(),
	}
}

// Submit sends req to the proxy and records the outcome in session.
//
// Blank fields fail locally with MISSING_FIELDS and leave the session as it
// was. Otherwise any call already in flight on session is cancelled, the
// session enters StateRequesting and the outcome moves it to StateSuccess or
// StateFailed. Failures are returned as *ClassifiedError. If a newer call
// starts on session before this one completes, Submit returns ErrSuperseded
// and the session is not touched.
func (c *Client) Submit(ctx context.Context, session *Session, req ImprovementRequest) (*ImprovementResponse, error) {
	if err := req.Validate(); err != nil {
		failure := Classify(err)
		capitan.Error(ctx, RequestFailed,
			SessionIDKey.Field(session.ID()),
			ErrorCodeKey.Field(string(failure.Code)),
			ErrorKey.Field(failure.RawDetails),
		)
		return nil, &failure
	}
	req = req.Normalized()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	gen := session.begin(cancel)

	requestID := uuid.New().String()
	capitan.Info(ctx, RequestStarted,
		RequestIDKey.Field(requestID),
		SessionIDKey.Field(session.ID()),
		GenerationKey.Field(gen),
		TransportKey.Field(c.transportName),
		OriginalPromptKey.Field(req.OriginalPrompt),
		UserFeedbackKey.Field(req.UserFeedback),
	)

	call := &Call{
		Route:         RouteImprove,
		Body:          body,
		RequestID:     requestID,
		SessionID:     session.ID(),
		TransportName: c.transportName,
	}

	resp, err := c.exchangeImprove(callCtx, call)
	if err != nil {
		failure := Classify(err)
		if !session.fail(gen, req, failure) {
			return nil, c.superseded(ctx, requestID, session, gen)
		}
		capitan.Error(ctx, RequestFailed,
			RequestIDKey.Field(requestID),
			SessionIDKey.Field(session.ID()),
			GenerationKey.Field(gen),
			ErrorCodeKey.Field(string(failure.Code)),
			ErrorKey.Field(failure.RawDetails),
		)
		return nil, &failure
	}

	comparison := &Comparison{
		OriginalPrompt: req.OriginalPrompt,
		UserFeedback:   req.UserFeedback,
		Response:       resp,
		Highlights:     ExtractHighlights(resp.ImprovedPrompt),
	}
	if !session.succeed(gen, comparison) {
		return nil, c.superseded(ctx, requestID, session, gen)
	}

	capitan.Info(ctx, RequestCompleted,
		RequestIDKey.Field(requestID),
		SessionIDKey.Field(session.ID()),
		GenerationKey.Field(gen),
		ImprovedPromptKey.Field(resp.ImprovedPrompt),
	)

	return resp, nil
}

// Retry resends the identical request that last failed on session.
// It returns ErrNothingToRetry unless the session is in StateFailed with a
// retryable failure.
func (c *Client) Retry(ctx context.Context, session *Session) (*ImprovementResponse, error) {
	req, ok := session.retryable()
	if !ok {
		return nil, ErrNothingToRetry
	}
	return c.Submit(ctx, session, req)
}

// Chat sends a single prompt to the proxy's chat route and returns the reply.
// Failures are returned as *ClassifiedError.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		failure := Classify(&Error{Code: CodeMissingFields, Details: "prompt is required"})
		return "", &failure
	}
	if n := utf8.RuneCountInString(prompt); n > MaxChatPromptLength {
		failure := Classify(&Error{
			Code:    CodeMissingFields,
			Details: fmt.Sprintf("prompt is %d characters, limit is %d", n, MaxChatPromptLength),
		})
		return "", &failure
	}

	body, err := json.Marshal(ChatRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	requestID := uuid.New().String()
	capitan.Info(ctx, RequestStarted,
		RequestIDKey.Field(requestID),
		RouteKey.Field(RouteChat),
		TransportKey.Field(c.transportName),
	)

	reply, err := c.exchangeChat(ctx, &Call{
		Route:         RouteChat,
		Body:          body,
		RequestID:     requestID,
		TransportName: c.transportName,
	})
	if err != nil {
		failure := Classify(err)
		capitan.Error(ctx, RequestFailed,
			RequestIDKey.Field(requestID),
			RouteKey.Field(RouteChat),
			ErrorCodeKey.Field(string(failure.Code)),
			ErrorKey.Field(failure.RawDetails),
		)
		return "", &failure
	}

	capitan.Info(ctx, RequestCompleted,
		RequestIDKey.Field(requestID),
		RouteKey.Field(RouteChat),
	)
	return reply, nil
}

func (c *Client) exchangeImprove(ctx context.Context, call *Call) (*ImprovementResponse, error) {
	processed, err := c.improve.Process(ctx, call)
	if err != nil {
		return nil, err
	}
	if !isSuccessStatus(processed.StatusCode) {
		return nil, statusError(processed.StatusCode, processed.Response)
	}

	resp, err := ValidateEnvelope(processed.Response)
	if err != nil {
		capitan.Error(ctx, ResponseRejected,
			RequestIDKey.Field(call.RequestID),
			SessionIDKey.Field(call.SessionID),
			ResponseKey.Field(string(processed.Response)),
			ErrorKey.Field(err.Error()),
		)
		return nil, err
	}
	return resp, nil
}

func (c *Client) exchangeChat(ctx context.Context, call *Call) (string, error) {
	processed, err := c.chat.Process(ctx, call)
	if err != nil {
		return "", err
	}
	if !isSuccessStatus(processed.StatusCode) {
		return "", statusError(processed.StatusCode, processed.Response)
	}

	data, err := openEnvelope(processed.Response)
	if err != nil {
		return "", err
	}
	var reply ChatReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return "", &Error{Code: CodeInvalidResponse, Details: "malformed chat reply", Err: err}
	}
	if strings.TrimSpace(reply.Message) == "" {
		return "", invalid("chat reply has no message")
	}
	return reply.Message, nil
}

func (c *Client) superseded(ctx context.Context, requestID string, session *Session, gen int) error {
	capitan.Info(ctx, RequestSuperseded,
		RequestIDKey.Field(requestID),
		SessionIDKey.Field(session.ID()),
		GenerationKey.Field(gen),
	)
	return ErrSuperseded
}

func isSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}

// statusError builds the failure for a non-2xx reply, preferring the code
// the proxy put in its envelope over the bare status.
func statusError(status int, body []byte) error {
	e := &Error{
		Status:  status,
		Details: fmt.Sprintf("HTTP %d %s", status, http.StatusText(status)),
	}

	var env Envelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		e.Code = ErrorCode(env.Error.Code)
		switch {
		case env.Error.Details != "":
			e.Details = env.Error.Details
		case env.Error.Message != "":
			e.Details = env.Error.Message
		}
	}
	return e
}
