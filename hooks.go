package reprompt

import "github.com/zoobzio/capitan"

// Signals for hook events.
const (
	RequestStarted    = capitan.Signal("improve.request.started")
	RequestCompleted  = capitan.Signal("improve.request.completed")
	RequestFailed     = capitan.Signal("improve.request.failed")
	RequestSuperseded = capitan.Signal("improve.request.superseded")

	TransportCallStarted   = capitan.Signal("improve.transport.call.started")
	TransportCallCompleted = capitan.Signal("improve.transport.call.completed")
	TransportCallFailed    = capitan.Signal("improve.transport.call.failed")

	ResponseRejected = capitan.Signal("improve.response.rejected")

	ProviderCallStarted   = capitan.Signal("improve.provider.call.started")
	ProviderCallCompleted = capitan.Signal("improve.provider.call.completed")
	ProviderCallFailed    = capitan.Signal("improve.provider.call.failed")

	ProxyRequestCompleted = capitan.Signal("improve.proxy.request.completed")
	ProxyRequestFailed    = capitan.Signal("improve.proxy.request.failed")
)

// Keys for hook event fields.
var (
	// Request identification.
	RequestIDKey  = capitan.NewStringKey("improve.request.id")
	SessionIDKey  = capitan.NewStringKey("improve.session.id")
	RouteKey      = capitan.NewStringKey("improve.route")
	GenerationKey = capitan.NewIntKey("improve.generation")

	// Input/Output data.
	OriginalPromptKey = capitan.NewStringKey("improve.original_prompt")
	UserFeedbackKey   = capitan.NewStringKey("improve.user_feedback")
	ImprovedPromptKey = capitan.NewStringKey("improve.improved_prompt")

	// Raw body as received, for rejected responses.
	ResponseKey = capitan.NewStringKey("improve.response")

	// Error information.
	ErrorKey     = capitan.NewStringKey("improve.error")
	ErrorCodeKey = capitan.NewStringKey("improve.error.code")

	// Transport and provider information.
	TransportKey = capitan.NewStringKey("improve.transport")
	ProviderKey  = capitan.NewStringKey("improve.provider")
	ModelKey     = capitan.NewStringKey("improve.model")

	// Metrics.
	PromptTokensKey     = capitan.NewIntKey("improve.tokens.prompt")
	CompletionTokensKey = capitan.NewIntKey("improve.tokens.completion")
	DurationMsKey       = capitan.NewIntKey("improve.duration.ms")

	// HTTP metadata.
	HTTPStatusCodeKey = capitan.NewIntKey("improve.http.status.code")
	ClientIPKey       = capitan.NewStringKey("improve.client.ip")
	OriginKey         = capitan.NewStringKey("improve.origin")
)
