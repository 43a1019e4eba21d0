package reprompt

// Call flows through the client's pipz pipelines.
// It carries one exchange with the proxy.
type Call struct {
	// Input fields
	Route string // Proxy route, RouteImprove or RouteChat
	Body  []byte // JSON request body

	// Metadata fields
	RequestID     string // Unique identifier for this call
	SessionID     string // ID of the owning session, empty for chat
	TransportName string // Name of the transport being used

	// Output fields (populated by pipeline)
	StatusCode int    // HTTP status returned by the proxy
	Response   []byte // Raw response body
}
