package reprompt

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// State is the position of a Session in the improvement cycle.
type State int

// Session states.
const (
	StateIdle State = iota
	StateRequesting
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Comparison is a successful improvement ready for display.
type Comparison struct {
	OriginalPrompt string
	UserFeedback   string
	Response       *ImprovementResponse
	Highlights     []Highlight
}

// Session holds the state of one improvement flow: the current state, the
// last failed request kept for retry, and the most recent comparison.
//
// Create one per user session with NewSession and pass it to every Client
// call; Reset tears it down. Each started call takes a new generation, and a
// call that completes under an older generation leaves the session untouched.
//
// Sessions are safe for concurrent use by multiple goroutines.
type Session struct {
	id          string
	state       State
	generation  int
	cancel      context.CancelFunc
	lastRequest *ImprovementRequest
	lastFailure *ClassifiedError
	comparison  *Comparison
	mu          sync.Mutex
}

// NewSession creates an idle session with a unique ID.
func NewSession() *Session {
	return &Session{
		id:    uuid.New().String(),
		state: StateIdle,
	}
}

// ID returns the unique identifier for this session.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation returns the token of the most recently started call.
func (s *Session) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// LastFailedRequest returns the request kept for retry, if any.
func (s *Session) LastFailedRequest() (ImprovementRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRequest == nil {
		return ImprovementRequest{}, false
	}
	return *s.lastRequest, true
}

// LastFailure returns a copy of the most recent classified failure, or nil.
func (s *Session) LastFailure() *ClassifiedError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFailure == nil {
		return nil
	}
	failure := *s.lastFailure
	return &failure
}

// Comparison returns the pending comparison without consuming it.
func (s *Session) Comparison() (*Comparison, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comparison, s.comparison != nil
}

// Consume hands the successful comparison to the caller and returns the
// session to idle. It reports false unless the session is in StateSuccess.
func (s *Session) Consume() (*Comparison, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSuccess || s.comparison == nil {
		return nil, false
	}
	comparison := s.comparison
	s.comparison = nil
	s.state = StateIdle
	return comparison, true
}

// Reset cancels any call in flight and clears all state. The session ID is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.state = StateIdle
	s.lastRequest = nil
	s.lastFailure = nil
	s.comparison = nil
}

// begin starts a new call, cancelling and superseding any call in flight.
func (s *Session) begin(cancel context.CancelFunc) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	s.cancel = cancel
	s.state = StateRequesting
	s.lastRequest = nil
	s.lastFailure = nil
	s.comparison = nil
	return s.generation
}

// succeed records a comparison for generation gen. It reports false when the
// call was superseded.
func (s *Session) succeed(gen int, comparison *Comparison) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.cancel = nil
	s.state = StateSuccess
	s.comparison = comparison
	return true
}

// fail records a failure and keeps req for retry. It reports false when the
// call was superseded.
func (s *Session) fail(gen int, req ImprovementRequest, failure ClassifiedError) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.cancel = nil
	s.state = StateFailed
	s.lastRequest = &req
	s.lastFailure = &failure
	return true
}

// retryable returns the request to resend, if the last failure allows it.
func (s *Session) retryable() (ImprovementRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFailed || s.lastRequest == nil || s.lastFailure == nil || !s.lastFailure.Retryable {
		return ImprovementRequest{}, false
	}
	return *s.lastRequest, true
}
