package reprompt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/zoobzio/pipz"
)

// ErrorCode is a stable identifier in the failure taxonomy.
type ErrorCode string

// Error taxonomy shared by the proxy and the client.
const (
	CodeMissingFields        ErrorCode = "MISSING_FIELDS"
	CodeAPITimeout           ErrorCode = "API_TIMEOUT"
	CodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	CodeNetworkError         ErrorCode = "NETWORK_ERROR"
	CodeWorkerUnavailable    ErrorCode = "WORKER_UNAVAILABLE"
	CodeInvalidResponse      ErrorCode = "INVALID_RESPONSE"
	CodeUnknown              ErrorCode = "UNKNOWN"
)

type codeInfo struct {
	message   string
	retryable bool
}

var taxonomy = map[ErrorCode]codeInfo{
	CodeMissingFields:        {"Required information is missing. Please check your input and try again.", false},
	CodeAPITimeout:           {"The request took too long. Please try again.", true},
	CodeRateLimitExceeded:    {"We're experiencing high demand. Please wait a moment and try again.", true},
	CodeAuthenticationFailed: {"Service configuration error. Please contact support.", false},
	CodeNetworkError:         {"Connection issue. Please check your internet and try again.", true},
	CodeWorkerUnavailable:    {"Service temporarily unavailable. Please try again.", true},
	CodeInvalidResponse:      {"The AI returned an invalid response. Please try again.", true},
	CodeUnknown:              {"Something went wrong. Please try again.", true},
}

// Upstream codes that older proxies emit for taxonomy members.
var codeAliases = map[ErrorCode]ErrorCode{
	"INVALID_API_KEY": CodeAuthenticationFailed,
}

var statusCodes = map[int]ErrorCode{
	http.StatusUnauthorized:        CodeAuthenticationFailed,
	http.StatusForbidden:           CodeAuthenticationFailed,
	http.StatusTooManyRequests:     CodeRateLimitExceeded,
	http.StatusInternalServerError: CodeWorkerUnavailable,
	http.StatusBadGateway:          CodeWorkerUnavailable,
	http.StatusServiceUnavailable:  CodeWorkerUnavailable,
	http.StatusGatewayTimeout:      CodeAPITimeout,
}

// Known reports whether c (or its alias) belongs to the taxonomy.
func (c ErrorCode) Known() bool {
	_, ok := taxonomy[c.canonical()]
	return ok
}

// Message returns the fixed user-facing message for c.
func (c ErrorCode) Message() string {
	if info, ok := taxonomy[c.canonical()]; ok {
		return info.message
	}
	return taxonomy[CodeUnknown].message
}

// Retryable reports whether a failure with code c may be retried by the user.
func (c ErrorCode) Retryable() bool {
	if info, ok := taxonomy[c.canonical()]; ok {
		return info.retryable
	}
	return true
}

func (c ErrorCode) canonical() ErrorCode {
	if alias, ok := codeAliases[c]; ok {
		return alias
	}
	return c
}

// Error is a raw failure produced by validators, transports and providers.
// Code may be empty or outside the taxonomy; Status is zero when no HTTP
// response was involved.
type Error struct {
	Code    ErrorCode
	Status  int
	Details string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(string(e.Code))
	} else if e.Status != 0 {
		fmt.Fprintf(&b, "HTTP %d", e.Status)
	} else {
		b.WriteString("error")
	}
	if e.Details != "" {
		b.WriteString(": ")
		b.WriteString(e.Details)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClassifiedError is a failure mapped onto the taxonomy.
// Message is safe to show; RawDetails is for logs only.
type ClassifiedError struct {
	Code       ErrorCode
	Message    string
	Retryable  bool
	RawDetails string
}

func (e *ClassifiedError) Error() string {
	if e.RawDetails == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.RawDetails
}

func newClassified(code ErrorCode, details string) ClassifiedError {
	code = code.canonical()
	return ClassifiedError{
		Code:       code,
		Message:    code.Message(),
		Retryable:  code.Retryable(),
		RawDetails: details,
	}
}

// Classify maps any failure onto the taxonomy.
//
// Precedence: a recognised code carried by the error wins; then an HTTP
// status; then timeout, network and rate-limit signals in the error chain or
// message, in that order; everything else is UNKNOWN.
func Classify(err error) ClassifiedError {
	if err == nil {
		return newClassified(CodeUnknown, "")
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return *classified
	}

	details := err.Error()

	var coded *Error
	if errors.As(err, &coded) {
		if coded.Code.Known() {
			return newClassified(coded.Code, details)
		}
		if coded.Status != 0 {
			return newClassified(statusCode(coded.Status), details)
		}
	}

	return newClassified(matchGeneric(err), details)
}

func statusCode(status int) ErrorCode {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= 500 {
		return CodeWorkerUnavailable
	}
	return CodeUnknown
}

func matchGeneric(err error) ErrorCode {
	cause, timedOut := pipelineCause(err)
	if timedOut {
		return CodeAPITimeout
	}
	msg := strings.ToLower(cause.Error())

	var netErr net.Error
	if errors.Is(cause, context.DeadlineExceeded) ||
		(errors.As(cause, &netErr) && netErr.Timeout()) ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out") {
		return CodeAPITimeout
	}

	var opErr *net.OpError
	var urlErr *url.Error
	if errors.As(cause, &opErr) ||
		errors.As(cause, &urlErr) ||
		strings.Contains(msg, "network") ||
		strings.Contains(msg, "connection") {
		return CodeNetworkError
	}

	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") {
		return CodeRateLimitExceeded
	}

	return CodeUnknown
}

// pipelineCause peels pipeline error wrappers off err. Their messages carry
// connector names such as "improve-timeout", so keyword matching must only
// see the underlying cause.
func pipelineCause(err error) (error, bool) {
	timedOut := false
	for {
		var pErr *pipz.Error[*Call]
		if !errors.As(err, &pErr) || pErr.Err == nil {
			return err, timedOut
		}
		if pErr.IsTimeout() {
			timedOut = true
		}
		err = pErr.Err
	}
}
