package proxy

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/zoobzio/reprompt"
)

// Proxy-only codes. Clients classify them through the HTTP status.
const (
	CodeInvalidOrigin reprompt.ErrorCode = "INVALID_ORIGIN"
	CodeInvalidMethod reprompt.ErrorCode = "INVALID_METHOD"
)

// errorCodeKey is the gin context key under which fail records its code.
const errorCodeKey = "reprompt.error_code"

func (s *Server) improve(c *gin.Context) {
	var req reprompt.ImprovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failCode(c, reprompt.CodeMissingFields, "Request body must be JSON with originalPrompt and userFeedback")
		return
	}
	if err := req.Validate(); err != nil {
		failClassified(c, reprompt.Classify(err))
		return
	}
	req = req.Normalized()
	if n := utf8.RuneCountInString(req.OriginalPrompt) + utf8.RuneCountInString(req.UserFeedback); n > s.maxPromptLength {
		failCode(c, reprompt.CodeMissingFields,
			fmt.Sprintf("Prompt exceeds maximum length of %d characters (provided: %d)", s.maxPromptLength, n))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.improveTimeout)
	defer cancel()

	out, err := s.provider.Call(ctx, reprompt.ImprovementMessages(req), reprompt.CallOptions{
		Temperature: s.temperature,
		JSON:        true,
	})
	if err != nil {
		failClassified(c, reprompt.Classify(err))
		return
	}

	resp, err := reprompt.ValidatePayload([]byte(out))
	if err != nil {
		failClassified(c, reprompt.Classify(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp})
}

func (s *Server) chat(c *gin.Context) {
	var req reprompt.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failCode(c, reprompt.CodeMissingFields, "Request must contain a 'prompt' field")
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		failCode(c, reprompt.CodeMissingFields, "Request must contain a 'prompt' field")
		return
	}
	if n := utf8.RuneCountInString(prompt); n > s.maxPromptLength {
		failCode(c, reprompt.CodeMissingFields,
			fmt.Sprintf("Prompt exceeds maximum length of %d characters (provided: %d)", s.maxPromptLength, n))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.chatTimeout)
	defer cancel()

	out, err := s.provider.Call(ctx, reprompt.ChatMessages(prompt), reprompt.CallOptions{
		Temperature: s.temperature,
	})
	if err != nil {
		failClassified(c, reprompt.Classify(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": reprompt.ChatReply{Message: out}})
}

func preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// statusFor maps a taxonomy code to the HTTP status the proxy answers with.
func statusFor(code reprompt.ErrorCode) int {
	switch code {
	case reprompt.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case reprompt.CodeAPITimeout:
		return http.StatusGatewayTimeout
	case CodeInvalidOrigin:
		return http.StatusForbidden
	case reprompt.CodeAuthenticationFailed:
		return http.StatusUnauthorized
	case reprompt.CodeWorkerUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func failCode(c *gin.Context, code reprompt.ErrorCode, details string) {
	fail(c, statusFor(code), code, code.Message(), details)
}

func failClassified(c *gin.Context, failure reprompt.ClassifiedError) {
	fail(c, statusFor(failure.Code), failure.Code, failure.Message, failure.RawDetails)
}

func fail(c *gin.Context, status int, code reprompt.ErrorCode, message, details string) {
	c.Set(errorCodeKey, string(code))
	c.AbortWithStatusJSON(status, reprompt.Envelope{
		Success: false,
		Error: &reprompt.EnvelopeError{
			Code:    string(code),
			Message: message,
			Details: details,
		},
	})
}
