package proxy

import (
	"fmt"
	"net/http"
	"path"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/reprompt"
)

// Recovery turns a panic in a handler into a 500 envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				capitan.Error(c.Request.Context(), reprompt.ProxyRequestFailed,
					reprompt.RouteKey.Field(c.Request.URL.Path),
					reprompt.HTTPStatusCodeKey.Field(http.StatusInternalServerError),
					reprompt.ErrorKey.Field(fmt.Sprintf("panic: %v\n%s", err, debug.Stack())),
				)
				fail(c, http.StatusInternalServerError, reprompt.CodeUnknown,
					reprompt.CodeUnknown.Message(), "internal server error")
			}
		}()
		c.Next()
	}
}

// Logger emits a capitan event for every finished request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []capitan.Field{
			reprompt.RouteKey.Field(c.Request.Method + " " + c.Request.URL.Path),
			reprompt.HTTPStatusCodeKey.Field(status),
			reprompt.DurationMsKey.Field(int(time.Since(start).Milliseconds())),
			reprompt.ClientIPKey.Field(c.ClientIP()),
			reprompt.OriginKey.Field(c.GetHeader("Origin")),
		}
		if code := c.GetString(errorCodeKey); code != "" {
			fields = append(fields, reprompt.ErrorCodeKey.Field(code))
		}

		if status >= http.StatusBadRequest {
			capitan.Error(c.Request.Context(), reprompt.ProxyRequestFailed, fields...)
			return
		}
		capitan.Info(c.Request.Context(), reprompt.ProxyRequestCompleted, fields...)
	}
}

// cors sets the CORS response headers on every request.
func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && s.origins.allows(origin) && !s.origins.any {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		} else {
			c.Header("Access-Control-Allow-Origin", "*")
		}
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Next()
	}
}

// checkOrigin rejects requests whose Origin is not allowed.
// Requests without an Origin header are same-origin and pass.
func (s *Server) checkOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || s.origins.allows(origin) {
			c.Next()
			return
		}
		fail(c, http.StatusForbidden, CodeInvalidOrigin, "Request from unauthorized domain", "Origin: "+origin)
	}
}

// rateLimit throttles each client IP independently.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || s.limiter.allow(c.ClientIP()) {
			c.Next()
			return
		}
		failCode(c, reprompt.CodeRateLimitExceeded, "Too many requests from this client")
	}
}

// originPolicy matches request origins against an allow-list.
// Entries containing '*' are path.Match patterns, so "https://*.pages.dev"
// matches any single host label.
type originPolicy struct {
	exact    map[string]bool
	patterns []string
	any      bool
}

func newOriginPolicy(allowed []string) *originPolicy {
	p := &originPolicy{exact: make(map[string]bool)}
	for _, a := range allowed {
		a = strings.TrimRight(strings.TrimSpace(a), "/")
		switch {
		case a == "":
			continue
		case a == "*":
			p.any = true
		case strings.Contains(a, "*"):
			p.patterns = append(p.patterns, a)
		default:
			p.exact[a] = true
		}
	}
	if len(p.exact) == 0 && len(p.patterns) == 0 {
		p.any = true
	}
	return p
}

func (p *originPolicy) allows(origin string) bool {
	if p.any || p.exact[origin] {
		return true
	}
	for _, pattern := range p.patterns {
		if ok, err := path.Match(pattern, origin); err == nil && ok {
			return true
		}
	}
	return false
}
