// Package proxy is the edge service that sits between the browser and the
// model. It holds the provider credentials, enforces an origin allow-list and
// a per-client rate limit, and validates model output with
// reprompt.ValidatePayload before anything is returned.
package proxy

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zoobzio/reprompt"
)

// Defaults applied by New.
const (
	DefaultMaxPromptLength = 10000
	DefaultTemperature     = 0.7
)

// Config holds configuration for the proxy.
type Config struct {
	Provider        reprompt.Provider
	AllowedOrigins  []string      // Exact origins or path.Match patterns; empty allows any origin
	ImproveTimeout  time.Duration // Optional, defaults to reprompt.DefaultImproveTimeout
	ChatTimeout     time.Duration // Optional, defaults to reprompt.DefaultChatTimeout
	MaxPromptLength int           // Optional, in characters, defaults to 10000
	Temperature     float32       // Optional, defaults to 0.7
	RateLimit       float64       // Requests per second per client; zero disables limiting
	RateBurst       int           // Optional, defaults to 1 when RateLimit is set
}

// Server serves the proxy routes.
type Server struct {
	provider        reprompt.Provider
	origins         *originPolicy
	limiter         *limiterStore
	improveTimeout  time.Duration
	chatTimeout     time.Duration
	maxPromptLength int
	temperature     float32
}

// New creates a proxy server for config.Provider.
func New(config Config) *Server {
	if config.ImproveTimeout == 0 {
		config.ImproveTimeout = reprompt.DefaultImproveTimeout
	}
	if config.ChatTimeout == 0 {
		config.ChatTimeout = reprompt.DefaultChatTimeout
	}
	if config.MaxPromptLength == 0 {
		config.MaxPromptLength = DefaultMaxPromptLength
	}
	if config.Temperature == 0 {
		config.Temperature = DefaultTemperature
	}
	if config.RateLimit > 0 && config.RateBurst == 0 {
		config.RateBurst = 1
	}

	s := &Server{
		provider:        config.Provider,
		origins:         newOriginPolicy(config.AllowedOrigins),
		improveTimeout:  config.ImproveTimeout,
		chatTimeout:     config.ChatTimeout,
		maxPromptLength: config.MaxPromptLength,
		temperature:     config.Temperature,
	}
	if config.RateLimit > 0 {
		s.limiter = newLimiterStore(config.RateLimit, config.RateBurst)
	}
	return s
}

// Router returns a gin engine with every proxy route and middleware mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	// Order matters: Recovery catches panics, Logger sees the final status.
	router.Use(Recovery())
	router.Use(Logger())
	router.Use(s.cors())

	s.SetupRoutes(router)
	return router
}

// SetupRoutes mounts the proxy routes on router.
func (s *Server) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.OPTIONS("/improve", preflight)
	api.OPTIONS("/chat", preflight)

	guarded := api.Group("", s.checkOrigin(), s.rateLimit())
	guarded.POST("/improve", s.improve)
	guarded.POST("/chat", s.chat)

	router.NoMethod(func(c *gin.Context) {
		fail(c, http.StatusMethodNotAllowed, CodeInvalidMethod, "Only POST requests allowed", "Expected POST")
	})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
