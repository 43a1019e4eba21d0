package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zoobzio/reprompt"
	"github.com/zoobzio/reprompt/providers/anthropic"
	"github.com/zoobzio/reprompt/providers/azure"
	"github.com/zoobzio/reprompt/providers/openai"
	"github.com/zoobzio/reprompt/proxy"
)

// Config is the proxy's environment configuration.
type Config struct {
	Env            string
	Port           string
	Provider       string // "openai", "anthropic", "azure" or "mock"
	Model          string // Deployment name for azure
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	AnthropicKey   string
	AzureEndpoint  string
	AzureAPIKey    string
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
	ImproveTimeout time.Duration
	ChatTimeout    time.Duration
}

// IsProduction reports whether the proxy runs in production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// LoadConfig reads configuration from the environment. Outside production a
// .env file in the working directory is loaded first when present.
func LoadConfig() (Config, error) {
	if getEnv("REPROMPT_ENV", "development") != "production" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:            getEnv("REPROMPT_ENV", "development"),
		Port:           getEnv("PORT", "8787"),
		Provider:       getEnv("REPROMPT_PROVIDER", "openai"),
		Model:          getEnv("REPROMPT_MODEL", ""),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
		AzureEndpoint:  getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureAPIKey:    getEnv("AZURE_OPENAI_API_KEY", ""),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
		RateLimit:      getEnvFloat("RATE_LIMIT_RPS", 1),
		RateBurst:      getEnvInt("RATE_LIMIT_BURST", 5),
		ImproveTimeout: getEnvDuration("IMPROVE_TIMEOUT", reprompt.DefaultImproveTimeout),
		ChatTimeout:    getEnvDuration("CHAT_TIMEOUT", reprompt.DefaultChatTimeout),
	}

	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return cfg, fmt.Errorf("OPENAI_API_KEY is required for provider openai")
		}
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return cfg, fmt.Errorf("ANTHROPIC_API_KEY is required for provider anthropic")
		}
	case "azure":
		if cfg.AzureEndpoint == "" || cfg.AzureAPIKey == "" || cfg.Model == "" {
			return cfg, fmt.Errorf("AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY and REPROMPT_MODEL are required for provider azure")
		}
	case "mock":
	default:
		return cfg, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	return cfg, nil
}

// NewProvider builds the configured model provider.
func (c Config) NewProvider() reprompt.Provider {
	switch c.Provider {
	case "anthropic":
		return anthropic.New(anthropic.Config{APIKey: c.AnthropicKey, Model: c.Model})
	case "azure":
		return azure.New(azure.Config{Endpoint: c.AzureEndpoint, APIKey: c.AzureAPIKey, Deployment: c.Model})
	case "mock":
		return reprompt.NewMockProvider()
	default:
		return openai.New(openai.Config{APIKey: c.OpenAIAPIKey, Model: c.Model, BaseURL: c.OpenAIBaseURL})
	}
}

// ProxyConfig converts c into the proxy package's configuration.
func (c Config) ProxyConfig() proxy.Config {
	return proxy.Config{
		Provider:       c.NewProvider(),
		AllowedOrigins: c.AllowedOrigins,
		ImproveTimeout: c.ImproveTimeout,
		ChatTimeout:    c.ChatTimeout,
		RateLimit:      c.RateLimit,
		RateBurst:      c.RateBurst,
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
