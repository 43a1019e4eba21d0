package reprompt

import (
	"context"
	"fmt"
	"time"

	"github.com/zoobzio/pipz"
)

// Option modifies a client pipeline.
// Every option applies to both the improve and the chat pipeline.
// Retries are user-initiated through Client.Retry.
type Option func(pipz.Chainable[*Call]) pipz.Chainable[*Call]

// WithTimeout adds a tighter time bound to the pipeline.
// The client's default timeouts still apply, so this can only shorten them.
func WithTimeout(duration time.Duration) Option {
	return func(pipeline pipz.Chainable[*Call]) pipz.Chainable[*Call] {
		return pipz.NewTimeout("timeout", pipeline, duration)
	}
}

// WithCircuitBreaker adds circuit breaker protection to the pipeline.
// After 'failures' consecutive failures, the circuit opens for 'recovery' duration.
func WithCircuitBreaker(failures int, recovery time.Duration) Option {
	return func(pipeline pipz.Chainable[*Call]) pipz.Chainable[*Call] {
		return pipz.NewCircuitBreaker("circuit-breaker", pipeline, failures, recovery)
	}
}

// WithRateLimit adds client-side rate limiting to the pipeline.
// rps = requests per second, burst = burst capacity.
func WithRateLimit(rps float64, burst int) Option {
	return func(pipeline pipz.Chainable[*Call]) pipz.Chainable[*Call] {
		rateLimiter := pipz.NewRateLimiter[*Call]("rate-limit", rps, burst)
		return pipz.NewSequence("rate-limited", rateLimiter, pipeline)
	}
}

// WithErrorHandler adds error handling to the pipeline.
// The handler sees transport failures only; status and validation failures
// are decided after the pipeline returns.
func WithErrorHandler(handler pipz.Chainable[*pipz.Error[*Call]]) Option {
	return func(pipeline pipz.Chainable[*Call]) pipz.Chainable[*Call] {
		return pipz.NewHandle("error-handler", pipeline, handler)
	}
}

// WithDebug prints each request body and raw proxy response.
func WithDebug() Option {
	return func(pipeline pipz.Chainable[*Call]) pipz.Chainable[*Call] {
		return pipz.Apply("debug", func(ctx context.Context, call *Call) (*Call, error) {
			fmt.Printf("\n=== DEBUG: POST %s ===\n", call.Route)
			fmt.Println(string(call.Body))
			fmt.Println("=====================")

			processed, err := pipeline.Process(ctx, call)
			if err != nil {
				fmt.Printf("\n=== DEBUG: Error ===\n%v\n==================\n\n", err)
				return processed, err
			}

			fmt.Printf("\n=== DEBUG: Response (%d) ===\n", processed.StatusCode)
			fmt.Println(string(processed.Response))
			fmt.Println("===========================")

			return processed, nil
		})
	}
}
