// Package logging configures slog for the binaries and forwards the library's
// capitan events into it.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/reprompt"
)

// Setup installs the default slog logger. Production writes JSON, anything
// else writes text at debug level.
func Setup(w io.Writer, production bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if production {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

var stringFields = []struct {
	name string
	from func(*capitan.Event) (string, bool)
}{
	{"request_id", reprompt.RequestIDKey.From},
	{"session_id", reprompt.SessionIDKey.From},
	{"route", reprompt.RouteKey.From},
	{"transport", reprompt.TransportKey.From},
	{"provider", reprompt.ProviderKey.From},
	{"model", reprompt.ModelKey.From},
	{"error_code", reprompt.ErrorCodeKey.From},
	{"error", reprompt.ErrorKey.From},
	{"client_ip", reprompt.ClientIPKey.From},
	{"origin", reprompt.OriginKey.From},
}

var intFields = []struct {
	name string
	from func(*capitan.Event) (int, bool)
}{
	{"generation", reprompt.GenerationKey.From},
	{"status", reprompt.HTTPStatusCodeKey.From},
	{"duration_ms", reprompt.DurationMsKey.From},
	{"prompt_tokens", reprompt.PromptTokensKey.From},
	{"completion_tokens", reprompt.CompletionTokensKey.From},
}

// Bridge logs every capitan event through logger until the returned func is
// called. Prompt text and raw responses are never logged.
func Bridge(logger *slog.Logger) func() {
	observer := capitan.Observe(func(ctx context.Context, e *capitan.Event) {
		signal := string(e.Signal())

		attrs := make([]any, 0, 2*(len(stringFields)+len(intFields)))
		for _, f := range stringFields {
			if v, ok := f.from(e); ok && v != "" {
				attrs = append(attrs, f.name, v)
			}
		}
		for _, f := range intFields {
			if v, ok := f.from(e); ok {
				attrs = append(attrs, f.name, v)
			}
		}

		logger.Log(ctx, Level(signal), signal, attrs...)
	})

	return func() {
		observer.Close()
	}
}

// Level picks the slog level for a signal name.
func Level(signal string) slog.Level {
	switch {
	case strings.HasSuffix(signal, ".failed"), strings.HasSuffix(signal, ".rejected"):
		return slog.LevelError
	case strings.HasSuffix(signal, ".superseded"):
		return slog.LevelWarn
	case strings.HasSuffix(signal, ".started"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
