// Command reprompt-proxy serves the edge proxy for the prompt-improvement
// pipeline.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "go.uber.org/automaxprocs"

	"github.com/zoobzio/reprompt/internal/logging"
	"github.com/zoobzio/reprompt/proxy"
)

func main() {
	ctx := context.Background()

	cfg, err := LoadConfig()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(os.Stdout, cfg.IsProduction())
	stopBridge := logging.Bridge(logger)
	defer stopBridge()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := proxy.New(cfg.ProxyConfig()).Router()
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "proxy starting",
			"port", cfg.Port,
			"provider", cfg.Provider,
			"env", cfg.Env,
			"allowed_origins", cfg.AllowedOrigins,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}
