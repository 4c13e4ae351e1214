// @title Belief Engine API
// @version 1.0
// @description Bayesian forecasts, feature predictors and news sentiment.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/belief-engine/internal/app"
	"github.com/ZanzyTHEbar/belief-engine/internal/config"
	"github.com/ZanzyTHEbar/belief-engine/internal/monitoring"
	"github.com/ZanzyTHEbar/belief-engine/internal/ratelimit"
	"github.com/ZanzyTHEbar/belief-engine/internal/security"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load(getEnvOrDefault("CONFIG_PATH", "config.yaml"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := monitoring.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger.Logger)
	slog.Info("Configuration loaded", "config", cfg.Redacted())

	a, err := app.New(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	limiter := ratelimit.NewRateLimiter(a.Redis, ratelimit.Config{
		PerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:     cfg.RateLimit.Burst,
	}, a.Metrics)
	defer limiter.Close()

	auth := security.NewAuthenticator(cfg.Auth.JWTSecret)
	if !auth.Enabled() {
		slog.Warn("JWT_SECRET not set, mutating routes are unauthenticated")
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := setupRouter(a, limiter, auth)

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
