// Package main provides the entry point for the ops-worker server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kneutral-org/ops-worker/internal/config"
	"github.com/kneutral-org/ops-worker/internal/jobs"
	"github.com/kneutral-org/ops-worker/internal/lock"
	"github.com/kneutral-org/ops-worker/internal/logapi"
	"github.com/kneutral-org/ops-worker/internal/logging"
	"github.com/kneutral-org/ops-worker/internal/logstore"
	"github.com/kneutral-org/ops-worker/internal/metrics"
)

const serviceName = "ops-worker"

func main() {
	cfg := config.Load()

	logger := logging.NewLogger(serviceName, cfg.LogLevel)
	if cfg.LogPretty {
		logger = logging.NewPrettyLogger(serviceName, cfg.LogLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore := newLogStore(ctx, cfg, logger)
	defer closeStore()

	guard, err := lock.NewGuardFromConfig(cfg.Lock, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", string(cfg.Lock.Backend)).Msg("invalid lock configuration")
	}

	runner := jobs.NewRunner(guard, logger, jobs.WithRunRecorder(store))
	if cfg.RetentionInterval > 0 {
		if err := runner.Register(jobs.RetentionJob(store, cfg.RetentionInterval, cfg.RetentionMaxAge)); err != nil {
			logger.Fatal().Err(err).Msg("failed to register retention job")
		}
	}
	runner.Start(ctx)

	// Setup Gin router
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"lockBackend": string(cfg.Lock.Backend),
			"lockEnabled": guard.Configured(),
		})
	})
	metrics.RegisterMetricsEndpointWithPath(router, cfg.MetricsPath)

	logsHandler := logapi.NewHandler(store, logger)
	logsHandler.RegisterRoutes(&router.RouterGroup)
	logsHandler.RegisterRoutes(router.Group("/api/v1"))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Cancels in-flight runs; Stop returns once their locks are released.
	cancel()
	runner.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited properly")
}

// newLogStore connects to PostgreSQL when configured and falls back to memory.
func newLogStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (logstore.Store, func()) {
	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory log store")
		return logstore.NewInMemoryStore(), func() {}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := logstore.Open(connectCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to log database")
	}

	return logstore.NewPostgresStore(db), func() {
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close log database")
		}
	}
}
