package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/opencanvass/canvassd/pkg/api"
	"github.com/opencanvass/canvassd/pkg/audit"
	"github.com/opencanvass/canvassd/pkg/auth"
	"github.com/opencanvass/canvassd/pkg/config"
	"github.com/opencanvass/canvassd/pkg/gate"
	"github.com/opencanvass/canvassd/pkg/httputil"
	"github.com/opencanvass/canvassd/pkg/middleware"
	"github.com/opencanvass/canvassd/pkg/observability"
	"github.com/opencanvass/canvassd/pkg/schema"
	"github.com/opencanvass/canvassd/pkg/store"
)

const sweepSchedule = "@every 1m"

func main() {
	// Local development convenience; missing .env is not an error
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	st := store.NewMemory()
	if metrics != nil {
		st.SetObserver(metrics.ObserveStoreOperation)
	}
	if cfg.Store.SnapshotDir != "" {
		if err := st.LoadSnapshot(cfg.Store.SnapshotDir); err != nil {
			logger.WithError(err).Error("snapshot load failed")
			os.Exit(1)
		}
		defer func() {
			if err := st.SaveSnapshot(cfg.Store.SnapshotDir); err != nil {
				logger.WithError(err).Error("snapshot save failed")
			}
		}()
	}

	if err := seed(context.Background(), st, cfg, logger); err != nil {
		logger.WithError(err).Error("seeding failed")
		os.Exit(1)
	}

	trail := audit.NewStoreTrail(st, logger)

	tokens := auth.NewManager(cfg.Auth.TokenSecret, cfg.Auth.WebTokenTTL, cfg.Auth.MobileTokenTTL)
	g := gate.New(tokens, gate.NewStoreRoleSource(st), metrics)
	if cfg.Auth.Disabled {
		logger.Warn("access control is DISABLED; every request runs as the administrator")
		g.Disable()
	}

	server := api.NewServer(api.Options{
		Store:       st,
		Registry:    schema.BuildRegistry(),
		Gate:        g,
		Tokens:      tokens,
		Trail:       trail,
		Logger:      logger,
		Metrics:     metrics,
		Development: cfg.Development,
	})

	handler := buildHandler(server, cfg, logger, metrics)

	sweeper, err := api.NewSweeper(st, trail, logger, sweepSchedule)
	if err != nil {
		logger.WithError(err).Error("sweeper setup failed")
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	case sig := <-stop:
		logger.WithField("signal", sig.String()).Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("graceful shutdown failed")
			os.Exit(1)
		}
	}
	logger.Info("server stopped")
}

// buildHandler wraps the API server in the ambient middleware stack
func buildHandler(server *api.Server, cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) http.Handler {
	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger, cfg.Development),
		httputil.CORSMiddleware(cfg.Server.CORSOrigins),
		httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes),
	}
	if metrics != nil {
		chain = append(chain, metrics.Middleware)
	}
	if cfg.RateLimit.Enabled {
		chain = append(chain, rateLimiter(cfg, logger))
	}
	return httputil.Chain(chain...)(server)
}

// rateLimiter picks the Redis-backed limiter when Redis is configured,
// falling back to the in-process one
func rateLimiter(cfg *config.Config, logger *observability.Logger) func(http.Handler) http.Handler {
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		WindowDuration:    cfg.RateLimit.WindowDuration,
		BurstSize:         cfg.RateLimit.BurstSize,
	}

	if cfg.RateLimit.RedisURL != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisURL,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		logger.WithField("redis", cfg.RateLimit.RedisURL).Info("using distributed rate limiting")
		return middleware.NewDistributedRateLimitMiddleware(client).Handler
	}
	return middleware.NewRateLimiter(limits).Handler
}
