package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/meetsmatch/matchqueue/internal/config"
	"github.com/meetsmatch/matchqueue/internal/httpserver"
	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/middleware"
	"github.com/meetsmatch/matchqueue/internal/monitoring"
	"github.com/meetsmatch/matchqueue/internal/services"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the matching HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg := rt.cfg

	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "serve",
		"service":   cfg.Telemetry.ServiceName,
		"storage":   cfg.Matching.StorageDriver,
	})

	st, err := rt.openStores(ctx)
	if err != nil {
		return err
	}
	if err := rt.observeStorage(st); err != nil {
		return err
	}

	deps, err := buildDependencies(cfg, st)
	if err != nil {
		return err
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpserver.NewRouter(deps)
	if err := router.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return fmt.Errorf("invalid http.trusted_proxies: %w", err)
	}
	server := httpserver.NewServer(cfg.HTTP, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("HTTP server stopped with error")
		return err
	}
	logger.Info("HTTP server exited")
	return nil
}

// buildDependencies assembles the ranker, services and HTTP collaborators
// over the opened stores.
func buildDependencies(cfg *config.Config, st *stores) (httpserver.Dependencies, error) {
	meterProvider := otel.GetMeterProvider()

	instrumentation, err := monitoring.NewMatchingInstrumentation(meterProvider)
	if err != nil {
		return httpserver.Dependencies{}, fmt.Errorf("failed to create matching instrumentation: %w", err)
	}
	httpMetrics, err := monitoring.NewHTTPMetrics(meterProvider)
	if err != nil {
		return httpserver.Dependencies{}, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	ranker := matching.NewMatchRanker(st.preferences, st.queue, st.attempts, matching.RankerConfig{
		ScoringConcurrency: cfg.Matching.ScoringConcurrency,
		StoreTimeout:       cfg.Matching.StoreTimeout,
		LoaderBatchSize:    cfg.Matching.LoaderBatchSize,
		Scorer:             matching.NewScorer(cfg.Matching.PremiumBonus),
		Observer:           instrumentation,
	})

	health := monitoring.NewHealthChecker(cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion, 10*time.Second)
	if st.db != nil {
		health.RegisterDatabaseCheck("database", st.db)
	}
	if st.redis != nil {
		health.RegisterRedisCheck("redis", st.redis, func() interface{} {
			prefStats, statsStats := st.prefCache.Stats(), st.statsCache.Counters()
			return map[string]interface{}{
				"preferences":          prefStats,
				"preferences_hit_rate": prefStats.HitRate(),
				"stats":                statsStats,
				"stats_hit_rate":       statsStats.HitRate(),
			}
		})
	}

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimit.RequestsPerSecond, cfg.HTTP.RateLimit.Burst, middleware.ClientIPKey)
	}

	return httpserver.Dependencies{
		ServiceName: cfg.Telemetry.ServiceName,
		Preferences: services.NewPreferenceService(st.preferences, cfg.Matching.StoreTimeout),
		Matches: services.NewMatchService(ranker, st.attempts, services.MatchServiceConfig{
			DefaultMaxMatches: cfg.Matching.DefaultMaxMatches,
			HistoryPageSize:   cfg.Matching.HistoryPageSize,
			StoreTimeout:      cfg.Matching.StoreTimeout,
		}),
		Queue:       services.NewQueueService(st.queue, cfg.Matching.StoreTimeout),
		Health:      health,
		Metrics:     httpMetrics,
		RateLimiter: limiter,
	}, nil
}
