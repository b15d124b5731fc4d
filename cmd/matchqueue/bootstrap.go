package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"

	"github.com/meetsmatch/matchqueue/internal/cache"
	"github.com/meetsmatch/matchqueue/internal/config"
	"github.com/meetsmatch/matchqueue/internal/database"
	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/memstore"
	"github.com/meetsmatch/matchqueue/internal/monitoring"
	"github.com/meetsmatch/matchqueue/internal/sentry"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// runtime carries the process-wide handles shared by the subcommands.
type runtime struct {
	cfg      *config.Config
	cleanups []func()
}

// bootstrap loads configuration and starts logging, tracing and error
// reporting. Callers must defer close.
func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if err := telemetry.InitGlobalLogger(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	rt := &runtime{cfg: cfg}

	shutdownOtel, err := telemetry.InitializeOpenTelemetry(ctx, &cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	rt.onClose(shutdownOtel)

	if err := sentry.Init(cfg.Sentry); err != nil {
		telemetry.GetContextualLogger(ctx).WithField("operation", "sentry_init").
			WithError(err).Warn("Sentry disabled")
	} else {
		rt.onClose(func() { sentry.Flush(2 * time.Second) })
	}
	return rt, nil
}

func (rt *runtime) onClose(fn func()) {
	rt.cleanups = append(rt.cleanups, fn)
}

// close runs cleanups in reverse registration order.
func (rt *runtime) close() {
	for i := len(rt.cleanups) - 1; i >= 0; i-- {
		rt.cleanups[i]()
	}
}

// stores is the storage layer chosen by matching.storage_driver, optionally
// fronted by the Redis caches.
type stores struct {
	db          *database.DB
	redis       *redis.Client
	preferences matching.PreferenceStore
	queue       matching.QueueStore
	attempts    matching.MatchAttemptStore
	prefCache   *cache.PreferenceCache
	statsCache  *cache.StatsCache
}

func (rt *runtime) openStores(ctx context.Context) (*stores, error) {
	cfg := rt.cfg
	s := &stores{}

	switch cfg.Matching.StorageDriver {
	case config.StorageDriverMemory:
		s.preferences = memstore.NewPreferenceStore(nil)
		s.queue = memstore.NewQueueStore(nil)
		s.attempts = memstore.NewAttemptStore()
	case config.StorageDriverPostgres:
		db, err := database.NewConnection(ctx, cfg.Database)
		if err != nil {
			return nil, apperrors.NewDatabaseError("connect", err)
		}
		rt.onClose(func() { _ = db.Close() })
		s.db = db
		s.preferences = database.NewPreferenceStore(db)
		s.queue = database.NewQueueStore(db)
		s.attempts = database.NewAttemptStore(db)
	default:
		return nil, apperrors.NewConfigurationError("matching.storage_driver",
			"unknown storage driver "+cfg.Matching.StorageDriver)
	}

	if !cfg.Redis.Enabled {
		return s, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	rt.onClose(func() { _ = client.Close() })
	s.redis = client
	s.prefCache = cache.NewPreferenceCache(s.preferences, client, cfg.Redis.PreferenceTTL)
	s.statsCache = cache.NewStatsCache(s.attempts, client, cfg.Redis.StatsTTL)
	s.preferences = s.prefCache
	s.attempts = s.statsCache
	return s, nil
}

// observeStorage exports pool and cache counters for the opened stores.
func (rt *runtime) observeStorage(st *stores) error {
	inst, err := monitoring.NewStorageInstrumentation(otel.GetMeterProvider())
	if err != nil {
		return err
	}
	rt.onClose(func() { _ = inst.Close() })

	if st.db != nil {
		if err := inst.ObserveDatabasePool("primary", st.db); err != nil {
			return err
		}
	}
	if st.prefCache != nil {
		if err := inst.ObserveCache("preferences", st.prefCache.Stats); err != nil {
			return err
		}
	}
	if st.statsCache != nil {
		if err := inst.ObserveCache("stats", st.statsCache.Counters); err != nil {
			return err
		}
	}
	return nil
}
