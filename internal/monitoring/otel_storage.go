package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/meetsmatch/matchqueue/internal/cache"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// StorageInstrumentation exports connection pool and cache counters as
// observable instruments, read on each collection.
type StorageInstrumentation struct {
	meter metric.Meter

	poolConnections metric.Int64ObservableGauge
	poolWaits       metric.Int64ObservableCounter
	cacheOperations metric.Int64ObservableCounter

	mu            sync.Mutex
	registrations []metric.Registration
}

// NewStorageInstrumentation creates the storage instruments on provider, or
// on the global provider when provider is nil.
func NewStorageInstrumentation(provider metric.MeterProvider) (*StorageInstrumentation, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(telemetry.InstrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	poolConnections, err := meter.Int64ObservableGauge(
		"db_pool_connections",
		metric.WithDescription("Database pool connections by state"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db_pool_connections gauge: %w", err)
	}

	poolWaits, err := meter.Int64ObservableCounter(
		"db_pool_wait_total",
		metric.WithDescription("Total number of connections waited for"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db_pool_wait_total counter: %w", err)
	}

	cacheOperations, err := meter.Int64ObservableCounter(
		"cache_operations_total",
		metric.WithDescription("Total number of cache operations by result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_operations_total counter: %w", err)
	}

	return &StorageInstrumentation{
		meter:           meter,
		poolConnections: poolConnections,
		poolWaits:       poolWaits,
		cacheOperations: cacheOperations,
	}, nil
}

// ObserveDatabasePool reports db's pool statistics under name.
func (s *StorageInstrumentation) ObserveDatabasePool(name string, db DatabasePinger) error {
	system := attribute.String("db.system", "postgresql")
	pool := attribute.String("pool", name)

	reg, err := s.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := db.Stats()
		o.ObserveInt64(s.poolConnections, int64(stats.InUse),
			metric.WithAttributes(system, pool, attribute.String("state", "in_use")))
		o.ObserveInt64(s.poolConnections, int64(stats.Idle),
			metric.WithAttributes(system, pool, attribute.String("state", "idle")))
		o.ObserveInt64(s.poolConnections, int64(stats.OpenConnections),
			metric.WithAttributes(system, pool, attribute.String("state", "open")))
		o.ObserveInt64(s.poolWaits, stats.WaitCount, metric.WithAttributes(system, pool))
		return nil
	}, s.poolConnections, s.poolWaits)
	if err != nil {
		return fmt.Errorf("failed to observe database pool %s: %w", name, err)
	}
	s.track(reg)
	return nil
}

// ObserveCache reports the counters returned by snapshot under name.
func (s *StorageInstrumentation) ObserveCache(name string, snapshot func() cache.CacheStats) error {
	cacheName := attribute.String("cache", name)
	observe := func(o metric.Observer, result string, value int64) {
		o.ObserveInt64(s.cacheOperations, value,
			metric.WithAttributes(cacheName, attribute.String("result", result)))
	}

	reg, err := s.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := snapshot()
		observe(o, "hit", stats.Hits)
		observe(o, "miss", stats.Misses)
		observe(o, "set", stats.Sets)
		observe(o, "delete", stats.Deletes)
		observe(o, "error", stats.Errors)
		return nil
	}, s.cacheOperations)
	if err != nil {
		return fmt.Errorf("failed to observe cache %s: %w", name, err)
	}
	s.track(reg)
	return nil
}

func (s *StorageInstrumentation) track(reg metric.Registration) {
	s.mu.Lock()
	s.registrations = append(s.registrations, reg)
	s.mu.Unlock()
}

// Close stops every observation registered so far.
func (s *StorageInstrumentation) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, reg := range s.registrations {
		if err := reg.Unregister(); err != nil {
			errs = append(errs, err)
		}
	}
	s.registrations = nil
	return errors.Join(errs...)
}
