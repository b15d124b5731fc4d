package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	PoolSize      int           `mapstructure:"pool_size"`
	Instrumented  bool          `mapstructure:"instrumented"`
	PreferenceTTL time.Duration `mapstructure:"preference_ttl"`
	StatsTTL      time.Duration `mapstructure:"stats_ttl"`
}

// Default TTL values
const (
	DefaultPreferenceTTL = 30 * time.Minute
	DefaultStatsTTL      = 5 * time.Minute
)

// DefaultRedisConfig returns the local development settings; the cache is
// off unless enabled.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:          "localhost",
		Port:          6379,
		PoolSize:      10,
		Instrumented:  true,
		PreferenceTTL: DefaultPreferenceTTL,
		StatsTTL:      DefaultStatsTTL,
	}
}

// Addr is host:port for the client options.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisClientInterface is the subset of the Redis client the caches use
type RedisClientInterface interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// NewRedisClient connects and pings Redis, adding the tracing hook when
// instrumentation is on.
func NewRedisClient(ctx context.Context, config RedisConfig) (*redis.Client, error) {
	ctx = telemetry.WithCorrelationID(ctx, telemetry.NewCorrelationID())
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":    "redis_connection",
		"service":      "cache",
		"host":         config.Host,
		"port":         config.Port,
		"db":           config.DB,
		"pool_size":    config.PoolSize,
		"instrumented": config.Instrumented,
	})

	logger.Info("Establishing Redis connection")

	client := redis.NewClient(&redis.Options{
		Addr:       config.Addr(),
		Password:   config.Password,
		DB:         config.DB,
		PoolSize:   config.PoolSize,
		MaxRetries: 3,
	})

	if config.Instrumented {
		telemetry.InstrumentRedisClient(client)
		logger.Debug("OpenTelemetry tracing hook added to Redis client")
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.WithError(err).Error("Failed to connect to Redis")
		return nil, apperrors.NewCacheError("connect", err)
	}

	logger.Info("Redis connected successfully")
	return client, nil
}

// CacheStats holds cache performance counters
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
	Errors  int64 `json:"errors"`
}

// HitRate calculates the cache hit rate
func (cs CacheStats) HitRate() float64 {
	total := cs.Hits + cs.Misses
	if total == 0 {
		return 0.0
	}
	return float64(cs.Hits) / float64(total)
}

type counters struct {
	hits, misses, sets, deletes, errors atomic.Int64
}

func (c *counters) snapshot() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Sets:    c.sets.Load(),
		Deletes: c.deletes.Load(),
		Errors:  c.errors.Load(),
	}
}

func preferenceKey(userID string) string {
	return "prefs:" + userID
}

func statsKey(since time.Time) string {
	return "stats:matches:" + since.UTC().Format(time.RFC3339)
}
