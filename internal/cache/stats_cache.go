package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// StatsCache caches MatchAttemptStore.Stats for a short TTL. Inserts and
// history reads go straight to the store.
type StatsCache struct {
	matching.MatchAttemptStore
	client RedisClientInterface
	ttl    time.Duration
	stats  counters
}

func NewStatsCache(store matching.MatchAttemptStore, client RedisClientInterface, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &StatsCache{MatchAttemptStore: store, client: client, ttl: ttl}
}

func (c *StatsCache) Stats(ctx context.Context, since time.Time) (*matching.MatchStats, error) {
	raw, err := c.client.Get(ctx, statsKey(since)).Bytes()
	switch {
	case err == nil:
		var stats matching.MatchStats
		if jerr := json.Unmarshal(raw, &stats); jerr == nil {
			c.stats.hits.Add(1)
			return &stats, nil
		}
		c.stats.errors.Add(1)
	case errors.Is(err, redis.Nil):
		c.stats.misses.Add(1)
	default:
		c.stats.errors.Add(1)
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation": "cache_get_stats",
			"service":   "cache",
		}).WithError(err).Warn("Stats cache unavailable, using store")
	}

	return c.Refresh(ctx, since)
}

// Refresh recomputes stats from the store and overwrites the cached value.
func (c *StatsCache) Refresh(ctx context.Context, since time.Time) (*matching.MatchStats, error) {
	stats, err := c.MatchAttemptStore.Stats(ctx, since)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(stats)
	if err == nil {
		err = c.client.Set(ctx, statsKey(since), data, c.ttl).Err()
	}
	if err != nil {
		c.stats.errors.Add(1)
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation": "cache_set_stats",
			"service":   "cache",
		}).WithError(err).Warn("Failed to cache match stats")
		return stats, nil
	}
	c.stats.sets.Add(1)
	return stats, nil
}

// Counters returns hit and miss counters since construction.
func (c *StatsCache) Counters() CacheStats {
	return c.stats.snapshot()
}

var _ matching.MatchAttemptStore = (*StatsCache)(nil)
