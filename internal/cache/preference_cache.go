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

// PreferenceCache is a read-through Redis cache in front of a
// PreferenceStore. Only stored records are cached, never defaults. Redis
// failures are logged and the call falls through to the store.
type PreferenceCache struct {
	store  matching.PreferenceStore
	client RedisClientInterface
	ttl    time.Duration
	stats  counters
}

func NewPreferenceCache(store matching.PreferenceStore, client RedisClientInterface, ttl time.Duration) *PreferenceCache {
	if ttl <= 0 {
		ttl = DefaultPreferenceTTL
	}
	return &PreferenceCache{store: store, client: client, ttl: ttl}
}

func (c *PreferenceCache) Get(ctx context.Context, userID string) (*matching.MatchingPreferences, error) {
	raw, err := c.client.Get(ctx, preferenceKey(userID)).Bytes()
	switch {
	case err == nil:
		if prefs, ok := c.decode(ctx, userID, raw); ok {
			c.stats.hits.Add(1)
			return prefs, nil
		}
	case errors.Is(err, redis.Nil):
		c.stats.misses.Add(1)
	default:
		c.readFailed(ctx, "cache_get_preferences", err)
	}

	prefs, err := c.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !prefs.CreatedAt.IsZero() {
		c.set(ctx, prefs)
	}
	return prefs, nil
}

func (c *PreferenceCache) GetMany(ctx context.Context, userIDs []string) (map[string]*matching.MatchingPreferences, error) {
	out := make(map[string]*matching.MatchingPreferences, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = preferenceKey(id)
	}

	missing := userIDs
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.readFailed(ctx, "cache_get_many_preferences", err)
	} else {
		missing = make([]string, 0, len(userIDs))
		for i, v := range values {
			id := userIDs[i]
			s, ok := v.(string)
			if !ok {
				c.stats.misses.Add(1)
				missing = append(missing, id)
				continue
			}
			prefs, ok := c.decode(ctx, id, []byte(s))
			if !ok {
				missing = append(missing, id)
				continue
			}
			c.stats.hits.Add(1)
			out[id] = prefs
		}
	}

	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.store.GetMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, prefs := range loaded {
		out[id] = prefs
		c.set(ctx, prefs)
	}
	return out, nil
}

// Upsert writes through the store and drops the cached copy.
func (c *PreferenceCache) Upsert(ctx context.Context, userID string, mutate func(*matching.MatchingPreferences) error) (*matching.MatchingPreferences, error) {
	saved, err := c.store.Upsert(ctx, userID, mutate)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, userID)
	return saved, nil
}

// Stats returns hit and miss counters since construction.
func (c *PreferenceCache) Stats() CacheStats {
	return c.stats.snapshot()
}

func (c *PreferenceCache) decode(ctx context.Context, userID string, raw []byte) (*matching.MatchingPreferences, bool) {
	prefs := matching.DefaultPreferences(userID)
	if err := json.Unmarshal(raw, prefs); err != nil {
		c.readFailed(ctx, "cache_decode_preferences", err)
		c.invalidate(ctx, userID)
		return nil, false
	}
	prefs.UserID = userID
	return prefs, true
}

func (c *PreferenceCache) set(ctx context.Context, prefs *matching.MatchingPreferences) {
	data, err := json.Marshal(prefs)
	if err != nil {
		c.readFailed(ctx, "cache_encode_preferences", err)
		return
	}
	if err := c.client.Set(ctx, preferenceKey(prefs.UserID), data, c.ttl).Err(); err != nil {
		c.readFailed(ctx, "cache_set_preferences", err)
		return
	}
	c.stats.sets.Add(1)
}

func (c *PreferenceCache) invalidate(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, preferenceKey(userID)).Err(); err != nil {
		// a stale entry lives until its TTL
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation": "cache_invalidate_preferences",
			"service":   "cache",
			"user_id":   userID,
		}).WithError(err).Error("Failed to invalidate cached preferences")
		c.stats.errors.Add(1)
		return
	}
	c.stats.deletes.Add(1)
}

func (c *PreferenceCache) readFailed(ctx context.Context, operation string, err error) {
	c.stats.errors.Add(1)
	telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": operation,
		"service":   "cache",
	}).WithError(err).Warn("Preference cache unavailable, using store")
}

var _ matching.PreferenceStore = (*PreferenceCache)(nil)
