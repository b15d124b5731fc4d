package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/memstore"
)

// RedisContainer manages a Redis test container
type RedisContainer struct {
	container testcontainers.Container
	config    RedisConfig
}

// StartRedisContainer starts a Redis container for testing
func StartRedisContainer(ctx context.Context) (*RedisContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}

	mappedPort, err := container.MappedPort(ctx, "6379")
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(mappedPort.Port())
	if err != nil {
		return nil, err
	}

	cfg := DefaultRedisConfig()
	cfg.Enabled = true
	cfg.Host = host
	cfg.Port = port
	cfg.Instrumented = false

	return &RedisContainer{container: container, config: cfg}, nil
}

// Stop terminates the Redis container
func (rc *RedisContainer) Stop(ctx context.Context) error {
	return rc.container.Terminate(ctx)
}

// TestRedisIntegration tests the caches against a real Redis instance
func TestRedisIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	redisContainer, err := StartRedisContainer(ctx)
	require.NoError(t, err)
	defer redisContainer.Stop(ctx)

	client, err := NewRedisClient(ctx, redisContainer.config)
	require.NoError(t, err)
	defer client.Close()

	t.Run("PreferenceReadThrough", func(t *testing.T) {
		store := memstore.NewPreferenceStore(nil)
		c := NewPreferenceCache(store, client, time.Minute)

		_, err := c.Upsert(ctx, "alice", func(p *matching.MatchingPreferences) error {
			p.MinAge = 28
			p.Interests = matching.NewTagSet("climbing")
			return nil
		})
		require.NoError(t, err)

		first, err := c.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 28, first.MinAge)

		second, err := c.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, first.Interests, second.Interests)

		stats := c.Stats()
		assert.Equal(t, int64(1), stats.Misses)
		assert.Equal(t, int64(1), stats.Hits)
	})

	t.Run("UpsertInvalidates", func(t *testing.T) {
		store := memstore.NewPreferenceStore(nil)
		c := NewPreferenceCache(store, client, time.Minute)

		_, err := c.Upsert(ctx, "bob", func(p *matching.MatchingPreferences) error {
			p.MaxAge = 40
			return nil
		})
		require.NoError(t, err)
		_, err = c.Get(ctx, "bob")
		require.NoError(t, err)

		_, err = c.Upsert(ctx, "bob", func(p *matching.MatchingPreferences) error {
			p.MaxAge = 45
			return nil
		})
		require.NoError(t, err)

		got, err := c.Get(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, 45, got.MaxAge)
	})

	t.Run("GetManyBatches", func(t *testing.T) {
		store := memstore.NewPreferenceStore(nil)
		c := NewPreferenceCache(store, client, time.Minute)
		for _, id := range []string{"m1", "m2", "m3"} {
			_, err := store.Upsert(ctx, id, func(*matching.MatchingPreferences) error { return nil })
			require.NoError(t, err)
		}

		_, err := c.Get(ctx, "m1")
		require.NoError(t, err)

		got, err := c.GetMany(ctx, []string{"m1", "m2", "m3", "absent"})
		require.NoError(t, err)
		assert.Len(t, got, 3)

		again, err := c.GetMany(ctx, []string{"m1", "m2", "m3"})
		require.NoError(t, err)
		assert.Len(t, again, 3)
		assert.Equal(t, int64(4), c.Stats().Hits)
	})

	t.Run("StatsExpire", func(t *testing.T) {
		attempts := memstore.NewAttemptStore()
		c := NewStatsCache(attempts, client, time.Second)
		since := time.Now().UTC().Truncate(24 * time.Hour)

		stats, err := c.Stats(ctx, since)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.TotalMatches)

		require.NoError(t, attempts.Insert(ctx, &matching.MatchAttempt{ID: "x", CreatedAt: time.Now()}))

		cached, err := c.Stats(ctx, since)
		require.NoError(t, err)
		assert.Equal(t, int64(0), cached.TotalMatches, "served from cache")

		time.Sleep(1500 * time.Millisecond)
		fresh, err := c.Stats(ctx, since)
		require.NoError(t, err)
		assert.Equal(t, int64(1), fresh.TotalMatches)
	})
}
