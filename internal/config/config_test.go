package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, StorageDriverPostgres, cfg.Matching.StorageDriver)
	assert.Equal(t, matching.DefaultScoringConcurrency, cfg.Matching.ScoringConcurrency)
	assert.Equal(t, matching.DefaultStoreTimeout, cfg.Matching.StoreTimeout)
	assert.Equal(t, 10, cfg.Matching.DefaultMaxMatches)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, telemetry.InfoLevel, cfg.Log.Level)
	assert.Equal(t, "development", cfg.Telemetry.Environment)
	assert.Equal(t, "development", cfg.Sentry.Environment)
	assert.Equal(t, []string{"default"}, cfg.Worker.Queues)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MATCHQUEUE_ENVIRONMENT", "production")
	t.Setenv("MATCHQUEUE_DATABASE_HOST", "db.internal")
	t.Setenv("MATCHQUEUE_DATABASE_PORT", "6543")
	t.Setenv("MATCHQUEUE_MATCHING_STORE_TIMEOUT", "750ms")
	t.Setenv("MATCHQUEUE_REDIS_ENABLED", "true")
	t.Setenv("MATCHQUEUE_WORKER_QUEUES", "critical,default")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Matching.StoreTimeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"critical", "default"}, cfg.Worker.Queues)
	assert.Equal(t, "production", cfg.Telemetry.Environment)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MATCHQUEUE_HTTP_ADDR=:9191\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MATCHQUEUE_HTTP_ADDR") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9191", cfg.HTTP.Addr)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "matchqueue.yaml")
	content := `
environment: staging
matching:
  storage_driver: memory
  scoring_concurrency: 4
  premium_bonus: 0.02
http:
  rate_limit:
    requests_per_second: 2
    burst: 3
worker:
  queue_stale_after: 2h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, StorageDriverMemory, cfg.Matching.StorageDriver)
	assert.Equal(t, 4, cfg.Matching.ScoringConcurrency)
	assert.InDelta(t, 0.02, cfg.Matching.PremiumBonus, 1e-9)
	assert.Equal(t, 2.0, cfg.HTTP.RateLimit.RequestsPerSecond)
	assert.Equal(t, 3, cfg.HTTP.RateLimit.Burst)
	assert.Equal(t, 2*time.Hour, cfg.Worker.QueueStaleAfter)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfiguration))
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"empty addr", func(c *Config) { c.HTTP.Addr = "" }, "http.addr"},
		{"zero shutdown timeout", func(c *Config) { c.HTTP.ShutdownTimeout = 0 }, "http.shutdown_timeout"},
		{"zero rate", func(c *Config) { c.HTTP.RateLimit.RequestsPerSecond = 0 }, "http.rate_limit"},
		{"unknown driver", func(c *Config) { c.Matching.StorageDriver = "sqlite" }, "matching.storage_driver"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database"},
		{"bad db port", func(c *Config) { c.Database.Port = 70000 }, "database.port"},
		{"zero concurrency", func(c *Config) { c.Matching.ScoringConcurrency = 0 }, "matching.scoring_concurrency"},
		{"zero store timeout", func(c *Config) { c.Matching.StoreTimeout = 0 }, "matching.store_timeout"},
		{"premium above cap", func(c *Config) { c.Matching.PremiumBonus = 0.2 }, "matching.premium_bonus"},
		{"max matches above limit", func(c *Config) { c.Matching.DefaultMaxMatches = 101 }, "matching.default_max_matches"},
		{"zero history page", func(c *Config) { c.Matching.HistoryPageSize = 0 }, "matching.history_page_size"},
		{"redis without host", func(c *Config) { c.Redis.Enabled = true; c.Redis.Host = "" }, "redis"},
		{"unknown log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"sentry without dsn", func(c *Config) { c.Sentry.Enabled = true }, "sentry.dsn"},
		{"zero worker concurrency", func(c *Config) { c.Worker.Concurrency = 0 }, "worker.concurrency"},
		{"zero stale window", func(c *Config) { c.Worker.QueueStaleAfter = 0 }, "worker.queue_stale_after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrorTypeConfiguration, appErr.Type)
			assert.Equal(t, tt.key, appErr.Metadata["key"])
		})
	}
}

func TestConfig_MemoryDriverSkipsDatabase(t *testing.T) {
	cfg := validConfig(t)
	cfg.Matching.StorageDriver = StorageDriverMemory
	cfg.Database.Host = ""

	assert.NoError(t, cfg.Validate())
}

func TestConfig_RequireRedis(t *testing.T) {
	cfg := validConfig(t)
	assert.Error(t, cfg.RequireRedis("worker"))

	cfg.Redis.Enabled = true
	assert.NoError(t, cfg.RequireRedis("worker"))
}
