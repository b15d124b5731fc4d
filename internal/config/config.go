// Package config loads matchqueue settings from defaults, an optional YAML
// file, a .env file and MATCHQUEUE_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/meetsmatch/matchqueue/internal/cache"
	"github.com/meetsmatch/matchqueue/internal/database"
	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/sentry"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// EnvPrefix is prepended to every environment override, e.g.
// MATCHQUEUE_DATABASE_HOST for database.host.
const EnvPrefix = "MATCHQUEUE"

// Storage drivers accepted by matching.storage_driver.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds all configuration for the service
type Config struct {
	Environment string              `mapstructure:"environment"`
	HTTP        HTTPConfig          `mapstructure:"http"`
	Database    database.Config     `mapstructure:"database"`
	Redis       cache.RedisConfig   `mapstructure:"redis"`
	Matching    MatchingConfig      `mapstructure:"matching"`
	Log         telemetry.LogConfig `mapstructure:"log"`
	Telemetry   telemetry.Config    `mapstructure:"telemetry"`
	Sentry      sentry.Config       `mapstructure:"sentry"`
	Worker      WorkerConfig        `mapstructure:"worker"`
}

// HTTPConfig configures the JSON API listener.
type HTTPConfig struct {
	Addr            string          `mapstructure:"addr"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	TrustedProxies  []string        `mapstructure:"trusted_proxies"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig is the per-client token bucket on the ranking endpoint.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// MatchingConfig tunes the ranking engine.
type MatchingConfig struct {
	StorageDriver      string        `mapstructure:"storage_driver"`
	ScoringConcurrency int           `mapstructure:"scoring_concurrency"`
	StoreTimeout       time.Duration `mapstructure:"store_timeout"`
	LoaderBatchSize    int           `mapstructure:"loader_batch_size"`
	PremiumBonus       float64       `mapstructure:"premium_bonus"`
	DefaultMaxMatches  int           `mapstructure:"default_max_matches"`
	HistoryPageSize    int           `mapstructure:"history_page_size"`
}

// WorkerConfig configures the asynq worker and its periodic tasks.
type WorkerConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	QueueStaleAfter time.Duration `mapstructure:"queue_stale_after"`
	ExpireSchedule  string        `mapstructure:"expire_schedule"`
	StatsSchedule   string        `mapstructure:"stats_schedule"`
	Queues          []string      `mapstructure:"queues"`
}

// Load reads configuration. configFile may be empty; a missing .env file
// is not an error.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewConfigurationError(".env", fmt.Sprintf("failed to load .env: %v", err))
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.NewConfigurationError("config", fmt.Sprintf("failed to read config file %s: %v", configFile, err))
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, apperrors.NewConfigurationError("config", fmt.Sprintf("failed to decode configuration: %v", err))
	}

	cfg.Telemetry.Environment = cfg.Environment
	if cfg.Sentry.Environment == "" {
		cfg.Sentry.Environment = cfg.Environment
	}
	if cfg.Sentry.Release == "" {
		cfg.Sentry.Release = cfg.Telemetry.ServiceVersion
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.trusted_proxies", []string{})
	v.SetDefault("http.rate_limit.enabled", true)
	v.SetDefault("http.rate_limit.requests_per_second", 5.0)
	v.SetDefault("http.rate_limit.burst", 10)

	db := database.DefaultConfig()
	v.SetDefault("database.host", db.Host)
	v.SetDefault("database.port", db.Port)
	v.SetDefault("database.user", db.User)
	v.SetDefault("database.password", db.Password)
	v.SetDefault("database.name", db.DBName)
	v.SetDefault("database.ssl_mode", db.SSLMode)
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)
	v.SetDefault("database.instrumented", db.Instrumented)

	redisCfg := cache.DefaultRedisConfig()
	v.SetDefault("redis.enabled", redisCfg.Enabled)
	v.SetDefault("redis.host", redisCfg.Host)
	v.SetDefault("redis.port", redisCfg.Port)
	v.SetDefault("redis.password", redisCfg.Password)
	v.SetDefault("redis.db", redisCfg.DB)
	v.SetDefault("redis.pool_size", redisCfg.PoolSize)
	v.SetDefault("redis.instrumented", redisCfg.Instrumented)
	v.SetDefault("redis.preference_ttl", redisCfg.PreferenceTTL)
	v.SetDefault("redis.stats_ttl", redisCfg.StatsTTL)

	v.SetDefault("matching.storage_driver", StorageDriverPostgres)
	v.SetDefault("matching.scoring_concurrency", matching.DefaultScoringConcurrency)
	v.SetDefault("matching.store_timeout", matching.DefaultStoreTimeout)
	v.SetDefault("matching.loader_batch_size", matching.DefaultLoaderBatchSize)
	v.SetDefault("matching.premium_bonus", matching.MaxPremiumBonus)
	v.SetDefault("matching.default_max_matches", 10)
	v.SetDefault("matching.history_page_size", 20)

	logCfg := telemetry.DefaultLogConfig()
	v.SetDefault("log.level", string(logCfg.Level))
	v.SetDefault("log.format", logCfg.Format)
	v.SetDefault("log.output", logCfg.Output)
	v.SetDefault("log.rotation", logCfg.Rotation)
	v.SetDefault("log.max_size", logCfg.MaxSize)
	v.SetDefault("log.max_backups", logCfg.MaxBackups)
	v.SetDefault("log.max_age", logCfg.MaxAge)
	v.SetDefault("log.compress", logCfg.Compress)

	otelCfg := telemetry.DefaultConfig()
	v.SetDefault("telemetry.service_name", otelCfg.ServiceName)
	v.SetDefault("telemetry.service_version", otelCfg.ServiceVersion)
	v.SetDefault("telemetry.otlp_endpoint", otelCfg.OTLPEndpoint)
	v.SetDefault("telemetry.enabled", otelCfg.Enabled)
	v.SetDefault("telemetry.sample_ratio", otelCfg.SampleRatio)
	v.SetDefault("telemetry.export_interval", otelCfg.ExportInterval)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "")
	v.SetDefault("sentry.release", "")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("worker.concurrency", 5)
	v.SetDefault("worker.queue_stale_after", 24*time.Hour)
	v.SetDefault("worker.expire_schedule", "*/15 * * * *")
	v.SetDefault("worker.stats_schedule", "*/5 * * * *")
	v.SetDefault("worker.queues", []string{"default"})
}

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return apperrors.NewConfigurationError("http.addr", "http.addr is required")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return apperrors.NewConfigurationError("http.shutdown_timeout", "http.shutdown_timeout must be positive")
	}
	if c.HTTP.RateLimit.Enabled && (c.HTTP.RateLimit.RequestsPerSecond <= 0 || c.HTTP.RateLimit.Burst < 1) {
		return apperrors.NewConfigurationError("http.rate_limit", "rate limit needs a positive rate and a burst of at least 1")
	}

	switch c.Matching.StorageDriver {
	case StorageDriverPostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return apperrors.NewConfigurationError("database", "database.host and database.name are required for the postgres driver")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return apperrors.NewConfigurationError("database.port", "database.port must be between 1 and 65535")
		}
	case StorageDriverMemory:
	default:
		return apperrors.NewConfigurationError("matching.storage_driver",
			fmt.Sprintf("unknown storage driver %q (want postgres or memory)", c.Matching.StorageDriver))
	}

	if c.Matching.ScoringConcurrency < 1 {
		return apperrors.NewConfigurationError("matching.scoring_concurrency", "matching.scoring_concurrency must be at least 1")
	}
	if c.Matching.StoreTimeout <= 0 {
		return apperrors.NewConfigurationError("matching.store_timeout", "matching.store_timeout must be positive")
	}
	if c.Matching.PremiumBonus < 0 || c.Matching.PremiumBonus > matching.MaxPremiumBonus {
		return apperrors.NewConfigurationError("matching.premium_bonus",
			fmt.Sprintf("matching.premium_bonus must be between 0 and %.2f", matching.MaxPremiumBonus))
	}
	if c.Matching.DefaultMaxMatches < 1 || c.Matching.DefaultMaxMatches > matching.MaxMatchesLimit {
		return apperrors.NewConfigurationError("matching.default_max_matches",
			fmt.Sprintf("matching.default_max_matches must be between 1 and %d", matching.MaxMatchesLimit))
	}
	if c.Matching.HistoryPageSize < 1 {
		return apperrors.NewConfigurationError("matching.history_page_size", "matching.history_page_size must be at least 1")
	}

	if c.Redis.Enabled && (c.Redis.Host == "" || c.Redis.Port < 1) {
		return apperrors.NewConfigurationError("redis", "redis.host and redis.port are required when redis is enabled")
	}

	switch c.Log.Level {
	case telemetry.DebugLevel, telemetry.InfoLevel, telemetry.WarnLevel, telemetry.ErrorLevel:
	default:
		return apperrors.NewConfigurationError("log.level", fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	if c.Sentry.Enabled && c.Sentry.DSN == "" {
		return apperrors.NewConfigurationError("sentry.dsn", "sentry.dsn is required when sentry is enabled")
	}

	if c.Worker.Concurrency < 1 {
		return apperrors.NewConfigurationError("worker.concurrency", "worker.concurrency must be at least 1")
	}
	if c.Worker.QueueStaleAfter <= 0 {
		return apperrors.NewConfigurationError("worker.queue_stale_after", "worker.queue_stale_after must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// RequireRedis fails when a component that cannot run without Redis is
// started with the cache disabled.
func (c *Config) RequireRedis(component string) error {
	if !c.Redis.Enabled {
		return apperrors.NewConfigurationError("redis.enabled", component+" requires redis.enabled=true")
	}
	return nil
}
