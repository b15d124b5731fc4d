package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

type DB struct {
	*sql.DB
}

type Config struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Instrumented    bool          `mapstructure:"instrumented"`
}

// DefaultConfig returns the local development connection settings.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		DBName:          "matchqueue",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		Instrumented:    true,
	}
}

// DSN renders the libpq key/value connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName,
		c.SSLMode,
	)
}

// NewConnection opens the pool, applies pool limits and pings the server.
// With Instrumented set the handle is wrapped by otelsql.
func NewConnection(ctx context.Context, config Config) (*DB, error) {
	ctx = telemetry.WithCorrelationID(ctx, telemetry.NewCorrelationID())
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"host":         config.Host,
		"port":         config.Port,
		"database":     config.DBName,
		"ssl_mode":     config.SSLMode,
		"instrumented": config.Instrumented,
		"operation":    "database_connection",
	})

	logger.Info("Establishing database connection")

	var (
		db  *sql.DB
		err error
	)
	if config.Instrumented {
		db, err = telemetry.InstrumentDatabase("postgres", config.DSN(), config.DBName)
	} else {
		db, err = sql.Open("postgres", config.DSN())
	}
	if err != nil {
		logger.WithError(err).Error("Failed to open database connection")
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	applyPoolLimits(db, config)
	logger.Debug("Database connection pool configured")

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		logger.WithError(err).Error("Failed to ping database")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established successfully")
	return &DB{db}, nil
}

func applyPoolLimits(db *sql.DB, config Config) {
	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := config.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := config.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func (db *DB) Health(ctx context.Context) error {
	logger := telemetry.GetContextualLogger(ctx).WithField("operation", "database_health_check")

	logger.Debug("Performing database health check")

	err := db.PingContext(ctx)
	if err != nil {
		logger.WithError(err).Error("Database health check failed")
	} else {
		logger.Debug("Database health check passed")
	}

	return err
}

// WithTransaction runs fn inside a transaction, rolling back when fn returns
// an error or panics and committing otherwise.
func (db *DB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	logger := telemetry.GetContextualLogger(ctx).WithField("operation", "database_transaction")

	logger.Debug("Starting database transaction")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		logger.WithError(err).Error("Failed to begin transaction")
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			logger.WithField("panic", p).Error("Transaction panicked, rolling back")
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			logger.WithError(err).Debug("Transaction failed, rolling back")
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				logger.WithError(err).Error("Failed to commit transaction")
			} else {
				logger.Debug("Transaction committed successfully")
			}
		}
	}()

	err = fn(tx)
	return err
}
