package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{
		Host:     "db.internal",
		Port:     6543,
		User:     "matcher",
		Password: "secret",
		DBName:   "matchqueue",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.internal port=6543 user=matcher password=secret dbname=matchqueue sslmode=require",
		cfg.DSN())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

// TestNewConnection_InvalidConfig tests database connection with invalid configuration
func TestNewConnection_InvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		errorMsg string
	}{
		{
			name: "Invalid host",
			config: Config{
				Host:     "nonexistent-host.invalid",
				Port:     5432,
				User:     "test",
				Password: "test",
				DBName:   "test",
				SSLMode:  "disable",
			},
			errorMsg: "failed to ping database",
		},
		{
			name: "Closed port",
			config: Config{
				Host:     "127.0.0.1",
				Port:     1,
				User:     "test",
				Password: "test",
				DBName:   "test",
				SSLMode:  "disable",
			},
			errorMsg: "failed to ping database",
		},
		{
			name: "Instrumented closed port",
			config: Config{
				Host:         "127.0.0.1",
				Port:         1,
				User:         "test",
				Password:     "test",
				DBName:       "test",
				SSLMode:      "disable",
				Instrumented: true,
			},
			errorMsg: "failed to ping database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := NewConnection(context.Background(), tt.config)

			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
			assert.Nil(t, db)
		})
	}
}

func TestMigrationFilesEmbedded(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	assert.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_matching_tables.up.sql")
	assert.Contains(t, names, "000001_create_matching_tables.down.sql")
}
