package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	Latency     *int64       `json:"latency_ms,omitempty"`
	LastChecked time.Time    `json:"last_checked"`
	Details     interface{}  `json:"details,omitempty"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Service    string                     `json:"service"`
	Version    string                     `json:"version"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
	System     SystemInfo                 `json:"system"`
}

// SystemInfo represents system-level information
type SystemInfo struct {
	AllocatedBytes uint64 `json:"allocated_bytes"`
	Goroutines     int    `json:"goroutines"`
	CPUCount       int    `json:"cpu_count"`
	GoVersion      string `json:"go_version"`
}

// CheckFunc probes one component.
type CheckFunc func(ctx context.Context) ComponentHealth

// DatabasePinger is satisfied by *sql.DB and *database.DB.
type DatabasePinger interface {
	PingContext(ctx context.Context) error
	Stats() sql.DBStats
}

// RedisPinger is satisfied by *redis.Client.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// HealthChecker manages health checks for various components
type HealthChecker struct {
	mu            sync.Mutex
	startTime     time.Time
	service       string
	version       string
	components    map[string]ComponentHealth
	checkFuncs    map[string]CheckFunc
	lastCheck     time.Time
	checkInterval time.Duration
	checkTimeout  time.Duration
}

// NewHealthChecker creates a new health checker. Results are reused for
// checkInterval; zero means every request runs the checks.
func NewHealthChecker(service, version string, checkInterval time.Duration) *HealthChecker {
	return &HealthChecker{
		startTime:     time.Now(),
		service:       service,
		version:       version,
		components:    make(map[string]ComponentHealth),
		checkFuncs:    make(map[string]CheckFunc),
		checkInterval: checkInterval,
		checkTimeout:  5 * time.Second,
	}
}

// RegisterDatabaseCheck registers a database health check
func (hc *HealthChecker) RegisterDatabaseCheck(name string, db DatabasePinger) {
	hc.RegisterCustomCheck(name, func(ctx context.Context) ComponentHealth {
		start := time.Now()
		err := db.PingContext(ctx)
		latency := time.Since(start).Milliseconds()

		if err != nil {
			return ComponentHealth{
				Status:      HealthStatusUnhealthy,
				Message:     fmt.Sprintf("Database connection failed: %v", err),
				Latency:     &latency,
				LastChecked: time.Now(),
			}
		}

		stats := db.Stats()
		details := map[string]interface{}{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
			"wait_count":       stats.WaitCount,
			"wait_duration":    stats.WaitDuration.String(),
		}

		status := HealthStatusHealthy
		if latency > 1000 {
			status = HealthStatusDegraded
		}

		return ComponentHealth{
			Status:      status,
			Message:     "Database connection successful",
			Latency:     &latency,
			LastChecked: time.Now(),
			Details:     details,
		}
	})
}

// RegisterRedisCheck registers a Redis health check. The cache is optional,
// so a failed ping degrades the service instead of failing it. details may
// be nil.
func (hc *HealthChecker) RegisterRedisCheck(name string, client RedisPinger, details func() interface{}) {
	hc.RegisterCustomCheck(name, func(ctx context.Context) ComponentHealth {
		start := time.Now()
		err := client.Ping(ctx).Err()
		latency := time.Since(start).Milliseconds()

		if err != nil {
			return ComponentHealth{
				Status:      HealthStatusDegraded,
				Message:     fmt.Sprintf("Redis connection failed: %v", err),
				Latency:     &latency,
				LastChecked: time.Now(),
			}
		}

		status := HealthStatusHealthy
		if latency > 500 {
			status = HealthStatusDegraded
		}

		health := ComponentHealth{
			Status:      status,
			Message:     "Redis connection successful",
			Latency:     &latency,
			LastChecked: time.Now(),
		}
		if details != nil {
			health.Details = details()
		}
		return health
	})
}

// RegisterCustomCheck registers a custom health check function
func (hc *HealthChecker) RegisterCustomCheck(name string, checkFunc CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkFuncs[name] = checkFunc
}

// RunChecks executes all registered health checks
func (hc *HealthChecker) RunChecks(ctx context.Context) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.runChecksLocked(ctx)
}

func (hc *HealthChecker) runChecksLocked(ctx context.Context) {
	for name, checkFunc := range hc.checkFuncs {
		checkCtx, cancel := context.WithTimeout(ctx, hc.checkTimeout)
		hc.components[name] = checkFunc(checkCtx)
		cancel()
	}
	hc.lastCheck = time.Now()
}

// GetHealth returns the current health status, re-running checks when the
// cached results are older than the check interval.
func (hc *HealthChecker) GetHealth(ctx context.Context) HealthResponse {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	if hc.lastCheck.IsZero() || time.Since(hc.lastCheck) >= hc.checkInterval {
		hc.runChecksLocked(ctx)
	}

	overallStatus := HealthStatusHealthy
	components := make(map[string]ComponentHealth, len(hc.components))
	for name, component := range hc.components {
		components[name] = component
		if component.Status == HealthStatusUnhealthy {
			overallStatus = HealthStatusUnhealthy
		} else if component.Status == HealthStatusDegraded && overallStatus == HealthStatusHealthy {
			overallStatus = HealthStatusDegraded
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return HealthResponse{
		Status:     overallStatus,
		Service:    hc.service,
		Version:    hc.version,
		Timestamp:  time.Now().UTC(),
		Uptime:     time.Since(hc.startTime).Round(time.Second).String(),
		Components: components,
		System: SystemInfo{
			AllocatedBytes: memStats.Alloc,
			Goroutines:     runtime.NumGoroutine(),
			CPUCount:       runtime.NumCPU(),
			GoVersion:      runtime.Version(),
		},
	}
}

// HealthHandler returns a Gin handler for health checks
func (hc *HealthChecker) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := hc.GetHealth(c.Request.Context())

		// degraded still serves traffic
		statusCode := http.StatusOK
		if health.Status == HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, health)
	}
}

// LivenessHandler returns a simple liveness check
func (hc *HealthChecker) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"uptime":    time.Since(hc.startTime).Round(time.Second).String(),
			"timestamp": time.Now().UTC(),
		})
	}
}
