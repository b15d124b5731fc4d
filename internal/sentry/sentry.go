// Package sentry provides error tracking integration with Sentry/GlitchTip.
package sentry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// Config holds Sentry settings.
type Config struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	Release     string  `mapstructure:"release"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Init initializes Sentry with the given configuration.
// Returns nil if Sentry is disabled or DSN is empty (graceful degradation).
func Init(cfg Config) error {
	if !cfg.Enabled || cfg.DSN == "" {
		return nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		SampleRate:  sampleRate,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			sanitizeEvent(event)
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	return nil
}

// Flush flushes any buffered events before shutdown.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// CaptureErrorWithContext captures an error with request context.
func CaptureErrorWithContext(ctx context.Context, err error, tags map[string]string, extras map[string]interface{}) {
	if err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		if userID, ok := ctx.Value(contextKeyUserID).(string); ok {
			scope.SetUser(sentry.User{ID: userID})
		}
		if correlationID := telemetry.GetCorrelationID(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}

		for k, v := range tags {
			scope.SetTag(k, v)
		}
		for k, v := range extras {
			scope.SetExtra(k, v)
		}

		hub.CaptureException(err)
	})
}

// CaptureInfrastructureError reports database, cache and timeout failures.
// Validation and not-found errors are expected outcomes and are skipped.
func CaptureInfrastructureError(ctx context.Context, err error, operation string) bool {
	if !ShouldCapture(err) {
		return false
	}

	tags := map[string]string{"operation": operation}
	extras := map[string]interface{}{}
	if appErr, ok := apperrors.As(err); ok {
		tags["error_type"] = string(appErr.Type)
		tags["error_code"] = appErr.Code
		for k, v := range appErr.Metadata {
			extras[k] = v
		}
	}

	CaptureErrorWithContext(ctx, err, tags, extras)
	return true
}

// ShouldCapture reports whether err is worth an event.
func ShouldCapture(err error) bool {
	if err == nil {
		return false
	}
	appErr, ok := apperrors.As(err)
	if !ok {
		return true
	}
	return appErr.IsInfrastructure() || appErr.Type == apperrors.ErrorTypeInternal
}

// AddBreadcrumb adds a breadcrumb to the hub on ctx, or the current hub.
func AddBreadcrumb(ctx context.Context, category, message string, level sentry.Level, data map[string]interface{}) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Level:    level,
		Data:     data,
	}, nil)
}

// Context key types for type-safe context values
type contextKey string

const contextKeyUserID contextKey = "user_id"

// WithUserID returns a new context with the user ID set.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// sanitizeEvent removes sensitive data from Sentry events.
func sanitizeEvent(event *sentry.Event) {
	if event.Request != nil {
		delete(event.Request.Headers, "Authorization")
		delete(event.Request.Headers, "Cookie")
		delete(event.Request.Headers, "X-Api-Key")
	}
}
