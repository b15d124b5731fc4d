package sentry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	gosentry "github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
)

func TestInit_Disabled(t *testing.T) {
	if err := Init(Config{Enabled: false}); err != nil {
		t.Errorf("Expected no error for disabled Sentry, got %v", err)
	}
}

func TestInit_EmptyDSN(t *testing.T) {
	if err := Init(Config{Enabled: true}); err != nil {
		t.Errorf("Expected graceful degradation for empty DSN, got %v", err)
	}
}

func TestInit_InvalidDSN(t *testing.T) {
	if err := Init(Config{Enabled: true, DSN: "not a dsn"}); err == nil {
		t.Error("Expected error for malformed DSN")
	}
}

func TestShouldCapture(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), true},
		{"validation", apperrors.NewValidationError("minAge", apperrors.ReasonAgeOutOfRange, "bad"), false},
		{"not found", apperrors.NewNotFoundError("user"), false},
		{"database", apperrors.NewDatabaseError("insert", errors.New("conn reset")), true},
		{"cache", apperrors.NewCacheError("get", errors.New("refused")), true},
		{"internal", apperrors.NewInternalError("bug", nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldCapture(tt.err); got != tt.want {
				t.Errorf("ShouldCapture() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCaptureInfrastructureError(t *testing.T) {
	ctx := WithUserID(context.Background(), "user123")

	if CaptureInfrastructureError(ctx, apperrors.NewValidationError("x", "y", "z"), "find_matches") {
		t.Error("validation errors must not be captured")
	}
	// Should not panic even without Sentry initialized
	if !CaptureInfrastructureError(ctx, apperrors.NewDatabaseError("insert", errors.New("down")), "find_matches") {
		t.Error("database errors must be captured")
	}
}

func TestCaptureErrorWithContext_NilError(t *testing.T) {
	CaptureErrorWithContext(context.Background(), nil, nil, nil)
}

func TestAddBreadcrumb(t *testing.T) {
	AddBreadcrumb(context.Background(), "test", "test message", gosentry.LevelInfo, nil)
	AddBreadcrumb(context.Background(), "test", "test with data", gosentry.LevelError, map[string]interface{}{"key": "value"})
}

func TestSanitizeEvent(t *testing.T) {
	event := &gosentry.Event{
		Request: &gosentry.Request{
			Headers: map[string]string{
				"Authorization": "Bearer secret",
				"Cookie":        "session=abc",
				"X-Api-Key":     "key",
				"Content-Type":  "application/json",
			},
		},
	}

	sanitizeEvent(event)

	if _, ok := event.Request.Headers["Authorization"]; ok {
		t.Error("Authorization header should be removed")
	}
	if _, ok := event.Request.Headers["Cookie"]; ok {
		t.Error("Cookie header should be removed")
	}
	if _, ok := event.Request.Headers["X-Api-Key"]; ok {
		t.Error("X-Api-Key header should be removed")
	}
	if event.Request.Headers["Content-Type"] != "application/json" {
		t.Error("Content-Type header should be preserved")
	}

	sanitizeEvent(&gosentry.Event{})
}

func TestGinMiddleware_RecoversPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware())
	router.GET("/panic", func(c *gin.Context) { panic("boom") })
	router.GET("/hub", func(c *gin.Context) {
		if gosentry.GetHubFromContext(c.Request.Context()) == nil {
			t.Error("Expected hub on request context")
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/hub", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
}
