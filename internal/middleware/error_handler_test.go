package middleware

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetsmatch/matchqueue/internal/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handler gin.HandlerFunc, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(LoggingMiddleware(nil), ErrorHandler())
	chain := append(extra, handler)
	router.GET("/test", chain...)
	return router
}

func serve(t *testing.T, router *gin.Engine, header http.Header) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body ErrorResponse
	if w.Code >= 400 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestErrorHandler_StatusByType(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		errType   string
		code      string
		retryable bool
	}{
		{
			name:    "validation",
			err:     errors.NewValidationError("minAge", errors.ReasonAgeRangeInverted, "minAge must not exceed maxAge"),
			status:  http.StatusBadRequest,
			errType: "validation",
			code:    "VALIDATION_ERROR",
		},
		{
			name:    "not found",
			err:     errors.NewNotFoundError("queue entry"),
			status:  http.StatusNotFound,
			errType: "not_found",
		},
		{
			name:    "database",
			err:     errors.NewDatabaseError("insert match attempt", stderrors.New("pq: deadlock detected")),
			status:    http.StatusServiceUnavailable,
			errType:   "database",
			retryable: true,
		},
		{
			name:    "timeout",
			err:     errors.NewTimeoutError("load seeker preferences", 2*time.Second),
			status:    http.StatusGatewayTimeout,
			errType:   "timeout",
			code:      "TIMEOUT",
			retryable: true,
		},
		{
			name:    "plain error",
			err:     stderrors.New("boom"),
			status:  http.StatusInternalServerError,
			errType: "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(func(c *gin.Context) { Abort(c, tt.err) })
			w, body := serve(t, router, nil)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.errType, body.Error.Type)
			if tt.code != "" {
				assert.Equal(t, tt.code, body.Error.Code)
			}
			assert.Equal(t, tt.retryable, body.Error.Retryable)
			assert.NotEmpty(t, body.Error.CorrelationID)
		})
	}
}

func TestErrorHandler_ValidationDetail(t *testing.T) {
	err := errors.NewValidationError("weights", errors.ReasonWeightSumOutOfRange, "weights must sum within [0.8,1.2]")
	router := newRouter(func(c *gin.Context) { Abort(c, err) })

	_, body := serve(t, router, nil)
	assert.Equal(t, "weights", body.Error.Field)
	assert.Equal(t, errors.ReasonWeightSumOutOfRange, body.Error.Reason)
	assert.Equal(t, "weights must sum within [0.8,1.2]", body.Error.Message)
}

func TestErrorHandler_HidesStorageDetail(t *testing.T) {
	err := errors.NewDatabaseError("list waiting queue entries", stderrors.New("pq: password authentication failed"))
	router := newRouter(func(c *gin.Context) { Abort(c, err) })

	w, body := serve(t, router, nil)
	assert.NotContains(t, w.Body.String(), "password authentication")
	assert.Equal(t, err.PublicMessage(), body.Error.Message)
}

func TestErrorHandler_KeepsCorrelationID(t *testing.T) {
	router := newRouter(func(c *gin.Context) {
		Abort(c, errors.NewNotFoundError("preferences"))
	})

	w, body := serve(t, router, http.Header{CorrelationIDHeader: []string{"corr-123"}})
	assert.Equal(t, "corr-123", w.Header().Get(CorrelationIDHeader))
	assert.Equal(t, "corr-123", body.Error.CorrelationID)
}

func TestErrorHandler_PassesSuccess(t *testing.T) {
	router := newRouter(func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	w, _ := serve(t, router, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(CorrelationIDHeader))
}

func TestRateLimiter_Middleware(t *testing.T) {
	limiter := NewRateLimiter(1, 2, func(c *gin.Context) string { return c.GetHeader("X-Client") })
	router := newRouter(func(c *gin.Context) { c.Status(http.StatusNoContent) }, limiter.Middleware())

	clientA := http.Header{"X-Client": []string{"a"}}
	for i := 0; i < 2; i++ {
		w, _ := serve(t, router, clientA)
		assert.Equal(t, http.StatusNoContent, w.Code)
	}

	w, body := serve(t, router, clientA)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limit", body.Error.Type)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	w, _ = serve(t, router, http.Header{"X-Client": []string{"b"}})
	assert.Equal(t, http.StatusNoContent, w.Code, "buckets are per client")
}

func TestRateLimiter_RefillsAndSweeps(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 1, nil)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("a"))

	assert.True(t, limiter.Allow("b"))
	assert.Equal(t, 2, limiter.Len())

	now = now.Add(11 * time.Minute)
	assert.True(t, limiter.Allow("c"))
	assert.Equal(t, 1, limiter.Len())
}
