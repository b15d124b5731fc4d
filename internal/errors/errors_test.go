package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_Values(t *testing.T) {
	tests := []struct {
		name      string
		errorType ErrorType
		expected  string
	}{
		{"Validation error", ErrorTypeValidation, "validation"},
		{"Not found error", ErrorTypeNotFound, "not_found"},
		{"Database error", ErrorTypeDatabase, "database"},
		{"Cache error", ErrorTypeCache, "cache"},
		{"Timeout error", ErrorTypeTimeout, "timeout"},
		{"Configuration error", ErrorTypeConfiguration, "configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.errorType))
		})
	}
}

func TestNewAppErrorWithCause(t *testing.T) {
	originalErr := errors.New("connection timeout")

	appErr := NewAppErrorWithCause(ErrorTypeInternal, "DB_ERROR", "Database connection failed", originalErr)

	assert.Equal(t, ErrorTypeInternal, appErr.Type)
	assert.Equal(t, originalErr, appErr.Cause)
	assert.Equal(t, originalErr.Error(), appErr.Details)
	assert.WithinDuration(t, time.Now(), appErr.Timestamp, time.Second)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	assert.Equal(t, "DB_ERROR: Database connection failed - connection timeout", appErr.Error())
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("minAge", ReasonAgeRangeInverted, "minAge must not exceed maxAge")

	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, "VALIDATION_ERROR", err.Code)
	assert.Equal(t, "minAge", err.Metadata["field"])
	assert.Equal(t, ReasonAgeRangeInverted, Reason(err))
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.False(t, IsRetryable(err))
}

func TestInfrastructureErrors(t *testing.T) {
	cause := errors.New("pq: relation does not exist")

	tests := []struct {
		name     string
		err      *AppError
		errType  ErrorType
		status   int
		hasCause bool
	}{
		{"database", NewDatabaseError("list waiting", cause), ErrorTypeDatabase, http.StatusServiceUnavailable, true},
		{"cache", NewCacheError("GET", cause), ErrorTypeCache, http.StatusServiceUnavailable, true},
		{"timeout", NewTimeoutError("insert attempt", 2*time.Second), ErrorTypeTimeout, http.StatusGatewayTimeout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.errType, tt.err.Type)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.True(t, tt.err.IsInfrastructure())
			assert.True(t, IsRetryable(tt.err))
			assert.NotContains(t, tt.err.PublicMessage(), "pq:")
			assert.Equal(t, tt.hasCause, tt.err.Cause != nil)
		})
	}
}

func TestWithTarget(t *testing.T) {
	err := NewDatabaseError("insert attempt", errors.New("boom")).WithTarget("attempt-1")
	assert.Equal(t, "attempt-1", err.Metadata["target_id"])

	err = NewDatabaseError("insert attempt", errors.New("boom")).WithTarget("")
	_, ok := err.Metadata["target_id"]
	assert.False(t, ok)
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("Queue entry")

	assert.Equal(t, ErrorTypeNotFound, err.Type)
	assert.Equal(t, "Queue entry not found", err.Message)
	assert.Equal(t, "Queue entry not found", err.PublicMessage())
}

func TestNewConfigurationError(t *testing.T) {
	err := NewConfigurationError("database.host", "database host is required")

	assert.Equal(t, ErrorTypeConfiguration, err.Type)
	assert.Equal(t, "database.host", err.Metadata["key"])
	assert.False(t, IsRetryable(err))
}

func TestHelpers_WrappedErrors(t *testing.T) {
	appErr := NewValidationError("intent", ReasonMissingIntent, "intent is required").
		WithCorrelationID("corr-1")
	wrapped := fmt.Errorf("find matches: %w", appErr)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, appErr, got)
	assert.True(t, IsErrorType(wrapped, ErrorTypeValidation))
	assert.Equal(t, ReasonMissingIntent, Reason(wrapped))
	assert.Equal(t, "corr-1", GetCorrelationID(wrapped))

	errType, ok := GetErrorType(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrorTypeValidation, errType)
}

func TestHelpers_PlainErrors(t *testing.T) {
	plain := errors.New("regular error")

	assert.False(t, IsErrorType(plain, ErrorTypeValidation))
	assert.False(t, IsRetryable(plain))
	assert.Empty(t, Reason(plain))
	assert.Empty(t, GetCorrelationID(plain))

	errType, ok := GetErrorType(plain)
	assert.False(t, ok)
	assert.Equal(t, ErrorType(""), errType)
}

func TestAppError_ChainedErrors(t *testing.T) {
	originalErr := errors.New("database connection failed")
	middleErr := NewDatabaseError("SELECT", originalErr)
	finalErr := NewInternalError("Service unavailable", middleErr)

	assert.True(t, errors.Is(finalErr, originalErr))
	assert.True(t, errors.Is(finalErr, middleErr))
	assert.Equal(t, middleErr, errors.Unwrap(finalErr))
}

func TestGetDefaultHTTPStatus(t *testing.T) {
	tests := []struct {
		name         string
		errorType    ErrorType
		expectedCode int
	}{
		{"Validation error", ErrorTypeValidation, http.StatusBadRequest},
		{"Not found error", ErrorTypeNotFound, http.StatusNotFound},
		{"Rate limit error", ErrorTypeRateLimit, http.StatusTooManyRequests},
		{"Timeout error", ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"Database error", ErrorTypeDatabase, http.StatusServiceUnavailable},
		{"Configuration error", ErrorTypeConfiguration, http.StatusInternalServerError},
		{"Unknown error", ErrorType("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedCode, getDefaultHTTPStatus(tt.errorType))
		})
	}
}

