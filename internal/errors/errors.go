package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the category of a failure surfaced by the service
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeInternal      ErrorType = "internal"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeDatabase      ErrorType = "database"
	ErrorTypeCache         ErrorType = "cache"
	ErrorTypeConfiguration ErrorType = "configuration"
)

// Validation reasons. Each rejected rule carries exactly one of these.
const (
	ReasonAgeOutOfRange                 = "AGE_OUT_OF_RANGE"
	ReasonAgeRangeInverted              = "AGE_RANGE_INVERTED"
	ReasonPreferredAgeOutOfRange        = "PREFERRED_AGE_OUT_OF_RANGE"
	ReasonPreferredAgeRangeInverted     = "PREFERRED_AGE_RANGE_INVERTED"
	ReasonEthnicityImportanceOutOfRange = "ETHNICITY_IMPORTANCE_OUT_OF_RANGE"
	ReasonNegativeWeight                = "NEGATIVE_WEIGHT"
	ReasonWeightSumOutOfRange           = "WEIGHT_SUM_OUT_OF_RANGE"
	ReasonDatingWeightOutOfRange        = "DATING_WEIGHT_OUT_OF_RANGE"
	ReasonUnknownEnumValue              = "UNKNOWN_ENUM_VALUE"
	ReasonNegativeRadius                = "NEGATIVE_RADIUS"
	ReasonCoordinateOutOfRange          = "COORDINATE_OUT_OF_RANGE"
	ReasonSelfAgeOutOfRange             = "SELF_AGE_OUT_OF_RANGE"
	ReasonMissingUserID                 = "MISSING_USER_ID"
	ReasonMissingIntent                 = "MISSING_INTENT"
	ReasonIntentTooLong                 = "INTENT_TOO_LONG"
	ReasonMaxMatchesOutOfRange          = "MAX_MATCHES_OUT_OF_RANGE"
	ReasonInvalidPagination             = "INVALID_PAGINATION"
	ReasonMalformedRequest              = "MALFORMED_REQUEST"
)

// AppError represents a structured application error
type AppError struct {
	Type          ErrorType              `json:"type"`
	Code          string                 `json:"code"`
	Message       string                 `json:"message"`
	Details       string                 `json:"details,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Cause         error                  `json:"-"`
	HTTPStatus    int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// PublicMessage is the text safe to hand to callers. Storage and cache
// failures never leak driver output.
func (e *AppError) PublicMessage() string {
	if e.IsInfrastructure() {
		return "A temporary error occurred, please retry"
	}
	return e.Message
}

// IsInfrastructure reports whether the error came from a storage dependency.
func (e *AppError) IsInfrastructure() bool {
	switch e.Type {
	case ErrorTypeDatabase, ErrorTypeCache, ErrorTypeTimeout:
		return true
	}
	return false
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Timestamp:  time.Now().UTC(),
		HTTPStatus: getDefaultHTTPStatus(errorType),
	}
}

// NewAppErrorWithCause creates a new application error with an underlying cause
func NewAppErrorWithCause(errorType ErrorType, code, message string, cause error) *AppError {
	err := NewAppError(errorType, code, message)
	err.Cause = cause
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// WithCorrelationID adds a correlation ID to the error
func (e *AppError) WithCorrelationID(correlationID string) *AppError {
	e.CorrelationID = correlationID
	return e
}

// WithDetails adds additional details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithTarget records the id of the record the failed operation touched
func (e *AppError) WithTarget(id string) *AppError {
	if id == "" {
		return e
	}
	return e.WithMetadata("target_id", id)
}

func getDefaultHTTPStatus(errorType ErrorType) int {
	switch errorType {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeDatabase, ErrorTypeCache:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error for a single field and reason
func NewValidationError(field, reason, message string) *AppError {
	return NewAppError(ErrorTypeValidation, "VALIDATION_ERROR", message).
		WithMetadata("field", field).
		WithMetadata("reason", reason)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrorTypeNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource)).
		WithMetadata("resource", resource)
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(limit int, window string) *AppError {
	return NewAppError(ErrorTypeRateLimit, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded").
		WithMetadata("limit", limit).
		WithMetadata("window", window)
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	return NewAppErrorWithCause(ErrorTypeInternal, "INTERNAL_ERROR", message, cause)
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *AppError {
	return NewAppErrorWithCause(ErrorTypeDatabase, "DATABASE_ERROR",
		fmt.Sprintf("Database operation failed: %s", operation), cause).
		WithMetadata("operation", operation)
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *AppError {
	return NewAppErrorWithCause(ErrorTypeCache, "CACHE_ERROR",
		fmt.Sprintf("Cache operation failed: %s", operation), cause).
		WithMetadata("operation", operation)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string, timeout time.Duration) *AppError {
	return NewAppError(ErrorTypeTimeout, "TIMEOUT",
		fmt.Sprintf("Operation timed out: %s", operation)).
		WithMetadata("operation", operation).
		WithMetadata("timeout", timeout.String())
}

// NewConfigurationError creates a startup configuration error
func NewConfigurationError(key, message string) *AppError {
	return NewAppError(ErrorTypeConfiguration, "CONFIGURATION_ERROR", message).
		WithMetadata("key", key)
}

// As returns the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if appErr, ok := As(err); ok {
		return appErr.Type == errorType
	}
	return false
}

// GetErrorType returns the error type if it's an AppError
func GetErrorType(err error) (ErrorType, bool) {
	if appErr, ok := As(err); ok {
		return appErr.Type, true
	}
	return "", false
}

// IsRetryable reports whether the caller may retry the whole operation.
func IsRetryable(err error) bool {
	if appErr, ok := As(err); ok {
		return appErr.IsInfrastructure()
	}
	return false
}

// Reason returns the validation reason carried by err, if any
func Reason(err error) string {
	appErr, ok := As(err)
	if !ok || appErr.Metadata == nil {
		return ""
	}
	if reason, ok := appErr.Metadata["reason"].(string); ok {
		return reason
	}
	return ""
}

// GetCorrelationID extracts correlation ID from an error
func GetCorrelationID(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.CorrelationID
	}
	return ""
}
