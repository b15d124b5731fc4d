package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/sentry"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Type          string      `json:"type"`
	Code          string      `json:"code"`
	Message       string      `json:"message"`
	Field         string      `json:"field,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	CorrelationID string      `json:"correlationId,omitempty"`
	Retryable     bool        `json:"retryable"`
	Violations    interface{} `json:"violations,omitempty"`
}

// ErrorResponse wraps ErrorBody under "error".
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorHandler renders the last error a handler attached with c.Error.
// Infrastructure failures are reported to Sentry and answered with a
// generic message; storage detail never reaches the response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		ctx := c.Request.Context()
		appErr := toAppError(ctx, c.Errors.Last().Err)
		logError(ctx, c, appErr)
		if sentry.CaptureInfrastructureError(ctx, appErr, c.FullPath()) {
			c.Set("sentry_captured", true)
		}

		c.JSON(appErr.HTTPStatus, ErrorResponse{Error: renderError(appErr)})
	}
}

// Abort records err for ErrorHandler and stops the chain.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func toAppError(ctx context.Context, err error) *errors.AppError {
	correlationID := telemetry.GetCorrelationID(ctx)
	if appErr, ok := errors.As(err); ok {
		if appErr.CorrelationID == "" {
			appErr = appErr.WithCorrelationID(correlationID)
		}
		return appErr
	}
	return errors.NewInternalError("An unexpected error occurred", err).
		WithCorrelationID(correlationID)
}

func renderError(appErr *errors.AppError) ErrorBody {
	body := ErrorBody{
		Type:          string(appErr.Type),
		Code:          appErr.Code,
		Message:       appErr.PublicMessage(),
		CorrelationID: appErr.CorrelationID,
		Retryable:     errors.IsRetryable(appErr),
	}
	if appErr.Type == errors.ErrorTypeValidation {
		if field, ok := appErr.Metadata["field"].(string); ok {
			body.Field = field
		}
		body.Reason = errors.Reason(appErr)
		body.Violations = appErr.Metadata["violations"]
	}
	if appErr.Type == errors.ErrorTypeInternal {
		body.Message = "Internal Server Error"
	}
	return body
}

// logError logs the error with a level matching its type
func logError(ctx context.Context, c *gin.Context, appErr *errors.AppError) {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":  "error_handler",
		"service":    "http",
		"error_type": string(appErr.Type),
		"error_code": appErr.Code,
		"route":      c.FullPath(),
	})
	for k, v := range appErr.Metadata {
		if k == "violations" {
			continue
		}
		logger = logger.WithField(k, v)
	}
	if appErr.Details != "" {
		logger = logger.WithField("details", appErr.Details)
	}

	switch appErr.Type {
	case errors.ErrorTypeValidation, errors.ErrorTypeRateLimit:
		logger.Warn(appErr.Message)
	case errors.ErrorTypeNotFound:
		logger.Info(appErr.Message)
	default:
		logger.Error(appErr.Message)
	}
}
