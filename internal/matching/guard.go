package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
)

// DefaultStoreTimeout bounds every store call made by the engine.
const DefaultStoreTimeout = 2 * time.Second

// CallStore runs fn under its own deadline. A deadline hit becomes a
// TimeoutError and is never retried here; other failures become
// infrastructure errors unless the store already classified them.
func CallStore(ctx context.Context, timeout time.Duration, operation, targetID string, fn func(context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	return classifyStoreError(ctx, callCtx, err, timeout, operation, targetID)
}

func classifyStoreError(parent, callCtx context.Context, err error, timeout time.Duration, operation, targetID string) error {
	if parent.Err() != nil && errors.Is(err, parent.Err()) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(operation, timeout).WithTarget(targetID)
	}
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}
	return apperrors.NewDatabaseError(operation, err).WithTarget(targetID)
}
