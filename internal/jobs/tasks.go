// Package jobs runs the periodic maintenance tasks of the matching service
// on asynq: retiring stale queue entries and warming the stats cache.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type identifiers
const (
	TypeExpireStaleQueue = "queue:expire_stale"
	TypeRefreshStats     = "stats:refresh"
)

// ExpireStalePayload overrides the configured stale window when non-zero.
type ExpireStalePayload struct {
	MaxAgeSeconds int64 `json:"maxAgeSeconds,omitempty"`
}

// MaxAge is the payload window as a duration.
func (p ExpireStalePayload) MaxAge() time.Duration {
	return time.Duration(p.MaxAgeSeconds) * time.Second
}

// NewExpireStaleTask builds a queue expiry task; maxAge of 0 means the
// handler default.
func NewExpireStaleTask(maxAge time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ExpireStalePayload{MaxAgeSeconds: int64(maxAge / time.Second)})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", TypeExpireStaleQueue, err)
	}
	return asynq.NewTask(TypeExpireStaleQueue, payload, asynq.MaxRetry(3), asynq.Timeout(time.Minute)), nil
}

// NewRefreshStatsTask builds a stats refresh task.
func NewRefreshStatsTask() *asynq.Task {
	return asynq.NewTask(TypeRefreshStats, nil, asynq.MaxRetry(1), asynq.Timeout(30*time.Second))
}

func decodeExpireStalePayload(t *asynq.Task) (ExpireStalePayload, error) {
	var p ExpireStalePayload
	if len(t.Payload()) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.MaxAgeSeconds < 0 {
		return p, fmt.Errorf("invalid %s payload: negative maxAgeSeconds: %w", t.Type(), asynq.SkipRetry)
	}
	return p, nil
}
