package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/sentry"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// QueueExpirer retires waiting entries older than maxAge.
type QueueExpirer interface {
	ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

// ExpiryObserver records how many entries an expiry run retired.
type ExpiryObserver interface {
	RecordQueueExpired(ctx context.Context, count int64)
}

// StatsRefresher recomputes and caches the attempt statistics.
type StatsRefresher interface {
	Refresh(ctx context.Context, since time.Time) (*matching.MatchStats, error)
}

// ExpireStaleHandler processes queue expiry tasks.
type ExpireStaleHandler struct {
	queue         QueueExpirer
	observer      ExpiryObserver
	defaultMaxAge time.Duration
}

// NewExpireStaleHandler creates the handler; observer may be nil.
func NewExpireStaleHandler(queue QueueExpirer, observer ExpiryObserver, defaultMaxAge time.Duration) *ExpireStaleHandler {
	return &ExpireStaleHandler{queue: queue, observer: observer, defaultMaxAge: defaultMaxAge}
}

// ProcessTask handles the expiry task.
func (h *ExpireStaleHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	ctx = telemetry.WithCorrelationID(ctx, telemetry.NewCorrelationID())
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "expire_stale_queue",
		"service":   "worker",
		"task_type": t.Type(),
	})

	payload, err := decodeExpireStalePayload(t)
	if err != nil {
		logger.WithError(err).Error("Dropping malformed task")
		return err
	}
	maxAge := payload.MaxAge()
	if maxAge == 0 {
		maxAge = h.defaultMaxAge
	}

	expired, err := h.queue.ExpireStale(ctx, maxAge)
	if err != nil {
		sentry.CaptureInfrastructureError(ctx, err, TypeExpireStaleQueue)
		return err
	}
	if h.observer != nil {
		h.observer.RecordQueueExpired(ctx, expired)
	}

	logger.WithFields(map[string]interface{}{
		"max_age": maxAge.String(),
		"expired": expired,
	}).Info("Queue expiry completed")
	return nil
}

// RefreshStatsHandler processes stats refresh tasks.
type RefreshStatsHandler struct {
	stats StatsRefresher
	now   func() time.Time
}

func NewRefreshStatsHandler(stats StatsRefresher) *RefreshStatsHandler {
	return &RefreshStatsHandler{stats: stats, now: time.Now}
}

// ProcessTask recomputes today's statistics into the cache.
func (h *RefreshStatsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	ctx = telemetry.WithCorrelationID(ctx, telemetry.NewCorrelationID())
	now := h.now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stats, err := h.stats.Refresh(ctx, since)
	if err != nil {
		sentry.CaptureInfrastructureError(ctx, err, TypeRefreshStats)
		return err
	}

	telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":     "refresh_stats",
		"service":       "worker",
		"total_matches": stats.TotalMatches,
		"matches_today": stats.MatchesToday,
	}).Debug("Stats cache refreshed")
	return nil
}
