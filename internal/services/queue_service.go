package services

import (
	"context"
	"time"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// QueueService moves users in and out of the waiting queue.
type QueueService struct {
	queue   matching.QueueStore
	timeout time.Duration
	now     func() time.Time
}

func NewQueueService(queue matching.QueueStore, timeout time.Duration) *QueueService {
	return &QueueService{queue: queue, timeout: timeout, now: time.Now}
}

// JoinQueue puts userID in the queue for intent. Rejoining with the same
// intent is a no-op returning the existing entry.
func (s *QueueService) JoinQueue(ctx context.Context, userID, intent string) (*matching.QueueEntry, error) {
	if err := matching.RequireUserID("userId", userID); err != nil {
		return nil, err
	}
	normalized, err := matching.NormalizeIntent(intent)
	if err != nil {
		return nil, err
	}

	var entry *matching.QueueEntry
	err = matching.CallStore(ctx, s.timeout, "join queue", userID, func(ctx context.Context) error {
		var joinErr error
		entry, joinErr = s.queue.Join(ctx, userID, normalized)
		return joinErr
	})
	logger := s.logger(ctx, "join_queue", userID)
	if err != nil {
		logger.WithError(err).Error("Failed to join queue")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"intent":   entry.Intent,
		"entry_id": entry.ID,
	}).Info("User waiting in queue")
	return entry, nil
}

// LeaveQueue retires the user's waiting entry; false when none was waiting.
func (s *QueueService) LeaveQueue(ctx context.Context, userID string) (bool, error) {
	return s.transition(ctx, "leave_queue", userID, s.queue.Leave)
}

// MarkMatched records that the user's waiting entry ended in a match.
func (s *QueueService) MarkMatched(ctx context.Context, userID string) (bool, error) {
	return s.transition(ctx, "mark_matched", userID, s.queue.MarkMatched)
}

func (s *QueueService) transition(ctx context.Context, operation, userID string, fn func(context.Context, string) (bool, error)) (bool, error) {
	if err := matching.RequireUserID("userId", userID); err != nil {
		return false, err
	}

	var changed bool
	err := matching.CallStore(ctx, s.timeout, operation, userID, func(ctx context.Context) error {
		var transitionErr error
		changed, transitionErr = fn(ctx, userID)
		return transitionErr
	})
	logger := s.logger(ctx, operation, userID)
	if err != nil {
		logger.WithError(err).Error("Queue transition failed")
		return false, err
	}
	logger.WithField("changed", changed).Info("Queue transition applied")
	return changed, nil
}

// ExpireStale retires entries that have waited longer than maxAge.
func (s *QueueService) ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, apperrors.NewValidationError("maxAge", apperrors.ReasonMalformedRequest, "maxAge must be positive")
	}
	cutoff := s.now().UTC().Add(-maxAge)

	var expired int64
	err := matching.CallStore(ctx, s.timeout, "expire stale queue entries", "", func(ctx context.Context) error {
		var expireErr error
		expired, expireErr = s.queue.ExpireStale(ctx, cutoff)
		return expireErr
	})
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "expire_stale",
		"service":   "queue",
		"cutoff":    cutoff,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to expire stale queue entries")
		return 0, err
	}
	logger.WithField("expired", expired).Info("Expired stale queue entries")
	return expired, nil
}

func (s *QueueService) logger(ctx context.Context, operation, userID string) *telemetry.ContextualLogger {
	return telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": operation,
		"service":   "queue",
		"user_id":   userID,
	})
}
