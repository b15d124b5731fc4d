package matching

import (
	"context"
	"time"
)

// CandidatePoolCap bounds how many waiting users one ranking call scores.
const CandidatePoolCap = 100

// CandidateSelector pulls the bounded, intent-filtered candidate pool. It
// takes no reservation on the entries it returns.
type CandidateSelector struct {
	queue   QueueStore
	timeout time.Duration
}

func NewCandidateSelector(queue QueueStore, timeout time.Duration) *CandidateSelector {
	return &CandidateSelector{queue: queue, timeout: timeout}
}

// Select returns at most CandidatePoolCap waiting user ids for intent, oldest
// first, never including the seeker.
func (s *CandidateSelector) Select(ctx context.Context, seekerID, intent string) ([]string, error) {
	if err := RequireUserID("seekerId", seekerID); err != nil {
		return nil, err
	}
	normalized, err := NormalizeIntent(intent)
	if err != nil {
		return nil, err
	}

	var entries []QueueEntry
	err = CallStore(ctx, s.timeout, "list waiting queue entries", seekerID, func(ctx context.Context) error {
		var listErr error
		entries, listErr = s.queue.ListWaiting(ctx, normalized, seekerID, CandidatePoolCap)
		return listErr
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.UserID == seekerID || e.Status != QueueStatusWaiting || e.Intent != normalized {
			continue
		}
		if _, dup := seen[e.UserID]; dup {
			continue
		}
		seen[e.UserID] = struct{}{}
		ids = append(ids, e.UserID)
		if len(ids) == CandidatePoolCap {
			break
		}
	}
	return ids, nil
}
