// Package memstore holds in-process implementations of the matching stores,
// used by tests and by the single-node "memory" storage driver.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/matching"
)

// Clock returns the current time; stores take one so tests can pin it.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// PreferenceStore keeps preferences in a map guarded by a mutex.
type PreferenceStore struct {
	mutex   sync.RWMutex
	records map[string]*matching.MatchingPreferences
	clock   Clock
}

func NewPreferenceStore(clock Clock) *PreferenceStore {
	return &PreferenceStore{
		records: make(map[string]*matching.MatchingPreferences),
		clock:   clock,
	}
}

func (s *PreferenceStore) Get(ctx context.Context, userID string) (*matching.MatchingPreferences, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if p, ok := s.records[userID]; ok {
		return p.Clone(), nil
	}
	return matching.DefaultPreferences(userID), nil
}

func (s *PreferenceStore) GetMany(ctx context.Context, userIDs []string) (map[string]*matching.MatchingPreferences, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make(map[string]*matching.MatchingPreferences, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.records[id]; ok {
			out[id] = p.Clone()
		}
	}
	return out, nil
}

// Upsert holds the write lock across read, mutate and store, so concurrent
// upserts for a user serialize.
func (s *PreferenceStore) Upsert(ctx context.Context, userID string, mutate func(*matching.MatchingPreferences) error) (*matching.MatchingPreferences, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.clock.now()
	var working *matching.MatchingPreferences
	if current, ok := s.records[userID]; ok {
		working = current.Clone()
	} else {
		working = matching.DefaultPreferences(userID)
		working.CreatedAt = now
	}

	if err := mutate(working); err != nil {
		return nil, err
	}
	working.UserID = userID
	working.UpdatedAt = now

	s.records[userID] = working
	return working.Clone(), nil
}

// Len reports how many users have stored preferences.
func (s *PreferenceStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.records)
}

// QueueStore keeps queue entries in insertion order.
type QueueStore struct {
	mutex   sync.RWMutex
	entries []*matching.QueueEntry
	waiting map[string]*matching.QueueEntry
	clock   Clock
}

func NewQueueStore(clock Clock) *QueueStore {
	return &QueueStore{
		waiting: make(map[string]*matching.QueueEntry),
		clock:   clock,
	}
}

func (s *QueueStore) Join(ctx context.Context, userID, intent string) (*matching.QueueEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.clock.now()
	if current, ok := s.waiting[userID]; ok {
		if current.Intent == intent {
			c := *current
			return &c, nil
		}
		current.Status = matching.QueueStatusLeft
		current.UpdatedAt = now
		delete(s.waiting, userID)
	}

	entry := &matching.QueueEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    matching.QueueStatusWaiting,
		Intent:    intent,
		JoinedAt:  now,
		UpdatedAt: now,
	}
	s.entries = append(s.entries, entry)
	s.waiting[userID] = entry

	c := *entry
	return &c, nil
}

func (s *QueueStore) Leave(ctx context.Context, userID string) (bool, error) {
	return s.transition(ctx, userID, matching.QueueStatusLeft)
}

func (s *QueueStore) MarkMatched(ctx context.Context, userID string) (bool, error) {
	return s.transition(ctx, userID, matching.QueueStatusMatched)
}

func (s *QueueStore) transition(ctx context.Context, userID string, status matching.QueueStatus) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, ok := s.waiting[userID]
	if !ok {
		return false, nil
	}
	current.Status = status
	current.UpdatedAt = s.clock.now()
	delete(s.waiting, userID)
	return true, nil
}

func (s *QueueStore) ListWaiting(ctx context.Context, intent, excludeUserID string, limit int) ([]matching.QueueEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	out := make([]matching.QueueEntry, 0, len(s.waiting))
	for _, e := range s.waiting {
		if e.Intent == intent && e.UserID != excludeUserID {
			out = append(out, *e)
		}
	}
	s.mutex.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *QueueStore) ExpireStale(ctx context.Context, olderThan time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.clock.now()
	var expired int64
	for userID, e := range s.waiting {
		if e.JoinedAt.Before(olderThan) {
			e.Status = matching.QueueStatusLeft
			e.UpdatedAt = now
			delete(s.waiting, userID)
			expired++
		}
	}
	return expired, nil
}

// Entries returns a copy of every entry ever created, oldest first.
func (s *QueueStore) Entries() []matching.QueueEntry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]matching.QueueEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = *e
	}
	return out
}

// AttemptStore is an append-only attempt log.
type AttemptStore struct {
	mutex    sync.RWMutex
	attempts []matching.MatchAttempt
	ids      map[string]struct{}
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{ids: make(map[string]struct{})}
}

func (s *AttemptStore) Insert(ctx context.Context, attempt *matching.MatchAttempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if attempt == nil || strings.TrimSpace(attempt.ID) == "" {
		return apperrors.NewValidationError("id", apperrors.ReasonMalformedRequest, "attempt id is required")
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.ids[attempt.ID]; exists {
		return nil
	}
	s.ids[attempt.ID] = struct{}{}
	s.attempts = append(s.attempts, *attempt)
	return nil
}

func (s *AttemptStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]matching.MatchAttempt, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mutex.RLock()
	matched := make([]matching.MatchAttempt, 0)
	for _, a := range s.attempts {
		if a.User1ID == userID || a.User2ID == userID {
			matched = append(matched, a)
		}
	}
	s.mutex.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []matching.MatchAttempt{}, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (s *AttemptStore) Stats(ctx context.Context, since time.Time) (*matching.MatchStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := &matching.MatchStats{}
	var sum float64
	for _, a := range s.attempts {
		stats.TotalMatches++
		sum += a.Scores.Total
		if !a.CreatedAt.Before(since) {
			stats.MatchesToday++
		}
		if a.Status == matching.AttemptAccepted {
			stats.SuccessfulMatches++
		}
	}
	if stats.TotalMatches > 0 {
		stats.AvgMatchScore = sum / float64(stats.TotalMatches)
	}
	return stats, nil
}

// All returns a copy of the log in insertion order.
func (s *AttemptStore) All() []matching.MatchAttempt {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]matching.MatchAttempt, len(s.attempts))
	copy(out, s.attempts)
	return out
}

var (
	_ matching.PreferenceStore   = (*PreferenceStore)(nil)
	_ matching.QueueStore        = (*QueueStore)(nil)
	_ matching.MatchAttemptStore = (*AttemptStore)(nil)
)
