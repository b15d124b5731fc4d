package matching

import (
	"context"
	"time"
)

// PreferenceStore persists MatchingPreferences keyed by user id.
type PreferenceStore interface {
	// Get returns the stored record, or documented defaults when none exists.
	Get(ctx context.Context, userID string) (*MatchingPreferences, error)
	// GetMany returns records for the ids that exist; absent ids are omitted.
	GetMany(ctx context.Context, userIDs []string) (map[string]*MatchingPreferences, error)
	// Upsert reads the current record (or defaults), lets mutate change it and
	// stores the result atomically. If mutate fails nothing is written.
	Upsert(ctx context.Context, userID string, mutate func(*MatchingPreferences) error) (*MatchingPreferences, error)
}

// QueueStore persists QueueEntry records. Implementations keep at most one
// WAITING entry per user.
type QueueStore interface {
	// Join puts the user in the queue for intent. Joining again with the same
	// intent returns the existing entry; a different intent retires the old
	// entry as LEFT and creates a new one.
	Join(ctx context.Context, userID, intent string) (*QueueEntry, error)
	// Leave marks the user's WAITING entry LEFT; false when none was waiting.
	Leave(ctx context.Context, userID string) (bool, error)
	// MarkMatched marks the user's WAITING entry MATCHED.
	MarkMatched(ctx context.Context, userID string) (bool, error)
	// ListWaiting returns up to limit WAITING entries for intent, excluding
	// excludeUserID, oldest first with user id as secondary key.
	ListWaiting(ctx context.Context, intent, excludeUserID string, limit int) ([]QueueEntry, error)
	// ExpireStale marks WAITING entries joined before olderThan as LEFT.
	ExpireStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// MatchAttemptStore is the append-only log of ranking decisions.
type MatchAttemptStore interface {
	// Insert is idempotent on attempt id.
	Insert(ctx context.Context, attempt *MatchAttempt) error
	// ListByUser returns attempts where the user is either side, newest first,
	// and the total number of such attempts.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]MatchAttempt, int64, error)
	// Stats aggregates the whole log; matchesToday counts attempts at or after since.
	Stats(ctx context.Context, since time.Time) (*MatchStats, error)
}
