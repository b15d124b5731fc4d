package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/matching"
)

// maxJoinAttempts bounds retries when a writer outside Join wins the
// one-waiting-entry index.
const maxJoinAttempts = 3

// QueueStore keeps queue_entries; the partial unique index on
// (user_id) WHERE status = 'WAITING' enforces one waiting entry per user.
type QueueStore struct {
	db  *DB
	now func() time.Time
}

func NewQueueStore(db *DB) *QueueStore {
	return &QueueStore{db: db, now: time.Now}
}

const queueColumns = `id, user_id, status, intent, joined_at, updated_at`

func (s *QueueStore) Join(ctx context.Context, userID, intent string) (*matching.QueueEntry, error) {
	for attempt := 0; attempt < maxJoinAttempts; attempt++ {
		entry, err := s.tryJoin(ctx, userID, intent)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}
	return nil, apperrors.NewDatabaseError("join_queue",
		errors.New("concurrent joins kept conflicting")).WithTarget(userID)
}

// tryJoin returns nil, nil when another transaction inserted a waiting entry
// for the user first.
func (s *QueueStore) tryJoin(ctx context.Context, userID, intent string) (*matching.QueueEntry, error) {
	var joined *matching.QueueEntry

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		now := s.now().UTC()

		// serializes joins for one user; released at commit or rollback
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
			return wrapQueryError("join_queue", userID, err)
		}

		row := tx.QueryRowContext(ctx,
			`SELECT `+queueColumns+` FROM queue_entries WHERE user_id = $1 AND status = 'WAITING' FOR UPDATE`,
			userID)
		current, err := scanQueueEntry(row)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return wrapQueryError("join_queue", userID, err)
		case current.Intent == intent:
			joined = current
			return nil
		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE queue_entries SET status = 'LEFT', updated_at = $2 WHERE id = $1`,
				current.ID, now); err != nil {
				return wrapQueryError("join_queue", userID, err)
			}
		}

		row = tx.QueryRowContext(ctx, `
			INSERT INTO queue_entries (`+queueColumns+`)
			VALUES ($1, $2, 'WAITING', $3, $4, $4)
			ON CONFLICT (user_id) WHERE status = 'WAITING' DO NOTHING
			RETURNING `+queueColumns,
			uuid.New().String(), userID, intent, now)
		entry, err := scanQueueEntry(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return wrapQueryError("join_queue", userID, err)
		}
		joined = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return joined, nil
}

func (s *QueueStore) Leave(ctx context.Context, userID string) (bool, error) {
	return s.transition(ctx, "leave_queue", userID, matching.QueueStatusLeft)
}

func (s *QueueStore) MarkMatched(ctx context.Context, userID string) (bool, error) {
	return s.transition(ctx, "mark_matched", userID, matching.QueueStatusMatched)
}

func (s *QueueStore) transition(ctx context.Context, operation, userID string, status matching.QueueStatus) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE queue_entries SET status = $2, updated_at = $3 WHERE user_id = $1 AND status = 'WAITING'`,
		userID, string(status), s.now().UTC())
	if err != nil {
		return false, wrapQueryError(operation, userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, wrapQueryError(operation, userID, err)
	}
	return affected > 0, nil
}

func (s *QueueStore) ListWaiting(ctx context.Context, intent, excludeUserID string, limit int) ([]matching.QueueEntry, error) {
	if limit <= 0 {
		limit = matching.CandidatePoolCap
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+queueColumns+` FROM queue_entries
		WHERE status = 'WAITING' AND intent = $1 AND user_id <> $2
		ORDER BY joined_at, user_id
		LIMIT $3`,
		intent, excludeUserID, limit)
	if err != nil {
		return nil, wrapQueryError("list_waiting", "", err)
	}
	defer rows.Close()

	entries := make([]matching.QueueEntry, 0, limit)
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, wrapQueryError("list_waiting", "", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryError("list_waiting", "", err)
	}
	return entries, nil
}

func (s *QueueStore) ExpireStale(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE queue_entries SET status = 'LEFT', updated_at = $2 WHERE status = 'WAITING' AND joined_at < $1`,
		olderThan.UTC(), s.now().UTC())
	if err != nil {
		return 0, wrapQueryError("expire_stale", "", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, wrapQueryError("expire_stale", "", err)
	}
	return affected, nil
}

func scanQueueEntry(row rowScanner) (*matching.QueueEntry, error) {
	var (
		entry  matching.QueueEntry
		status string
	)
	if err := row.Scan(&entry.ID, &entry.UserID, &status, &entry.Intent, &entry.JoinedAt, &entry.UpdatedAt); err != nil {
		return nil, err
	}
	entry.Status = matching.QueueStatus(status)
	entry.JoinedAt = entry.JoinedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return &entry, nil
}

var _ matching.QueueStore = (*QueueStore)(nil)
