package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/matching"
)

// PreferenceStore keeps one JSONB document per user in matching_preferences.
type PreferenceStore struct {
	db  *DB
	now func() time.Time
}

func NewPreferenceStore(db *DB) *PreferenceStore {
	return &PreferenceStore{db: db, now: time.Now}
}

const selectPreferences = `SELECT user_id, data, created_at, updated_at FROM matching_preferences`

func (s *PreferenceStore) Get(ctx context.Context, userID string) (*matching.MatchingPreferences, error) {
	row := s.db.QueryRowContext(ctx, selectPreferences+` WHERE user_id = $1`, userID)
	prefs, err := scanPreferences(row)
	if errors.Is(err, sql.ErrNoRows) {
		return matching.DefaultPreferences(userID), nil
	}
	if err != nil {
		return nil, wrapQueryError("get_preferences", userID, err)
	}
	return prefs, nil
}

func (s *PreferenceStore) GetMany(ctx context.Context, userIDs []string) (map[string]*matching.MatchingPreferences, error) {
	out := make(map[string]*matching.MatchingPreferences, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, selectPreferences+` WHERE user_id = ANY($1)`, pq.Array(userIDs))
	if err != nil {
		return nil, wrapQueryError("get_many_preferences", "", err)
	}
	defer rows.Close()

	for rows.Next() {
		prefs, err := scanPreferences(rows)
		if err != nil {
			return nil, wrapQueryError("get_many_preferences", "", err)
		}
		out[prefs.UserID] = prefs
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryError("get_many_preferences", "", err)
	}
	return out, nil
}

// Upsert seeds a default row if none exists, locks it, applies mutate and
// writes the result, all in one transaction. A mutate error rolls back the
// seed as well.
func (s *PreferenceStore) Upsert(ctx context.Context, userID string, mutate func(*matching.MatchingPreferences) error) (*matching.MatchingPreferences, error) {
	var saved *matching.MatchingPreferences

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		now := s.now().UTC()
		seed := matching.DefaultPreferences(userID)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO matching_preferences (user_id, data, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (user_id) DO NOTHING`,
			userID, PreferencesDocument{Preferences: seed}, now,
		); err != nil {
			return wrapQueryError("seed_preferences", userID, err)
		}

		row := tx.QueryRowContext(ctx, selectPreferences+` WHERE user_id = $1 FOR UPDATE`, userID)
		current, err := scanPreferences(row)
		if err != nil {
			return wrapQueryError("lock_preferences", userID, err)
		}

		if err := mutate(current); err != nil {
			return err
		}
		current.UserID = userID
		current.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, `
			UPDATE matching_preferences SET data = $2, updated_at = $3 WHERE user_id = $1`,
			userID, PreferencesDocument{Preferences: current}, now,
		); err != nil {
			return wrapQueryError("update_preferences", userID, err)
		}
		saved = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPreferences(row rowScanner) (*matching.MatchingPreferences, error) {
	var (
		userID    string
		doc       PreferencesDocument
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&userID, &doc, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	prefs := doc.Preferences
	if prefs == nil {
		prefs = matching.DefaultPreferences(userID)
	}
	prefs.UserID = userID
	prefs.CreatedAt = createdAt.UTC()
	prefs.UpdatedAt = updatedAt.UTC()
	return prefs, nil
}

// wrapQueryError leaves context errors untouched so callers can tell a
// deadline from a database failure.
func wrapQueryError(operation, targetID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.NewDatabaseError(operation, err).WithTarget(targetID)
}

var _ matching.PreferenceStore = (*PreferenceStore)(nil)
