package database

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/matching"
)

// AttemptStore appends to match_attempts; rows are never updated by the
// matching engine.
type AttemptStore struct {
	db *DB
}

func NewAttemptStore(db *DB) *AttemptStore {
	return &AttemptStore{db: db}
}

const attemptColumns = `id, user1_id, user2_id, total_score,
	age_score, location_score, interest_score, language_score, ethnicity_score,
	gender_score, relationship_intent_score, family_plans_score, religion_score,
	education_score, political_score, lifestyle_score, premium_bonus,
	algorithm, metadata, status, created_at`

func (s *AttemptStore) Insert(ctx context.Context, attempt *matching.MatchAttempt) error {
	if attempt == nil || strings.TrimSpace(attempt.ID) == "" {
		return apperrors.NewValidationError("id", apperrors.ReasonMalformedRequest, "attempt id is required")
	}

	sc := attempt.Scores
	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	status := attempt.Status
	if status == "" {
		status = matching.AttemptPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO NOTHING`,
		attempt.ID, attempt.User1ID, attempt.User2ID, sc.Total,
		sc.Age, sc.Location, sc.Interest, sc.Language, sc.Ethnicity,
		sc.GenderCompat, sc.RelationshipIntent, sc.FamilyPlans, sc.Religion,
		sc.Education, sc.Political, sc.Lifestyle, sc.PremiumBonus,
		attempt.Algorithm, AttemptMetadata(attempt.Metadata), string(status), createdAt.UTC(),
	)
	if err != nil {
		return wrapQueryError("insert_match_attempt", attempt.ID, err)
	}
	return nil
}

func (s *AttemptStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]matching.MatchAttempt, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM match_attempts WHERE user1_id = $1 OR user2_id = $1`,
		userID).Scan(&total); err != nil {
		return nil, 0, wrapQueryError("count_match_history", userID, err)
	}

	attempts := make([]matching.MatchAttempt, 0)
	if total == 0 || int64(offset) >= total {
		return attempts, total, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+attemptColumns+` FROM match_attempts
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, wrapQueryError("list_match_history", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, 0, wrapQueryError("list_match_history", userID, err)
		}
		attempts = append(attempts, *attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapQueryError("list_match_history", userID, err)
	}
	return attempts, total, nil
}

func (s *AttemptStore) Stats(ctx context.Context, since time.Time) (*matching.MatchStats, error) {
	stats := &matching.MatchStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= $1),
			COALESCE(AVG(total_score), 0),
			COUNT(*) FILTER (WHERE status = 'ACCEPTED')
		FROM match_attempts`,
		since.UTC(),
	).Scan(&stats.TotalMatches, &stats.MatchesToday, &stats.AvgMatchScore, &stats.SuccessfulMatches)
	if err != nil {
		return nil, wrapQueryError("match_stats", "", err)
	}
	return stats, nil
}

func scanAttempt(row rowScanner) (*matching.MatchAttempt, error) {
	var (
		a        matching.MatchAttempt
		metadata AttemptMetadata
		status   string
	)
	sc := &a.Scores
	if err := row.Scan(
		&a.ID, &a.User1ID, &a.User2ID, &sc.Total,
		&sc.Age, &sc.Location, &sc.Interest, &sc.Language, &sc.Ethnicity,
		&sc.GenderCompat, &sc.RelationshipIntent, &sc.FamilyPlans, &sc.Religion,
		&sc.Education, &sc.Political, &sc.Lifestyle, &sc.PremiumBonus,
		&a.Algorithm, &metadata, &status, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.Metadata = matching.AttemptMetadata(metadata)
	a.Status = matching.AttemptStatus(status)
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

var _ matching.MatchAttemptStore = (*AttemptStore)(nil)
