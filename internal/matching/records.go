package matching

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
)

const maxIntentLength = 64

// QueueEntry is one stay of a user in the waiting queue.
type QueueEntry struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Status    QueueStatus `json:"status"`
	Intent    string      `json:"intent"`
	JoinedAt  time.Time   `json:"joinedAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NormalizeIntent trims and lower-cases an intent tag and rejects empty or
// oversized values.
func NormalizeIntent(intent string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(intent))
	if normalized == "" {
		return "", apperrors.NewValidationError("intent", apperrors.ReasonMissingIntent, "intent is required")
	}
	if utf8.RuneCountInString(normalized) > maxIntentLength {
		return "", apperrors.NewValidationError("intent", apperrors.ReasonIntentTooLong,
			"intent must be at most 64 characters")
	}
	return normalized, nil
}

// RequireUserID rejects an empty user id.
func RequireUserID(field, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperrors.NewValidationError(field, apperrors.ReasonMissingUserID, field+" is required")
	}
	return nil
}

// AttemptMetadata snapshots the request that produced an attempt.
type AttemptMetadata struct {
	Intent    string    `json:"intent"`
	Timestamp time.Time `json:"timestamp"`
	Rank      int       `json:"rank"`
	PoolSize  int       `json:"poolSize"`
}

// MatchAttempt is the immutable audit record of one ranking decision.
type MatchAttempt struct {
	ID        string          `json:"id"`
	User1ID   string          `json:"user1Id"`
	User2ID   string          `json:"user2Id"`
	Scores    ScoreBreakdown  `json:"scores"`
	Algorithm string          `json:"algorithm"`
	Metadata  AttemptMetadata `json:"metadata"`
	Status    AttemptStatus   `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// MatchStats aggregates the attempt log.
type MatchStats struct {
	TotalMatches      int64   `json:"totalMatches"`
	MatchesToday      int64   `json:"matchesToday"`
	AvgMatchScore     float64 `json:"avgMatchScore"`
	SuccessfulMatches int64   `json:"successfulMatches"`
}

// RankedMatch is one entry of a ranking result.
type RankedMatch struct {
	CandidateID    string         `json:"candidateId"`
	MatchAttemptID string         `json:"matchAttemptId"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
}
