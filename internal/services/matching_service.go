package services

import (
	"context"
	"time"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

const (
	DefaultMaxMatches      = 10
	DefaultHistoryPageSize = 20
	MaxHistoryPageSize     = 100
)

// MatchResult is one ranked candidate in display form.
type MatchResult struct {
	CandidateID    string                    `json:"candidateId"`
	MatchAttemptID string                    `json:"matchAttemptId"`
	TotalScorePct  int                       `json:"totalScorePct"`
	BreakdownPct   matching.BreakdownPercent `json:"breakdownPct"`
}

// FindMatchesResult is the response of FindMatches.
type FindMatchesResult struct {
	Matches   []MatchResult `json:"matches"`
	Algorithm string        `json:"algorithm"`
	Timestamp time.Time     `json:"timestamp"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

// MatchHistory is the response of GetMatchHistory.
type MatchHistory struct {
	Matches    []matching.MatchAttempt `json:"matches"`
	Pagination Pagination              `json:"pagination"`
}

// MatchServiceConfig holds the request defaults of a MatchService.
type MatchServiceConfig struct {
	DefaultMaxMatches int
	HistoryPageSize   int
	StoreTimeout      time.Duration
	Now               func() time.Time
}

// MatchService runs rankings and reads the attempt log.
type MatchService struct {
	ranker            *matching.MatchRanker
	attempts          matching.MatchAttemptStore
	defaultMaxMatches int
	historyPageSize   int
	timeout           time.Duration
	now               func() time.Time
}

func NewMatchService(ranker *matching.MatchRanker, attempts matching.MatchAttemptStore, config MatchServiceConfig) *MatchService {
	s := &MatchService{
		ranker:            ranker,
		attempts:          attempts,
		defaultMaxMatches: config.DefaultMaxMatches,
		historyPageSize:   config.HistoryPageSize,
		timeout:           config.StoreTimeout,
		now:               config.Now,
	}
	if s.defaultMaxMatches <= 0 {
		s.defaultMaxMatches = DefaultMaxMatches
	}
	if s.historyPageSize <= 0 {
		s.historyPageSize = DefaultHistoryPageSize
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// FindMatches ranks the waiting pool for userID. maxMatches of 0 means the
// configured default.
func (s *MatchService) FindMatches(ctx context.Context, userID, intent string, maxMatches int) (*FindMatchesResult, error) {
	if maxMatches == 0 {
		maxMatches = s.defaultMaxMatches
	}

	ranked, err := s.ranker.FindBestMatches(ctx, userID, intent, maxMatches)
	if err != nil {
		return nil, err
	}

	matches := make([]MatchResult, len(ranked))
	for i, r := range ranked {
		matches[i] = MatchResult{
			CandidateID:    r.CandidateID,
			MatchAttemptID: r.MatchAttemptID,
			TotalScorePct:  matching.Percent(r.Breakdown.Total),
			BreakdownPct:   r.Breakdown.Percent(),
		}
	}

	return &FindMatchesResult{
		Matches:   matches,
		Algorithm: matching.Algorithm,
		Timestamp: s.now().UTC(),
	}, nil
}

// GetMatchHistory pages through the attempts involving userID, newest
// first. A user with no attempts gets an empty page.
func (s *MatchService) GetMatchHistory(ctx context.Context, userID string, limit, offset int) (*MatchHistory, error) {
	if err := matching.RequireUserID("userId", userID); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = s.historyPageSize
	}
	if limit < 0 || limit > MaxHistoryPageSize {
		return nil, apperrors.NewValidationError("limit", apperrors.ReasonInvalidPagination,
			"limit must be between 1 and 100")
	}
	if offset < 0 {
		return nil, apperrors.NewValidationError("offset", apperrors.ReasonInvalidPagination,
			"offset must not be negative")
	}

	var (
		attempts []matching.MatchAttempt
		total    int64
	)
	err := matching.CallStore(ctx, s.timeout, "list match history", userID, func(ctx context.Context) error {
		var listErr error
		attempts, total, listErr = s.attempts.ListByUser(ctx, userID, limit, offset)
		return listErr
	})
	if err != nil {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation": "get_match_history",
			"service":   "matching",
			"user_id":   userID,
		}).WithError(err).Error("Failed to list match history")
		return nil, err
	}
	if attempts == nil {
		attempts = []matching.MatchAttempt{}
	}

	return &MatchHistory{
		Matches: attempts,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			Total:   total,
			HasMore: int64(offset+len(attempts)) < total,
		},
	}, nil
}

// GetMatchingStats aggregates the attempt log; "today" starts at midnight UTC.
func (s *MatchService) GetMatchingStats(ctx context.Context) (*matching.MatchStats, error) {
	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var stats *matching.MatchStats
	err := matching.CallStore(ctx, s.timeout, "aggregate match stats", "", func(ctx context.Context) error {
		var statsErr error
		stats, statsErr = s.attempts.Stats(ctx, since)
		return statsErr
	})
	if err != nil {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation": "get_matching_stats",
			"service":   "matching",
		}).WithError(err).Error("Failed to aggregate match stats")
		return nil, err
	}
	return stats, nil
}
