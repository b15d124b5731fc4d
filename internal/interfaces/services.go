package interfaces

import (
	"context"
	"time"

	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/services"
)

// PreferenceServiceInterface defines the interface for preference operations
type PreferenceServiceInterface interface {
	GetPreferences(ctx context.Context, userID string) (*matching.MatchingPreferences, error)
	UpdatePreferences(ctx context.Context, userID string, update matching.PreferencesUpdate) (*matching.MatchingPreferences, error)
	UpdateDatingPreferences(ctx context.Context, userID string, update matching.DatingPreferencesUpdate) (*matching.MatchingPreferences, error)
}

// MatchServiceInterface defines the interface for ranking and attempt history
type MatchServiceInterface interface {
	FindMatches(ctx context.Context, userID, intent string, maxMatches int) (*services.FindMatchesResult, error)
	GetMatchHistory(ctx context.Context, userID string, limit, offset int) (*services.MatchHistory, error)
	GetMatchingStats(ctx context.Context) (*matching.MatchStats, error)
}

// QueueServiceInterface defines the interface for queue membership
type QueueServiceInterface interface {
	JoinQueue(ctx context.Context, userID, intent string) (*matching.QueueEntry, error)
	LeaveQueue(ctx context.Context, userID string) (bool, error)
	MarkMatched(ctx context.Context, userID string) (bool, error)
	ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

var (
	_ PreferenceServiceInterface = (*services.PreferenceService)(nil)
	_ MatchServiceInterface      = (*services.MatchService)(nil)
	_ QueueServiceInterface      = (*services.QueueService)(nil)
)
