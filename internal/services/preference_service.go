package services

import (
	"context"
	"time"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

// PreferenceService reads and partially updates matching preferences.
// Updates are merged into the stored record (or defaults) and the merged
// record is validated before anything is written.
type PreferenceService struct {
	store   matching.PreferenceStore
	timeout time.Duration
}

func NewPreferenceService(store matching.PreferenceStore, timeout time.Duration) *PreferenceService {
	return &PreferenceService{store: store, timeout: timeout}
}

// GetPreferences returns the stored record, or defaults for an unknown user.
func (s *PreferenceService) GetPreferences(ctx context.Context, userID string) (*matching.MatchingPreferences, error) {
	if err := matching.RequireUserID("userId", userID); err != nil {
		return nil, err
	}

	var prefs *matching.MatchingPreferences
	err := matching.CallStore(ctx, s.timeout, "get preferences", userID, func(ctx context.Context) error {
		var getErr error
		prefs, getErr = s.store.Get(ctx, userID)
		return getErr
	})
	if err != nil {
		s.logger(ctx, "get_preferences", userID).WithError(err).Error("Failed to load preferences")
		return nil, err
	}
	return prefs, nil
}

// UpdatePreferences applies a partial update of the general fields.
func (s *PreferenceService) UpdatePreferences(ctx context.Context, userID string, update matching.PreferencesUpdate) (*matching.MatchingPreferences, error) {
	return s.upsert(ctx, "update_preferences", userID, update.Apply)
}

// UpdateDatingPreferences applies a partial update of the dating fields.
func (s *PreferenceService) UpdateDatingPreferences(ctx context.Context, userID string, update matching.DatingPreferencesUpdate) (*matching.MatchingPreferences, error) {
	return s.upsert(ctx, "update_dating_preferences", userID, update.Apply)
}

func (s *PreferenceService) upsert(ctx context.Context, operation, userID string, apply func(*matching.MatchingPreferences)) (*matching.MatchingPreferences, error) {
	if err := matching.RequireUserID("userId", userID); err != nil {
		return nil, err
	}
	logger := s.logger(ctx, operation, userID)

	var saved *matching.MatchingPreferences
	err := matching.CallStore(ctx, s.timeout, "upsert preferences", userID, func(ctx context.Context) error {
		var upsertErr error
		saved, upsertErr = s.store.Upsert(ctx, userID, func(p *matching.MatchingPreferences) error {
			apply(p)
			return matching.Validate(p).Err()
		})
		return upsertErr
	})
	if err != nil {
		if apperrors.IsErrorType(err, apperrors.ErrorTypeValidation) {
			logger.WithField("reason", apperrors.Reason(err)).Warn("Rejected preference update")
		} else {
			logger.WithError(err).Error("Failed to store preferences")
		}
		return nil, err
	}

	logger.Info("Preferences updated")
	return saved, nil
}

func (s *PreferenceService) logger(ctx context.Context, operation, userID string) *telemetry.ContextualLogger {
	return telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": operation,
		"service":   "preferences",
		"user_id":   userID,
	})
}
