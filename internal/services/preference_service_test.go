package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/memstore"
)

func ptr[T any](v T) *T { return &v }

func TestPreferenceService_GetDefaults(t *testing.T) {
	service := NewPreferenceService(memstore.NewPreferenceStore(fixedClock), 0)

	prefs, err := service.GetPreferences(context.Background(), "new-user")
	require.NoError(t, err)
	assert.Equal(t, "new-user", prefs.UserID)
	assert.Equal(t, matching.DefaultMinAge, prefs.MinAge)
	assert.Equal(t, matching.DefaultMaxAge, prefs.MaxAge)
	assert.InDelta(t, 1.0, prefs.BaseWeightSum(), 1e-9)
}

func TestPreferenceService_GetRequiresUserID(t *testing.T) {
	service := NewPreferenceService(memstore.NewPreferenceStore(fixedClock), 0)

	_, err := service.GetPreferences(context.Background(), " ")
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonMissingUserID, apperrors.Reason(err))
}

func TestPreferenceService_UpdatePreferences(t *testing.T) {
	tests := []struct {
		name    string
		update  matching.PreferencesUpdate
		wantErr string
	}{
		{
			name:   "weights summing to one",
			update: matching.PreferencesUpdate{AgeWeight: ptr(0.3), LocationWeight: ptr(0.4), InterestWeight: ptr(0.2), LanguageWeight: ptr(0.1)},
		},
		{
			name:    "weights summing to 2.1",
			update:  matching.PreferencesUpdate{AgeWeight: ptr(0.9), LocationWeight: ptr(0.9), InterestWeight: ptr(0.2), LanguageWeight: ptr(0.1)},
			wantErr: apperrors.ReasonWeightSumOutOfRange,
		},
		{
			name:    "inverted age window",
			update:  matching.PreferencesUpdate{MinAge: ptr(30), MaxAge: ptr(25)},
			wantErr: apperrors.ReasonAgeRangeInverted,
		},
		{
			name:   "full age window",
			update: matching.PreferencesUpdate{MinAge: ptr(18), MaxAge: ptr(100)},
		},
		{
			name:   "interests only",
			update: matching.PreferencesUpdate{Interests: &[]string{"Hiking", "chess"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.NewPreferenceStore(fixedClock)
			service := NewPreferenceService(store, 0)

			saved, err := service.UpdatePreferences(context.Background(), "u1", tt.update)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeValidation))
				assert.Equal(t, tt.wantErr, apperrors.Reason(err))
				assert.Equal(t, 0, store.Len(), "rejected update must not be written")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", saved.UserID)
			assert.Equal(t, 1, store.Len())
		})
	}
}

func TestPreferenceService_UpdateMergesWithStored(t *testing.T) {
	store := memstore.NewPreferenceStore(fixedClock)
	service := NewPreferenceService(store, 0)
	ctx := context.Background()

	_, err := service.UpdatePreferences(ctx, "u1", matching.PreferencesUpdate{MinAge: ptr(25)})
	require.NoError(t, err)

	// MaxAge 20 is only invalid against the stored MinAge.
	_, err = service.UpdatePreferences(ctx, "u1", matching.PreferencesUpdate{MaxAge: ptr(20)})
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonAgeRangeInverted, apperrors.Reason(err))

	current, err := service.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 25, current.MinAge)
	assert.Equal(t, matching.DefaultMaxAge, current.MaxAge)
}

func TestPreferenceService_UpdateDatingPreferences(t *testing.T) {
	store := memstore.NewPreferenceStore(fixedClock)
	service := NewPreferenceService(store, 0)
	ctx := context.Background()

	saved, err := service.UpdateDatingPreferences(ctx, "u1", matching.DatingPreferencesUpdate{
		PreferredGenders: &[]matching.Gender{matching.GenderWoman},
		PreferredMinAge:  ptr(25),
		PreferredMaxAge:  ptr(35),
		GenderWeight:     ptr(0.5),
	})
	require.NoError(t, err)
	assert.True(t, saved.PreferredGenders.Contains(matching.GenderWoman))
	assert.Equal(t, 25, *saved.PreferredMinAge)
	assert.InDelta(t, 0.5, saved.GenderWeight, 1e-9)

	_, err = service.UpdateDatingPreferences(ctx, "u1", matching.DatingPreferencesUpdate{
		PreferredGenders: &[]matching.Gender{"ALIEN"},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonUnknownEnumValue, apperrors.Reason(err))

	_, err = service.UpdateDatingPreferences(ctx, "u1", matching.DatingPreferencesUpdate{LifestyleWeight: ptr(1.5)})
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonDatingWeightOutOfRange, apperrors.Reason(err))

	cleared, err := service.UpdateDatingPreferences(ctx, "u1", matching.DatingPreferencesUpdate{ClearPreferredAgeRange: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.PreferredMinAge)
	assert.True(t, cleared.PreferredGenders.Contains(matching.GenderWoman), "unrelated fields survive")
}
