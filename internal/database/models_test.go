package database

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetsmatch/matchqueue/internal/matching"
)

func TestPreferencesDocument_ValueAndScan(t *testing.T) {
	prefs := matching.DefaultPreferences("u1")
	prefs.MinAge = 27
	prefs.Interests = matching.NewTagSet("hiking", "chess")
	prefs.PreferredReligions = matching.NewSet(matching.ReligionHindu)

	value, err := PreferencesDocument{Preferences: prefs}.Value()
	require.NoError(t, err)

	raw, ok := value.([]byte)
	require.True(t, ok)

	tests := []struct {
		name  string
		input interface{}
	}{
		{"bytes", raw},
		{"string", string(raw)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc PreferencesDocument
			require.NoError(t, doc.Scan(tt.input))
			require.NotNil(t, doc.Preferences)
			assert.Equal(t, 27, doc.Preferences.MinAge)
			assert.Equal(t, prefs.Interests, doc.Preferences.Interests)
			assert.Equal(t, prefs.PreferredReligions, doc.Preferences.PreferredReligions)
		})
	}
}

func TestPreferencesDocument_ScanFillsDefaults(t *testing.T) {
	var doc PreferencesDocument
	require.NoError(t, doc.Scan([]byte(`{"minAge": 30}`)))

	assert.Equal(t, 30, doc.Preferences.MinAge)
	assert.Equal(t, matching.DefaultMaxAge, doc.Preferences.MaxAge)
	assert.Equal(t, matching.DefaultAgeWeight, doc.Preferences.AgeWeight)
}

func TestPreferencesDocument_Errors(t *testing.T) {
	_, err := PreferencesDocument{}.Value()
	assert.Error(t, err)

	var doc PreferencesDocument
	assert.Error(t, doc.Scan(42))
	assert.Error(t, doc.Scan([]byte(`{not json`)))

	require.NoError(t, doc.Scan(nil))
	assert.Nil(t, doc.Preferences)
}

func TestAttemptMetadata_ValueAndScan(t *testing.T) {
	meta := AttemptMetadata{
		Intent:    "casual",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Rank:      2,
		PoolSize:  40,
	}

	value, err := meta.Value()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(value.([]byte), &decoded))
	assert.Equal(t, "casual", decoded["intent"])
	assert.Equal(t, float64(40), decoded["poolSize"])

	var scanned AttemptMetadata
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, meta, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Equal(t, AttemptMetadata{}, scanned)
	assert.Error(t, scanned.Scan(3.5))
}
