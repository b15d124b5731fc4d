package matching

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSet_CollapsesAndSorts(t *testing.T) {
	s := NewSet(HabitNever, HabitFrequently, HabitNever)
	assert.Equal(t, Set[Habit]{HabitFrequently, HabitNever}, s)
	assert.True(t, s.Contains(HabitNever))
	assert.False(t, s.Contains(HabitRarely))
	assert.Equal(t, 0, NewSet[Habit]().Len())
}

func TestNewTagSet_Normalizes(t *testing.T) {
	s := NewTagSet(" Hiking", "hiking", "JAZZ ", "", "  ")
	assert.Equal(t, Set[string]{"hiking", "jazz"}, s)
}

func TestSet_JSON(t *testing.T) {
	var s Set[Gender]
	require.NoError(t, json.Unmarshal([]byte(`["WOMAN","MAN","WOMAN"]`), &s))
	assert.Equal(t, Set[Gender]{GenderMan, GenderWoman}, s)

	var empty Set[string]
	data, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestPreferences_JSONRoundTripKeepsSets(t *testing.T) {
	p := DefaultPreferences("u1")
	p.PreferredGenders = NewSet(GenderWoman)
	p.Profile.Age = intPtr(31)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded MatchingPreferences
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, p.PreferredGenders, decoded.PreferredGenders)
	assert.Equal(t, 31, *decoded.Profile.Age)
	assert.Equal(t, p.AgeWeight, decoded.AgeWeight)
}

func TestPreferences_CloneIsDeep(t *testing.T) {
	p := DefaultPreferences("u1")
	p.Interests = NewTagSet("a", "b")
	p.PreferredMinAge = intPtr(20)
	p.Profile.Location = point(1, 2)

	c := p.Clone()
	c.Interests[0] = "z"
	*c.PreferredMinAge = 50
	c.Profile.Location.Latitude = 9

	assert.Equal(t, "a", p.Interests[0])
	assert.Equal(t, 20, *p.PreferredMinAge)
	assert.Equal(t, 1.0, p.Profile.Location.Latitude)
	assert.Nil(t, (*MatchingPreferences)(nil).Clone())
}

func TestPreferencesUpdate_Apply(t *testing.T) {
	p := DefaultPreferences("u1")
	minAge := 21
	interests := []string{"Chess", "chess", "Go"}
	ethnicity := "  Mixed "
	premium := true
	expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))

	PreferencesUpdate{
		MinAge:        &minAge,
		Interests:     &interests,
		Ethnicity:     &ethnicity,
		IsPremiumUser: &premium,
		PremiumExpiry: &expiry,
		Profile:       &ProfileUpdate{Age: intPtr(29), Gender: ptr(GenderMan)},
	}.Apply(p)

	assert.Equal(t, 21, p.MinAge)
	assert.Equal(t, DefaultMaxAge, p.MaxAge, "unset fields unchanged")
	assert.Equal(t, Set[string]{"chess", "go"}, p.Interests)
	require.NotNil(t, p.Ethnicity)
	assert.Equal(t, "mixed", *p.Ethnicity)
	assert.True(t, p.IsPremiumUser)
	assert.Equal(t, time.UTC, p.PremiumExpiry.Location())
	assert.Equal(t, GenderMan, p.Profile.Gender)

	blank := ""
	PreferencesUpdate{Ethnicity: &blank}.Apply(p)
	assert.Nil(t, p.Ethnicity)
}

func TestPreferencesUpdate_ProfileMergesFieldByField(t *testing.T) {
	p := DefaultPreferences("u1")

	PreferencesUpdate{Profile: &ProfileUpdate{
		Age:      intPtr(30),
		Location: point(52.52, 13.405),
		Religion: ptr(ReligionBuddhist),
	}}.Apply(p)
	PreferencesUpdate{Profile: &ProfileUpdate{Gender: ptr(GenderWoman)}}.Apply(p)

	require.NotNil(t, p.Profile.Age)
	assert.Equal(t, 30, *p.Profile.Age)
	require.NotNil(t, p.Profile.Location)
	assert.Equal(t, 52.52, p.Profile.Location.Latitude)
	assert.Equal(t, ReligionBuddhist, p.Profile.Religion)
	assert.Equal(t, GenderWoman, p.Profile.Gender)

	PreferencesUpdate{Profile: &ProfileUpdate{Religion: ptr(Religion(""))}}.Apply(p)
	assert.Empty(t, p.Profile.Religion)
	assert.Equal(t, 30, *p.Profile.Age)
}

func TestPreferencesUpdate_ProfileDoesNotAliasUpdate(t *testing.T) {
	p := DefaultPreferences("u1")
	update := ProfileUpdate{Age: intPtr(41), Location: point(1, 2)}

	update.Apply(&p.Profile)
	*update.Age = 50
	update.Location.Latitude = 9

	assert.Equal(t, 41, *p.Profile.Age)
	assert.Equal(t, 1.0, p.Profile.Location.Latitude)
}

func TestProfileUpdate_JSONKeepsUnsetFieldsNil(t *testing.T) {
	var update PreferencesUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"profile":{"gender":"WOMAN"}}`), &update))
	require.NotNil(t, update.Profile)
	assert.Nil(t, update.Profile.Age)
	assert.Nil(t, update.Profile.Location)
	require.NotNil(t, update.Profile.Gender)
	assert.Equal(t, GenderWoman, *update.Profile.Gender)
}

func TestDatingPreferencesUpdate_Apply(t *testing.T) {
	p := DefaultPreferences("u1")
	genders := []Gender{"woman", " NONBINARY "}
	weight := 0.3

	DatingPreferencesUpdate{
		PreferredGenders: &genders,
		PreferredMinAge:  intPtr(25),
		PreferredMaxAge:  intPtr(35),
		GenderWeight:     &weight,
	}.Apply(p)

	assert.Equal(t, Set[Gender]{GenderNonbinary, GenderWoman}, p.PreferredGenders)
	assert.Equal(t, 0.3, p.GenderWeight)
	lo, hi := p.AgeWindow()
	assert.Equal(t, 25, lo)
	assert.Equal(t, 35, hi)

	DatingPreferencesUpdate{ClearPreferredAgeRange: true}.Apply(p)
	lo, hi = p.AgeWindow()
	assert.Equal(t, DefaultMinAge, lo)
	assert.Equal(t, DefaultMaxAge, hi)
}

func TestNormalizeIntent(t *testing.T) {
	got, err := NormalizeIntent("  Serious ")
	require.NoError(t, err)
	assert.Equal(t, "serious", got)

	_, err = NormalizeIntent("   ")
	assert.Error(t, err)

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	_, err = NormalizeIntent(string(long))
	assert.Error(t, err)
}
