package matching

import (
	"strings"
	"time"
)

// Documented defaults applied when a user has no stored preferences or
// leaves a field unset on first write.
const (
	DefaultMinAge                   = 18
	DefaultMaxAge                   = 100
	DefaultMaxRadiusKm              = 50.0
	DefaultAgeWeight                = 0.3
	DefaultLocationWeight           = 0.4
	DefaultInterestWeight           = 0.2
	DefaultLanguageWeight           = 0.1
	DefaultGenderWeight             = 0.1
	DefaultRelationshipIntentWeight = 0.1
	DefaultLifestyleWeight          = 0.05

	MinAllowedAge = 18
	MaxAllowedAge = 100
)

// GeoPoint is a WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Profile is the snapshot of a user's own attributes that other seekers'
// preferences are scored against. Empty values mean "unknown".
type Profile struct {
	Age                *int               `json:"age,omitempty"`
	Gender             Gender             `json:"gender,omitempty"`
	Location           *GeoPoint          `json:"location,omitempty"`
	RelationshipIntent RelationshipIntent `json:"relationshipIntent,omitempty"`
	FamilyPlan         FamilyPlan         `json:"familyPlan,omitempty"`
	Religion           Religion           `json:"religion,omitempty"`
	Education          EducationLevel     `json:"education,omitempty"`
	PoliticalView      PoliticalView      `json:"politicalView,omitempty"`
	ExerciseHabit      Habit              `json:"exerciseHabit,omitempty"`
	SmokingHabit       Habit              `json:"smokingHabit,omitempty"`
	DrinkingHabit      Habit              `json:"drinkingHabit,omitempty"`
}

// MatchingPreferences is the per-user record driving both sides of scoring:
// the preference fields when the user seeks, the Profile and attribute sets
// when the user is a candidate.
type MatchingPreferences struct {
	UserID string `json:"userId"`

	MinAge    int     `json:"minAge"`
	MaxAge    int     `json:"maxAge"`
	MaxRadius float64 `json:"maxRadius"`

	Interests          Set[string] `json:"interests"`
	PreferredInterests Set[string] `json:"preferredInterests"`
	Languages          Set[string] `json:"languages"`
	PreferredLanguages Set[string] `json:"preferredLanguages"`

	Ethnicity            *string     `json:"ethnicity,omitempty"`
	PreferredEthnicities Set[string] `json:"preferredEthnicities"`
	EthnicityImportance  float64     `json:"ethnicityImportance"`

	AgeWeight      float64 `json:"ageWeight"`
	LocationWeight float64 `json:"locationWeight"`
	InterestWeight float64 `json:"interestWeight"`
	LanguageWeight float64 `json:"languageWeight"`

	PreferredGenders             Set[Gender]             `json:"preferredGenders"`
	PreferredRelationshipIntents Set[RelationshipIntent] `json:"preferredRelationshipIntents"`
	PreferredFamilyPlans         Set[FamilyPlan]         `json:"preferredFamilyPlans"`
	PreferredReligions           Set[Religion]           `json:"preferredReligions"`
	PreferredEducationLevels     Set[EducationLevel]     `json:"preferredEducationLevels"`
	PreferredPoliticalViews      Set[PoliticalView]      `json:"preferredPoliticalViews"`
	PreferredExerciseHabits      Set[Habit]              `json:"preferredExerciseHabits"`
	PreferredSmokingHabits       Set[Habit]              `json:"preferredSmokingHabits"`
	PreferredDrinkingHabits      Set[Habit]              `json:"preferredDrinkingHabits"`

	PreferredMinAge *int `json:"preferredMinAge,omitempty"`
	PreferredMaxAge *int `json:"preferredMaxAge,omitempty"`

	IsPremiumUser bool       `json:"isPremiumUser"`
	PremiumExpiry *time.Time `json:"premiumExpiry,omitempty"`

	GenderWeight             float64 `json:"genderWeight"`
	RelationshipIntentWeight float64 `json:"relationshipIntentWeight"`
	LifestyleWeight          float64 `json:"lifestyleWeight"`

	Profile Profile `json:"profile"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultPreferences returns the record a user gets before their first write.
func DefaultPreferences(userID string) *MatchingPreferences {
	return &MatchingPreferences{
		UserID:                       userID,
		MinAge:                       DefaultMinAge,
		MaxAge:                       DefaultMaxAge,
		MaxRadius:                    DefaultMaxRadiusKm,
		Interests:                    Set[string]{},
		PreferredInterests:           Set[string]{},
		Languages:                    Set[string]{},
		PreferredLanguages:           Set[string]{},
		PreferredEthnicities:         Set[string]{},
		AgeWeight:                    DefaultAgeWeight,
		LocationWeight:               DefaultLocationWeight,
		InterestWeight:               DefaultInterestWeight,
		LanguageWeight:               DefaultLanguageWeight,
		PreferredGenders:             Set[Gender]{},
		PreferredRelationshipIntents: Set[RelationshipIntent]{},
		PreferredFamilyPlans:         Set[FamilyPlan]{},
		PreferredReligions:           Set[Religion]{},
		PreferredEducationLevels:     Set[EducationLevel]{},
		PreferredPoliticalViews:      Set[PoliticalView]{},
		PreferredExerciseHabits:      Set[Habit]{},
		PreferredSmokingHabits:       Set[Habit]{},
		PreferredDrinkingHabits:      Set[Habit]{},
		GenderWeight:                 DefaultGenderWeight,
		RelationshipIntentWeight:     DefaultRelationshipIntentWeight,
		LifestyleWeight:              DefaultLifestyleWeight,
	}
}

// Clone returns a deep copy so callers can mutate without aliasing a store's record.
func (p *MatchingPreferences) Clone() *MatchingPreferences {
	if p == nil {
		return nil
	}
	c := *p
	c.Interests = p.Interests.Clone()
	c.PreferredInterests = p.PreferredInterests.Clone()
	c.Languages = p.Languages.Clone()
	c.PreferredLanguages = p.PreferredLanguages.Clone()
	c.PreferredEthnicities = p.PreferredEthnicities.Clone()
	c.PreferredGenders = p.PreferredGenders.Clone()
	c.PreferredRelationshipIntents = p.PreferredRelationshipIntents.Clone()
	c.PreferredFamilyPlans = p.PreferredFamilyPlans.Clone()
	c.PreferredReligions = p.PreferredReligions.Clone()
	c.PreferredEducationLevels = p.PreferredEducationLevels.Clone()
	c.PreferredPoliticalViews = p.PreferredPoliticalViews.Clone()
	c.PreferredExerciseHabits = p.PreferredExerciseHabits.Clone()
	c.PreferredSmokingHabits = p.PreferredSmokingHabits.Clone()
	c.PreferredDrinkingHabits = p.PreferredDrinkingHabits.Clone()
	c.Ethnicity = clonePtr(p.Ethnicity)
	c.PreferredMinAge = clonePtr(p.PreferredMinAge)
	c.PreferredMaxAge = clonePtr(p.PreferredMaxAge)
	c.PremiumExpiry = clonePtr(p.PremiumExpiry)
	c.Profile.Age = clonePtr(p.Profile.Age)
	c.Profile.Location = clonePtr(p.Profile.Location)
	return &c
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// BaseWeightSum is the sum of the four weights gated at validation.
func (p *MatchingPreferences) BaseWeightSum() float64 {
	return p.AgeWeight + p.LocationWeight + p.InterestWeight + p.LanguageWeight
}

// AgeWindow returns the dating window. A bound left unset falls back to the
// matching side of the general range.
func (p *MatchingPreferences) AgeWindow() (int, int) {
	lo, hi := p.MinAge, p.MaxAge
	if p.PreferredMinAge != nil {
		lo = *p.PreferredMinAge
	}
	if p.PreferredMaxAge != nil {
		hi = *p.PreferredMaxAge
	}
	return lo, hi
}

// PremiumActive reports whether the premium flag is set and unexpired at asOf.
func (p *MatchingPreferences) PremiumActive(asOf time.Time) bool {
	return p.IsPremiumUser && p.PremiumExpiry != nil && p.PremiumExpiry.After(asOf)
}

// PreferencesUpdate is a partial update of the general fields. Nil means
// "leave unchanged".
type PreferencesUpdate struct {
	MinAge    *int     `json:"minAge,omitempty"`
	MaxAge    *int     `json:"maxAge,omitempty"`
	MaxRadius *float64 `json:"maxRadius,omitempty"`

	Interests          *[]string `json:"interests,omitempty"`
	PreferredInterests *[]string `json:"preferredInterests,omitempty"`
	Languages          *[]string `json:"languages,omitempty"`
	PreferredLanguages *[]string `json:"preferredLanguages,omitempty"`

	Ethnicity            *string   `json:"ethnicity,omitempty"`
	PreferredEthnicities *[]string `json:"preferredEthnicities,omitempty"`
	EthnicityImportance  *float64  `json:"ethnicityImportance,omitempty"`

	AgeWeight      *float64 `json:"ageWeight,omitempty"`
	LocationWeight *float64 `json:"locationWeight,omitempty"`
	InterestWeight *float64 `json:"interestWeight,omitempty"`
	LanguageWeight *float64 `json:"languageWeight,omitempty"`

	IsPremiumUser *bool      `json:"isPremiumUser,omitempty"`
	PremiumExpiry *time.Time `json:"premiumExpiry,omitempty"`

	Profile *ProfileUpdate `json:"profile,omitempty"`
}

// ProfileUpdate is a partial update of the self description. An empty enum
// value resets that attribute to unknown.
type ProfileUpdate struct {
	Age                *int                `json:"age,omitempty"`
	Gender             *Gender             `json:"gender,omitempty"`
	Location           *GeoPoint           `json:"location,omitempty"`
	RelationshipIntent *RelationshipIntent `json:"relationshipIntent,omitempty"`
	FamilyPlan         *FamilyPlan         `json:"familyPlan,omitempty"`
	Religion           *Religion           `json:"religion,omitempty"`
	Education          *EducationLevel     `json:"education,omitempty"`
	PoliticalView      *PoliticalView      `json:"politicalView,omitempty"`
	ExerciseHabit      *Habit              `json:"exerciseHabit,omitempty"`
	SmokingHabit       *Habit              `json:"smokingHabit,omitempty"`
	DrinkingHabit      *Habit              `json:"drinkingHabit,omitempty"`
}

// Apply merges the update into profile in place.
func (u ProfileUpdate) Apply(profile *Profile) {
	if u.Age != nil {
		profile.Age = clonePtr(u.Age)
	}
	if u.Location != nil {
		profile.Location = clonePtr(u.Location)
	}
	setIfPresent(&profile.Gender, u.Gender)
	setIfPresent(&profile.RelationshipIntent, u.RelationshipIntent)
	setIfPresent(&profile.FamilyPlan, u.FamilyPlan)
	setIfPresent(&profile.Religion, u.Religion)
	setIfPresent(&profile.Education, u.Education)
	setIfPresent(&profile.PoliticalView, u.PoliticalView)
	setIfPresent(&profile.ExerciseHabit, u.ExerciseHabit)
	setIfPresent(&profile.SmokingHabit, u.SmokingHabit)
	setIfPresent(&profile.DrinkingHabit, u.DrinkingHabit)
}

// Apply merges the update into p in place.
func (u PreferencesUpdate) Apply(p *MatchingPreferences) {
	setIfPresent(&p.MinAge, u.MinAge)
	setIfPresent(&p.MaxAge, u.MaxAge)
	setIfPresent(&p.MaxRadius, u.MaxRadius)
	setTagsIfPresent(&p.Interests, u.Interests)
	setTagsIfPresent(&p.PreferredInterests, u.PreferredInterests)
	setTagsIfPresent(&p.Languages, u.Languages)
	setTagsIfPresent(&p.PreferredLanguages, u.PreferredLanguages)
	setTagsIfPresent(&p.PreferredEthnicities, u.PreferredEthnicities)
	setIfPresent(&p.EthnicityImportance, u.EthnicityImportance)
	setIfPresent(&p.AgeWeight, u.AgeWeight)
	setIfPresent(&p.LocationWeight, u.LocationWeight)
	setIfPresent(&p.InterestWeight, u.InterestWeight)
	setIfPresent(&p.LanguageWeight, u.LanguageWeight)
	setIfPresent(&p.IsPremiumUser, u.IsPremiumUser)

	if u.Ethnicity != nil {
		if tag := normalizeTag(*u.Ethnicity); tag != "" {
			p.Ethnicity = &tag
		} else {
			p.Ethnicity = nil
		}
	}
	if u.PremiumExpiry != nil {
		expiry := u.PremiumExpiry.UTC()
		p.PremiumExpiry = &expiry
	}
	if u.Profile != nil {
		u.Profile.Apply(&p.Profile)
	}
}

// DatingPreferencesUpdate is a partial update of the dating-specific fields.
type DatingPreferencesUpdate struct {
	PreferredGenders             *[]Gender             `json:"preferredGenders,omitempty"`
	PreferredRelationshipIntents *[]RelationshipIntent `json:"preferredRelationshipIntents,omitempty"`
	PreferredFamilyPlans         *[]FamilyPlan         `json:"preferredFamilyPlans,omitempty"`
	PreferredReligions           *[]Religion           `json:"preferredReligions,omitempty"`
	PreferredEducationLevels     *[]EducationLevel     `json:"preferredEducationLevels,omitempty"`
	PreferredPoliticalViews      *[]PoliticalView      `json:"preferredPoliticalViews,omitempty"`
	PreferredExerciseHabits      *[]Habit              `json:"preferredExerciseHabits,omitempty"`
	PreferredSmokingHabits       *[]Habit              `json:"preferredSmokingHabits,omitempty"`
	PreferredDrinkingHabits      *[]Habit              `json:"preferredDrinkingHabits,omitempty"`

	PreferredMinAge *int `json:"preferredMinAge,omitempty"`
	PreferredMaxAge *int `json:"preferredMaxAge,omitempty"`
	// ClearPreferredAgeRange drops the dating window so the general range applies.
	ClearPreferredAgeRange bool `json:"clearPreferredAgeRange,omitempty"`

	GenderWeight             *float64 `json:"genderWeight,omitempty"`
	RelationshipIntentWeight *float64 `json:"relationshipIntentWeight,omitempty"`
	LifestyleWeight          *float64 `json:"lifestyleWeight,omitempty"`
}

// Apply merges the update into p in place.
func (u DatingPreferencesUpdate) Apply(p *MatchingPreferences) {
	setSetIfPresent(&p.PreferredGenders, u.PreferredGenders)
	setSetIfPresent(&p.PreferredRelationshipIntents, u.PreferredRelationshipIntents)
	setSetIfPresent(&p.PreferredFamilyPlans, u.PreferredFamilyPlans)
	setSetIfPresent(&p.PreferredReligions, u.PreferredReligions)
	setSetIfPresent(&p.PreferredEducationLevels, u.PreferredEducationLevels)
	setSetIfPresent(&p.PreferredPoliticalViews, u.PreferredPoliticalViews)
	setSetIfPresent(&p.PreferredExerciseHabits, u.PreferredExerciseHabits)
	setSetIfPresent(&p.PreferredSmokingHabits, u.PreferredSmokingHabits)
	setSetIfPresent(&p.PreferredDrinkingHabits, u.PreferredDrinkingHabits)
	setIfPresent(&p.GenderWeight, u.GenderWeight)
	setIfPresent(&p.RelationshipIntentWeight, u.RelationshipIntentWeight)
	setIfPresent(&p.LifestyleWeight, u.LifestyleWeight)

	if u.ClearPreferredAgeRange {
		p.PreferredMinAge = nil
		p.PreferredMaxAge = nil
	}
	if u.PreferredMinAge != nil {
		p.PreferredMinAge = clonePtr(u.PreferredMinAge)
	}
	if u.PreferredMaxAge != nil {
		p.PreferredMaxAge = clonePtr(u.PreferredMaxAge)
	}
}

func setIfPresent[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setTagsIfPresent(dst *Set[string], src *[]string) {
	if src != nil {
		*dst = NewTagSet(*src...)
	}
}

func setSetIfPresent[T ~string](dst *Set[T], src *[]T) {
	if src == nil {
		return
	}
	values := make([]T, 0, len(*src))
	for _, v := range *src {
		values = append(values, T(strings.ToUpper(strings.TrimSpace(string(v)))))
	}
	*dst = NewSet(values...)
}
