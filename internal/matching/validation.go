package matching

import (
	"fmt"
	"math"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
)

const (
	MinBaseWeightSum = 0.8
	MaxBaseWeightSum = 1.2
	// weightSumEpsilon absorbs float noise such as 0.3+0.4+0.2+0.1.
	weightSumEpsilon = 1e-9
)

// Violation is one rejected rule.
type Violation struct {
	Field   string `json:"field"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ValidationResult lists every rule a preferences record breaks.
type ValidationResult struct {
	Violations []Violation `json:"violations"`
}

func (r ValidationResult) Valid() bool {
	return len(r.Violations) == 0
}

// Err converts the result into a validation AppError, or nil when valid.
// The first violation drives field and reason; all are attached as metadata.
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	first := r.Violations[0]
	return apperrors.NewValidationError(first.Field, first.Reason, first.Message).
		WithMetadata("violations", r.Violations)
}

func (r *ValidationResult) add(field, reason, format string, args ...interface{}) {
	r.Violations = append(r.Violations, Violation{
		Field:   field,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	})
}

// Validate checks a complete, merged preferences record. Callers validate
// the record that would be stored, never the partial update alone, so an
// invalid update cannot be half applied.
func Validate(p *MatchingPreferences) ValidationResult {
	var r ValidationResult
	if p == nil || p.UserID == "" {
		r.add("userId", apperrors.ReasonMissingUserID, "userId is required")
		return r
	}

	validateAgePair(&r, "minAge", "maxAge", p.MinAge, p.MaxAge,
		apperrors.ReasonAgeOutOfRange, apperrors.ReasonAgeRangeInverted)

	if p.PreferredMinAge != nil || p.PreferredMaxAge != nil {
		minAge, maxAge := MinAllowedAge, MaxAllowedAge
		if p.PreferredMinAge != nil {
			minAge = *p.PreferredMinAge
		}
		if p.PreferredMaxAge != nil {
			maxAge = *p.PreferredMaxAge
		}
		validateAgePair(&r, "preferredMinAge", "preferredMaxAge", minAge, maxAge,
			apperrors.ReasonPreferredAgeOutOfRange, apperrors.ReasonPreferredAgeRangeInverted)
		validateHalfDatingWindow(&r, p)
	}

	if p.MaxRadius < 0 || math.IsNaN(p.MaxRadius) {
		r.add("maxRadius", apperrors.ReasonNegativeRadius, "maxRadius must be non-negative, got %v", p.MaxRadius)
	}

	if !inUnitInterval(p.EthnicityImportance) {
		r.add("ethnicityImportance", apperrors.ReasonEthnicityImportanceOutOfRange,
			"ethnicityImportance must be within [0,1], got %v", p.EthnicityImportance)
	}

	validateBaseWeights(&r, p)

	for _, w := range []struct {
		field string
		value float64
	}{
		{"genderWeight", p.GenderWeight},
		{"relationshipIntentWeight", p.RelationshipIntentWeight},
		{"lifestyleWeight", p.LifestyleWeight},
	} {
		if !inUnitInterval(w.value) {
			r.add(w.field, apperrors.ReasonDatingWeightOutOfRange, "%s must be within [0,1], got %v", w.field, w.value)
		}
	}

	checkEnumSet(&r, "preferredGenders", p.PreferredGenders)
	checkEnumSet(&r, "preferredRelationshipIntents", p.PreferredRelationshipIntents)
	checkEnumSet(&r, "preferredFamilyPlans", p.PreferredFamilyPlans)
	checkEnumSet(&r, "preferredReligions", p.PreferredReligions)
	checkEnumSet(&r, "preferredEducationLevels", p.PreferredEducationLevels)
	checkEnumSet(&r, "preferredPoliticalViews", p.PreferredPoliticalViews)
	checkEnumSet(&r, "preferredExerciseHabits", p.PreferredExerciseHabits)
	checkEnumSet(&r, "preferredSmokingHabits", p.PreferredSmokingHabits)
	checkEnumSet(&r, "preferredDrinkingHabits", p.PreferredDrinkingHabits)

	validateProfile(&r, &p.Profile)

	return r
}

func validateAgePair(r *ValidationResult, minField, maxField string, minAge, maxAge int, outOfRange, inverted string) {
	ok := true
	if minAge < MinAllowedAge || minAge > MaxAllowedAge {
		r.add(minField, outOfRange, "%s must be within [%d,%d], got %d", minField, MinAllowedAge, MaxAllowedAge, minAge)
		ok = false
	}
	if maxAge < MinAllowedAge || maxAge > MaxAllowedAge {
		r.add(maxField, outOfRange, "%s must be within [%d,%d], got %d", maxField, MinAllowedAge, MaxAllowedAge, maxAge)
		ok = false
	}
	if ok && minAge > maxAge {
		r.add(minField, inverted, "%s (%d) must not exceed %s (%d)", minField, minAge, maxField, maxAge)
	}
}

// validateHalfDatingWindow rejects a lone dating bound that crosses the
// general bound it is paired with during scoring.
func validateHalfDatingWindow(r *ValidationResult, p *MatchingPreferences) {
	if (p.PreferredMinAge == nil) == (p.PreferredMaxAge == nil) {
		return
	}
	lo, hi := p.AgeWindow()
	if !ageAllowed(lo) || !ageAllowed(hi) || lo <= hi {
		return
	}
	if p.PreferredMinAge != nil {
		r.add("preferredMinAge", apperrors.ReasonPreferredAgeRangeInverted,
			"preferredMinAge (%d) must not exceed maxAge (%d)", lo, hi)
		return
	}
	r.add("preferredMaxAge", apperrors.ReasonPreferredAgeRangeInverted,
		"preferredMaxAge (%d) must not be below minAge (%d)", hi, lo)
}

func ageAllowed(age int) bool {
	return age >= MinAllowedAge && age <= MaxAllowedAge
}

func validateBaseWeights(r *ValidationResult, p *MatchingPreferences) {
	negative := false
	for _, w := range []struct {
		field string
		value float64
	}{
		{"ageWeight", p.AgeWeight},
		{"locationWeight", p.LocationWeight},
		{"interestWeight", p.InterestWeight},
		{"languageWeight", p.LanguageWeight},
	} {
		if w.value < 0 || math.IsNaN(w.value) {
			r.add(w.field, apperrors.ReasonNegativeWeight, "%s must be non-negative, got %v", w.field, w.value)
			negative = true
		}
	}
	if negative {
		return
	}

	sum := p.BaseWeightSum()
	if sum < MinBaseWeightSum-weightSumEpsilon || sum > MaxBaseWeightSum+weightSumEpsilon {
		r.add("weights", apperrors.ReasonWeightSumOutOfRange,
			"ageWeight+locationWeight+interestWeight+languageWeight must be within [%.1f,%.1f], got %.2f",
			MinBaseWeightSum, MaxBaseWeightSum, sum)
	}
}

func validateProfile(r *ValidationResult, profile *Profile) {
	if profile.Age != nil && (*profile.Age < MinAllowedAge || *profile.Age > MaxAllowedAge) {
		r.add("profile.age", apperrors.ReasonSelfAgeOutOfRange,
			"profile.age must be within [%d,%d], got %d", MinAllowedAge, MaxAllowedAge, *profile.Age)
	}
	if loc := profile.Location; loc != nil {
		if math.Abs(loc.Latitude) > 90 || math.Abs(loc.Longitude) > 180 ||
			math.IsNaN(loc.Latitude) || math.IsNaN(loc.Longitude) {
			r.add("profile.location", apperrors.ReasonCoordinateOutOfRange,
				"profile.location (%v,%v) is not a valid coordinate", loc.Latitude, loc.Longitude)
		}
	}

	checkEnumValue(r, "profile.gender", profile.Gender)
	checkEnumValue(r, "profile.relationshipIntent", profile.RelationshipIntent)
	checkEnumValue(r, "profile.familyPlan", profile.FamilyPlan)
	checkEnumValue(r, "profile.religion", profile.Religion)
	checkEnumValue(r, "profile.education", profile.Education)
	checkEnumValue(r, "profile.politicalView", profile.PoliticalView)
	checkEnumValue(r, "profile.exerciseHabit", profile.ExerciseHabit)
	checkEnumValue(r, "profile.smokingHabit", profile.SmokingHabit)
	checkEnumValue(r, "profile.drinkingHabit", profile.DrinkingHabit)
}

func checkEnumSet[T validatable](r *ValidationResult, field string, s Set[T]) {
	if bad, found := firstInvalid(s); found {
		r.add(field, apperrors.ReasonUnknownEnumValue, "%s contains unknown value %q", field, string(bad))
	}
}

func checkEnumValue[T validatable](r *ValidationResult, field string, v T) {
	if v != "" && !v.Valid() {
		r.add(field, apperrors.ReasonUnknownEnumValue, "%s has unknown value %q", field, string(v))
	}
}

func inUnitInterval(v float64) bool {
	return v >= 0 && v <= 1
}
