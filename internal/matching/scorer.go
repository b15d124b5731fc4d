package matching

import (
	"math"
	"time"
)

const (
	// Algorithm tags every attempt produced by this scorer.
	Algorithm = "dating_v1"

	// MinorDimensionWeight is the fixed weight of family plans, religion,
	// education and political view.
	MinorDimensionWeight = 0.05

	// MaxPremiumBonus caps the additive premium term.
	MaxPremiumBonus = 0.05

	// ageDecayYears is how far outside the window the age score reaches 0.
	ageDecayYears = 10.0
)

// ScoreBreakdown holds every per-dimension subscore in [0,1], the premium
// bonus and the clipped total.
type ScoreBreakdown struct {
	Age                float64 `json:"age"`
	Location           float64 `json:"location"`
	Interest           float64 `json:"interest"`
	Language           float64 `json:"language"`
	Ethnicity          float64 `json:"ethnicity"`
	GenderCompat       float64 `json:"genderCompat"`
	RelationshipIntent float64 `json:"relationshipIntent"`
	FamilyPlans        float64 `json:"familyPlans"`
	Religion           float64 `json:"religion"`
	Education          float64 `json:"education"`
	Political          float64 `json:"political"`
	Lifestyle          float64 `json:"lifestyle"`
	PremiumBonus       float64 `json:"premiumBonus"`
	Total              float64 `json:"total"`
}

// BreakdownPercent is the 0-100 display form of a ScoreBreakdown.
type BreakdownPercent struct {
	Age                int `json:"age"`
	Location           int `json:"location"`
	Interest           int `json:"interest"`
	Language           int `json:"language"`
	Ethnicity          int `json:"ethnicity"`
	GenderCompat       int `json:"genderCompat"`
	RelationshipIntent int `json:"relationshipIntent"`
	FamilyPlans        int `json:"familyPlans"`
	Religion           int `json:"religion"`
	Education          int `json:"education"`
	Political          int `json:"political"`
	Lifestyle          int `json:"lifestyle"`
	PremiumBonus       int `json:"premiumBonus"`
}

// Percent converts a [0,1] score to its rounded 0-100 display value.
func Percent(score float64) int {
	return int(math.Round(score * 100))
}

func (b ScoreBreakdown) Percent() BreakdownPercent {
	return BreakdownPercent{
		Age:                Percent(b.Age),
		Location:           Percent(b.Location),
		Interest:           Percent(b.Interest),
		Language:           Percent(b.Language),
		Ethnicity:          Percent(b.Ethnicity),
		GenderCompat:       Percent(b.GenderCompat),
		RelationshipIntent: Percent(b.RelationshipIntent),
		FamilyPlans:        Percent(b.FamilyPlans),
		Religion:           Percent(b.Religion),
		Education:          Percent(b.Education),
		Political:          Percent(b.Political),
		Lifestyle:          Percent(b.Lifestyle),
		PremiumBonus:       Percent(b.PremiumBonus),
	}
}

// Scorer computes compatibility between a seeker and one candidate. It holds
// no mutable state and is safe for concurrent use.
type Scorer struct {
	premiumBonus float64
}

// NewScorer builds a scorer awarding premiumBonus to active premium
// candidates; the value is clamped to [0, MaxPremiumBonus].
func NewScorer(premiumBonus float64) *Scorer {
	if math.IsNaN(premiumBonus) || premiumBonus < 0 {
		premiumBonus = 0
	}
	return &Scorer{premiumBonus: math.Min(premiumBonus, MaxPremiumBonus)}
}

// DefaultScorer awards the full premium bonus.
func DefaultScorer() *Scorer {
	return NewScorer(MaxPremiumBonus)
}

// Score rates candidate against seeker's preferences. asOf is the instant
// premium expiry is compared to, so equal inputs always yield equal output.
func (s *Scorer) Score(seeker, candidate *MatchingPreferences, asOf time.Time) ScoreBreakdown {
	c := &candidate.Profile
	b := ScoreBreakdown{
		Age:                ageScore(seeker, c.Age),
		Location:           locationScore(seeker, candidate),
		Interest:           overlapScore(seeker.PreferredInterests, candidate.Interests),
		Language:           overlapScore(seeker.PreferredLanguages, candidate.Languages),
		Ethnicity:          ethnicityScore(seeker.PreferredEthnicities, candidate.Ethnicity),
		GenderCompat:       membership(seeker.PreferredGenders, c.Gender),
		RelationshipIntent: membership(seeker.PreferredRelationshipIntents, c.RelationshipIntent),
		FamilyPlans:        membership(seeker.PreferredFamilyPlans, c.FamilyPlan),
		Religion:           membership(seeker.PreferredReligions, c.Religion),
		Education:          membership(seeker.PreferredEducationLevels, c.Education),
		Political:          membership(seeker.PreferredPoliticalViews, c.PoliticalView),
		Lifestyle: (membership(seeker.PreferredExerciseHabits, c.ExerciseHabit) +
			membership(seeker.PreferredSmokingHabits, c.SmokingHabit) +
			membership(seeker.PreferredDrinkingHabits, c.DrinkingHabit)) / 3,
	}

	if candidate.PremiumActive(asOf) {
		b.PremiumBonus = s.premiumBonus
	}

	weighted := seeker.AgeWeight*b.Age +
		seeker.LocationWeight*b.Location +
		seeker.InterestWeight*b.Interest +
		seeker.LanguageWeight*b.Language +
		seeker.GenderWeight*b.GenderCompat +
		seeker.RelationshipIntentWeight*b.RelationshipIntent +
		seeker.LifestyleWeight*b.Lifestyle +
		seeker.EthnicityImportance*b.Ethnicity +
		MinorDimensionWeight*(b.FamilyPlans+b.Religion+b.Education+b.Political)

	b.Total = clip01(weighted + b.PremiumBonus)
	return b
}

func ageScore(seeker *MatchingPreferences, age *int) float64 {
	if age == nil {
		return 0
	}
	lo, hi := seeker.AgeWindow()
	a := *age
	var outside int
	switch {
	case a < lo:
		outside = lo - a
	case a > hi:
		outside = a - hi
	default:
		return 1
	}
	return clip01(1 - float64(outside)/ageDecayYears)
}

func locationScore(seeker, candidate *MatchingPreferences) float64 {
	radius := seeker.MaxRadius
	from, to := seeker.Profile.Location, candidate.Profile.Location
	if radius <= 0 || from == nil || to == nil {
		return 0
	}
	d := DistanceKm(*from, *to)
	return clip01(1 - math.Min(d, radius)/radius)
}

// overlapScore is |candidate ∩ preferred| / |preferred|, neutral when the
// seeker states no preference.
func overlapScore(preferred, candidate Set[string]) float64 {
	if preferred.Len() == 0 {
		return 1
	}
	return clip01(float64(candidate.Overlap(preferred)) / float64(preferred.Len()))
}

func ethnicityScore(preferred Set[string], ethnicity *string) float64 {
	if preferred.Len() == 0 {
		return 1
	}
	if ethnicity == nil {
		return 0
	}
	return membership(preferred, *ethnicity)
}

// membership is 1 when the preference set is empty or contains v. An unknown
// attribute never satisfies a stated preference.
func membership[T ~string](preferred Set[T], v T) float64 {
	if preferred.Len() == 0 {
		return 1
	}
	if v != "" && preferred.Contains(v) {
		return 1
	}
	return 0
}

func clip01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
