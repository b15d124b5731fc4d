package matching

import (
	"encoding/json"
	"sort"
	"strings"
)

// Gender is the closed set of genders a user can describe or prefer.
type Gender string

const (
	GenderMan       Gender = "MAN"
	GenderWoman     Gender = "WOMAN"
	GenderNonbinary Gender = "NONBINARY"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMan, GenderWoman, GenderNonbinary:
		return true
	}
	return false
}

// RelationshipIntent is what a user is looking for.
type RelationshipIntent string

const (
	IntentLongTerm             RelationshipIntent = "LONG_TERM"
	IntentCasualDates          RelationshipIntent = "CASUAL_DATES"
	IntentMarriage             RelationshipIntent = "MARRIAGE"
	IntentIntimacy             RelationshipIntent = "INTIMACY"
	IntentIntimacyNoCommitment RelationshipIntent = "INTIMACY_NO_COMMITMENT"
	IntentLifePartner          RelationshipIntent = "LIFE_PARTNER"
	IntentEthicalNonMonogamy   RelationshipIntent = "ETHICAL_NON_MONOGAMY"
)

func (r RelationshipIntent) Valid() bool {
	switch r {
	case IntentLongTerm, IntentCasualDates, IntentMarriage, IntentIntimacy,
		IntentIntimacyNoCommitment, IntentLifePartner, IntentEthicalNonMonogamy:
		return true
	}
	return false
}

type FamilyPlan string

const (
	FamilyHasKidsWantsMore      FamilyPlan = "HAS_KIDS_WANTS_MORE"
	FamilyHasKidsDoesntWantMore FamilyPlan = "HAS_KIDS_DOESNT_WANT_MORE"
	FamilyNoKidsWantsKids       FamilyPlan = "DOESNT_HAVE_KIDS_WANTS_KIDS"
	FamilyNoKidsDoesntWantKids  FamilyPlan = "DOESNT_HAVE_KIDS_DOESNT_WANT_KIDS"
	FamilyNotSureYet            FamilyPlan = "NOT_SURE_YET"
)

func (f FamilyPlan) Valid() bool {
	switch f {
	case FamilyHasKidsWantsMore, FamilyHasKidsDoesntWantMore, FamilyNoKidsWantsKids,
		FamilyNoKidsDoesntWantKids, FamilyNotSureYet:
		return true
	}
	return false
}

type Religion string

const (
	ReligionAgnostic  Religion = "AGNOSTIC"
	ReligionAtheist   Religion = "ATHEIST"
	ReligionBuddhist  Religion = "BUDDHIST"
	ReligionCatholic  Religion = "CATHOLIC"
	ReligionChristian Religion = "CHRISTIAN"
	ReligionHindu     Religion = "HINDU"
	ReligionJewish    Religion = "JEWISH"
	ReligionMuslim    Religion = "MUSLIM"
	ReligionSpiritual Religion = "SPIRITUAL"
	ReligionOther     Religion = "OTHER"
)

func (r Religion) Valid() bool {
	switch r {
	case ReligionAgnostic, ReligionAtheist, ReligionBuddhist, ReligionCatholic, ReligionChristian,
		ReligionHindu, ReligionJewish, ReligionMuslim, ReligionSpiritual, ReligionOther:
		return true
	}
	return false
}

type EducationLevel string

const (
	EducationHighSchool   EducationLevel = "HIGH_SCHOOL"
	EducationInCollege    EducationLevel = "IN_COLLEGE"
	EducationUndergrad    EducationLevel = "UNDERGRADUATE"
	EducationInGradSchool EducationLevel = "IN_GRAD_SCHOOL"
	EducationPostgrad     EducationLevel = "POSTGRADUATE"
)

func (e EducationLevel) Valid() bool {
	switch e {
	case EducationHighSchool, EducationInCollege, EducationUndergrad, EducationInGradSchool, EducationPostgrad:
		return true
	}
	return false
}

type PoliticalView string

const (
	PoliticsLiberal      PoliticalView = "LIBERAL"
	PoliticsModerate     PoliticalView = "MODERATE"
	PoliticsConservative PoliticalView = "CONSERVATIVE"
	PoliticsApolitical   PoliticalView = "APOLITICAL"
	PoliticsOther        PoliticalView = "OTHER"
)

func (p PoliticalView) Valid() bool {
	switch p {
	case PoliticsLiberal, PoliticsModerate, PoliticsConservative, PoliticsApolitical, PoliticsOther:
		return true
	}
	return false
}

// Habit is the frequency scale shared by exercise, smoking and drinking.
type Habit string

const (
	HabitFrequently Habit = "FREQUENTLY"
	HabitSocially   Habit = "SOCIALLY"
	HabitRarely     Habit = "RARELY"
	HabitNever      Habit = "NEVER"
)

func (h Habit) Valid() bool {
	switch h {
	case HabitFrequently, HabitSocially, HabitRarely, HabitNever:
		return true
	}
	return false
}

type QueueStatus string

const (
	QueueStatusWaiting QueueStatus = "WAITING"
	QueueStatusMatched QueueStatus = "MATCHED"
	QueueStatusLeft    QueueStatus = "LEFT"
)

func (s QueueStatus) Valid() bool {
	switch s {
	case QueueStatusWaiting, QueueStatusMatched, QueueStatusLeft:
		return true
	}
	return false
}

type AttemptStatus string

const (
	AttemptPending  AttemptStatus = "PENDING"
	AttemptAccepted AttemptStatus = "ACCEPTED"
	AttemptRejected AttemptStatus = "REJECTED"
)

func (s AttemptStatus) Valid() bool {
	switch s {
	case AttemptPending, AttemptAccepted, AttemptRejected:
		return true
	}
	return false
}

// Set is an unordered collection of distinct string-like values. It is kept
// sorted so that equal sets compare and serialize identically.
// An empty Set means "no preference".
type Set[T ~string] []T

// NewSet builds a Set, collapsing duplicates.
func NewSet[T ~string](values ...T) Set[T] {
	if len(values) == 0 {
		return Set[T]{}
	}
	out := make(Set[T], 0, len(values))
	seen := make(map[T]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewTagSet builds a Set of free-form tags, trimmed and lower-cased.
func NewTagSet(values ...string) Set[string] {
	normalized := make([]string, 0, len(values))
	for _, v := range values {
		if tag := normalizeTag(v); tag != "" {
			normalized = append(normalized, tag)
		}
	}
	return NewSet(normalized...)
}

func normalizeTag(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func (s Set[T]) Len() int { return len(s) }

func (s Set[T]) Contains(v T) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= v })
	return i < len(s) && s[i] == v
}

// Overlap counts members of other that are also in s.
func (s Set[T]) Overlap(other Set[T]) int {
	n := 0
	for _, v := range other {
		if s.Contains(v) {
			n++
		}
	}
	return n
}

func (s Set[T]) Clone() Set[T] {
	out := make(Set[T], len(s))
	copy(out, s)
	return out
}

// MarshalJSON never emits null so stored documents stay uniform.
func (s Set[T]) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]T(s))
}

func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var values []T
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewSet(values...)
	return nil
}

type validatable interface {
	~string
	Valid() bool
}

// firstInvalid returns the first member outside its enumeration.
func firstInvalid[T validatable](s Set[T]) (T, bool) {
	for _, v := range s {
		if !v.Valid() {
			return v, true
		}
	}
	var zero T
	return zero, false
}
