package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/meetsmatch/matchqueue/internal/matching"
)

// PreferencesDocument stores a MatchingPreferences record in a JSONB column.
// The user id and timestamps live in their own columns and are restored by
// the store after scanning.
type PreferencesDocument struct {
	Preferences *matching.MatchingPreferences
}

// Implement driver.Valuer and sql.Scanner for PreferencesDocument
func (d PreferencesDocument) Value() (driver.Value, error) {
	if d.Preferences == nil {
		return nil, fmt.Errorf("cannot store empty preferences document")
	}
	return json.Marshal(d.Preferences)
}

func (d *PreferencesDocument) Scan(value interface{}) error {
	if value == nil {
		d.Preferences = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into PreferencesDocument", value)
	}

	// absent fields keep their defaults so older documents stay readable
	prefs := matching.DefaultPreferences("")
	if err := json.Unmarshal(raw, prefs); err != nil {
		return err
	}
	d.Preferences = prefs
	return nil
}

// AttemptMetadata is the JSONB metadata column of match_attempts.
type AttemptMetadata matching.AttemptMetadata

// Implement driver.Valuer and sql.Scanner for AttemptMetadata
func (m AttemptMetadata) Value() (driver.Value, error) {
	return json.Marshal(matching.AttemptMetadata(m))
}

func (m *AttemptMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = AttemptMetadata{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, (*matching.AttemptMetadata)(m))
	case string:
		return json.Unmarshal([]byte(v), (*matching.AttemptMetadata)(m))
	default:
		return fmt.Errorf("cannot scan %T into AttemptMetadata", value)
	}
}
