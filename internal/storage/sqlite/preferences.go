package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/LuminLynx/misty/internal/weather"
	"github.com/LuminLynx/misty/pkg/logger"
)

const preferencesKey = "user_preferences"

// Preferences holds the user-facing settings persisted across restarts.
type Preferences struct {
	TemperatureUnit string            `json:"temperature_unit"` // "celsius" or "fahrenheit"
	Theme           string            `json:"theme"`            // "light" or "dark"
	Language        string            `json:"language"`
	DefaultLocation *weather.Location `json:"default_location,omitempty"`
}

// DefaultPreferences returns the settings used before the user changes
// anything.
func DefaultPreferences() Preferences {
	return Preferences{
		TemperatureUnit: "celsius",
		Theme:           "dark",
		Language:        "en",
	}
}

// Validate checks the enumerated fields.
func (p Preferences) Validate() error {
	switch p.TemperatureUnit {
	case "celsius", "fahrenheit":
	default:
		return fmt.Errorf("invalid temperature_unit: %s", p.TemperatureUnit)
	}
	switch p.Theme {
	case "light", "dark":
	default:
		return fmt.Errorf("invalid theme: %s", p.Theme)
	}
	if p.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}
	return nil
}

// PreferencesStore persists user preferences as a single JSON document.
type PreferencesStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewPreferencesStore creates a preferences store on the shared database.
func NewPreferencesStore(db *sql.DB, log *logger.Logger) *PreferencesStore {
	return &PreferencesStore{
		db:     db,
		logger: log.Named("preferences-store"),
	}
}

// Get returns the stored preferences, or the defaults when none exist.
func (s *PreferencesStore) Get() (Preferences, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, preferencesKey).Scan(&value)
	if err == sql.ErrNoRows {
		return DefaultPreferences(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("reading preferences: %w", err)
	}

	var prefs Preferences
	if err := json.Unmarshal([]byte(value), &prefs); err != nil {
		s.logger.Warn("Discarding corrupt preferences document", logger.Error(err))
		return DefaultPreferences(), nil
	}
	return prefs, nil
}

// Put overwrites the stored preferences.
func (s *PreferencesStore) Put(prefs Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}

	value, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		preferencesKey, string(value),
	)
	if err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}

	s.logger.Info("Preferences updated",
		logger.String("unit", prefs.TemperatureUnit),
		logger.String("theme", prefs.Theme),
		logger.String("language", prefs.Language))
	return nil
}
