package driving

import "github.com/custodia-labs/sentinel/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get resolves settings from config, environment and defaults.
	Get() (*domain.Settings, error)

	// Set stores a single config key after validating it.
	Set(key, value string) error

	// Keys lists the supported config keys.
	Keys() []string

	// Lookup returns the resolved value of one key, formatted for display.
	Lookup(key string) (string, error)

	// Validate checks the resolved settings.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings
}
