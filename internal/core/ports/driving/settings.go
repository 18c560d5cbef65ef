package driving

import "github.com/custodia-labs/ragline/internal/core/domain"

// SettingsService manages application settings stored as dotted config keys.
type SettingsService interface {
	// Get returns current settings with defaults filled in for missing keys.
	Get() (*domain.AppSettings, error)

	// Set validates and persists a single key.
	Set(key, value string) error

	// Keys returns every recognised key in display order.
	Keys() []string

	// Value returns the effective value of key as a string.
	Value(key string) (string, error)

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
