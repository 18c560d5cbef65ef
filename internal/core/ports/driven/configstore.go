package driven

// ConfigStore provides access to application configuration.
// Keys are dotted paths such as "vector.backend".
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	Get(key string) (any, bool)

	// GetString returns "" if key is missing or not a string.
	GetString(key string) string

	// GetInt returns 0 if key is missing or not an integer.
	GetInt(key string) int

	// GetFloat returns 0 if key is missing or not numeric.
	GetFloat(key string) float64

	// GetBool returns false if key is missing or not a boolean.
	GetBool(key string) bool

	// Set stores a value and persists the file.
	Set(key string, value any) error

	// Save persists the current configuration to storage.
	Save() error

	// Load reads configuration from storage.
	Load() error

	// Path returns the configuration file path.
	Path() string
}
