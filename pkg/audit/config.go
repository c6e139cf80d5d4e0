package audit

// Config controls the audit trail.
type Config struct {
	// Enabled turns the middleware on. When false nothing is recorded.
	Enabled bool `mapstructure:"enabled"`
	// RetentionDays bounds how long events are kept.
	RetentionDays int `mapstructure:"retention_days"`
	// LogDenied controls whether rejected (401/403) mutations are recorded.
	LogDenied bool `mapstructure:"log_denied"`
}

// DefaultConfig returns the default audit settings.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		RetentionDays: 90,
		LogDenied:     true,
	}
}
