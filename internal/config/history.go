package config

import "fmt"

// HistoryConfig holds configuration for the run history database
type HistoryConfig struct {
	// Path is the SQLite database file ("" disables history)
	// Default: .swarm/history.db
	Path string `yaml:"path"`

	// KeepRuns is how many of the most recent runs to retain after each run
	// 0 = keep everything
	// Default: 50, Range: 0-10000
	KeepRuns int `yaml:"keep_runs"`
}

// DefaultHistoryConfig returns the default history configuration
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Path:     ".swarm/history.db",
		KeepRuns: 50,
	}
}

// Validate checks if the configuration has valid values
func (c HistoryConfig) Validate() error {
	if c.KeepRuns < 0 || c.KeepRuns > 10000 {
		return fmt.Errorf("keep_runs must be between 0 and 10000 (got %d)", c.KeepRuns)
	}
	return nil
}

// Enabled reports whether run history is recorded
func (c HistoryConfig) Enabled() bool {
	return c.Path != ""
}

// String returns a human-readable representation of the config
func (c HistoryConfig) String() string {
	return fmt.Sprintf("HistoryConfig{Path: %s, KeepRuns: %d}", c.Path, c.KeepRuns)
}
