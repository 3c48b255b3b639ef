// Package config loads swarm's run configuration.
//
// Values are layered: built-in defaults, then an optional YAML file
// (.swarm.yaml by default), then SWARM_* environment variables. The CLI
// applies its flags last.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/swarm/internal/cost"
	"github.com/steveyegge/swarm/internal/sandbox"
)

// DefaultFile is the config file read when no path is given
const DefaultFile = ".swarm.yaml"

// Config holds everything a batch run needs
type Config struct {
	// TargetDir is the directory whose files are processed
	TargetDir string `yaml:"target_dir"`

	// SandboxRoot confines all reads and writes (default: TargetDir)
	SandboxRoot string `yaml:"sandbox_root"`

	// MaxIterations is the per-file pass ceiling
	// Default: 10
	MaxIterations int `yaml:"max_iterations"`

	// Model is the Anthropic model used by every agent (default: ai.GetDefaultModel)
	Model string `yaml:"model"`

	// RequestsPerMinute paces model calls across the whole run
	// Default: 4
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// MaxRetries bounds retries of a failing model call
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// CallTimeout bounds a single model call attempt
	// Default: 2m
	CallTimeout time.Duration `yaml:"call_timeout"`

	// TestCommand runs a Python target's tests; the target is inserted after
	// the first element (default: pytest --disable-warnings -q --tb=short)
	TestCommand []string `yaml:"test_command"`

	// GateTimeout bounds each test, syntax or lint command
	// Default: 2m
	GateTimeout time.Duration `yaml:"gate_timeout"`

	// Lint adds pylint output to the judge's context
	// Default: false
	Lint bool `yaml:"lint"`

	// Extensions selects eligible files
	// Default: [.py]
	Extensions []string `yaml:"extensions"`

	// ExcludePrefixes skips files whose base name starts with any prefix
	// Default: [test_]
	ExcludePrefixes []string `yaml:"exclude_prefixes"`

	// EventLog is the JSONL event log path ("" disables it)
	// Default: .swarm/events.jsonl
	EventLog string `yaml:"event_log"`

	// History configures the run history database
	History HistoryConfig `yaml:"history"`

	// Cost configures token metering and budgets
	Cost cost.Config `yaml:"cost"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		MaxIterations:     10,
		RequestsPerMinute: 4,
		MaxRetries:        3,
		CallTimeout:       2 * time.Minute,
		GateTimeout:       2 * time.Minute,
		Extensions:        []string{".py"},
		ExcludePrefixes:   []string{"test_"},
		EventLog:          ".swarm/events.jsonl",
		History:           DefaultHistoryConfig(),
		Cost:              *cost.DefaultConfig(),
	}
}

// Load builds a configuration from defaults, the YAML file at path and the
// environment. An empty path reads DefaultFile if it exists; an explicit path
// must exist. The result is not validated so flags can still be applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.LoadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if c.TargetDir == "" {
		return fmt.Errorf("target_dir is required")
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive (got %d)", c.MaxIterations)
	}
	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be positive (got %d)", c.RequestsPerMinute)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative (got %d)", c.MaxRetries)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("call_timeout cannot be negative (got %v)", c.CallTimeout)
	}
	if c.GateTimeout < 0 {
		return fmt.Errorf("gate_timeout cannot be negative (got %v)", c.GateTimeout)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("at least one extension is required")
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := c.Cost.Validate(); err != nil {
		return fmt.Errorf("cost: %w", err)
	}
	return nil
}

// Root returns the sandbox root, defaulting to the target directory
func (c *Config) Root() string {
	if c.SandboxRoot != "" {
		return c.SandboxRoot
	}
	return c.TargetDir
}

// Predicate returns the file eligibility predicate
func (c *Config) Predicate() sandbox.Predicate {
	if len(c.Extensions) == 1 && c.Extensions[0] == ".py" &&
		len(c.ExcludePrefixes) == 1 && c.ExcludePrefixes[0] == "test_" {
		return sandbox.DefaultPredicate
	}
	return sandbox.ExtensionPredicate(c.Extensions, c.ExcludePrefixes)
}

// String returns a human-readable representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{TargetDir: %s, SandboxRoot: %s, MaxIterations: %d, Model: %s, "+
			"RPM: %d, MaxRetries: %d, CallTimeout: %v, TestCommand: %q, GateTimeout: %v, "+
			"Lint: %t, Extensions: %s, ExcludePrefixes: %s, EventLog: %s, %s, "+
			"MaxTokensPerFile: %d}",
		c.TargetDir, c.Root(), c.MaxIterations, c.Model,
		c.RequestsPerMinute, c.MaxRetries, c.CallTimeout, strings.Join(c.TestCommand, " "), c.GateTimeout,
		c.Lint, strings.Join(c.Extensions, ","), strings.Join(c.ExcludePrefixes, ","), c.EventLog, c.History,
		c.Cost.MaxTokensPerFile,
	)
}
