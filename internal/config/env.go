package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/steveyegge/swarm/internal/cost"
)

// ApplyEnv overlays SWARM_* environment variables onto c
//
// Environment variables:
//   - SWARM_TARGET_DIR: Directory to process
//   - SWARM_SANDBOX_ROOT: Sandbox root (default: target dir)
//   - SWARM_MAX_ITERATIONS: Per-file pass ceiling (default: 10)
//   - SWARM_MODEL: Anthropic model
//   - SWARM_RPM: Model requests per minute (default: 4)
//   - SWARM_MAX_RETRIES: Retries per model call (default: 3)
//   - SWARM_CALL_TIMEOUT: Timeout per model call attempt, e.g. 90s (default: 2m)
//   - SWARM_TEST_COMMAND: Python test command, space separated
//   - SWARM_GATE_TIMEOUT: Timeout per gate command (default: 2m)
//   - SWARM_LINT: Add pylint output to verification (default: false)
//   - SWARM_EXTENSIONS: Comma-separated eligible extensions (default: .py)
//   - SWARM_EXCLUDE_PREFIXES: Comma-separated excluded name prefixes (default: test_)
//   - SWARM_EVENT_LOG: JSONL event log path
//   - SWARM_DB: Run history database path
//   - SWARM_KEEP_RUNS: Runs retained in history (default: 50)
//   - SWARM_COST_*: Token budget settings (see cost.LoadFromEnv)
//
// Returns an error if any environment variable has an invalid value.
func (c *Config) ApplyEnv() error {
	parseEnvString("SWARM_TARGET_DIR", &c.TargetDir)
	parseEnvString("SWARM_SANDBOX_ROOT", &c.SandboxRoot)
	parseEnvString("SWARM_MODEL", &c.Model)
	parseEnvString("SWARM_EVENT_LOG", &c.EventLog)
	parseEnvString("SWARM_DB", &c.History.Path)

	if err := parseEnvInt("SWARM_MAX_ITERATIONS", &c.MaxIterations); err != nil {
		return err
	}
	if err := parseEnvInt("SWARM_RPM", &c.RequestsPerMinute); err != nil {
		return err
	}
	if err := parseEnvInt("SWARM_MAX_RETRIES", &c.MaxRetries); err != nil {
		return err
	}
	if err := parseEnvInt("SWARM_KEEP_RUNS", &c.History.KeepRuns); err != nil {
		return err
	}
	if err := parseEnvDuration("SWARM_CALL_TIMEOUT", &c.CallTimeout); err != nil {
		return err
	}
	if err := parseEnvDuration("SWARM_GATE_TIMEOUT", &c.GateTimeout); err != nil {
		return err
	}
	if err := parseEnvBool("SWARM_LINT", &c.Lint); err != nil {
		return err
	}

	if value := os.Getenv("SWARM_TEST_COMMAND"); value != "" {
		c.TestCommand = strings.Fields(value)
	}
	parseEnvList("SWARM_EXTENSIONS", &c.Extensions)
	parseEnvList("SWARM_EXCLUDE_PREFIXES", &c.ExcludePrefixes)

	c.Cost = *cost.LoadFromEnv(&c.Cost)
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration parses a duration such as "90s" from an environment variable
func parseEnvDuration(key string, dest *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
}

// parseEnvList parses a comma-separated list, dropping empty items
func parseEnvList(key string, dest *[]string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dest = items
}
