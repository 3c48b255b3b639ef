package cost

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds token usage tracking and budgeting configuration
type Config struct {
	// Enabled controls whether budgets are enforced. Usage is always recorded.
	// Default: true
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxTokensPerFile is the maximum number of tokens (input + output) a single
	// file may consume across all passes and agents
	// 0 = unlimited
	// Default: 200000
	MaxTokensPerFile int64 `json:"max_tokens_per_file" yaml:"max_tokens_per_file"`

	// MaxTokensPerRun is the maximum number of tokens for a whole batch run
	// 0 = unlimited
	MaxTokensPerRun int64 `json:"max_tokens_per_run" yaml:"max_tokens_per_run"`

	// AlertThreshold is the fraction of a budget that triggers a warning
	// Default: 0.80 (80%)
	AlertThreshold float64 `json:"alert_threshold" yaml:"alert_threshold"`

	// InputTokenCost is the cost per 1M input tokens (in USD)
	// Default: $3.00 for Claude Sonnet 4.5
	InputTokenCost float64 `json:"input_token_cost" yaml:"input_token_cost"`

	// OutputTokenCost is the cost per 1M output tokens (in USD)
	// Default: $15.00 for Claude Sonnet 4.5
	OutputTokenCost float64 `json:"output_token_cost" yaml:"output_token_cost"`
}

// DefaultConfig returns default budgeting configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:          true,
		MaxTokensPerFile: 200000,
		MaxTokensPerRun:  0,
		AlertThreshold:   0.80,
		InputTokenCost:   3.00,
		OutputTokenCost:  15.00,
	}
}

// LoadFromEnv loads cost configuration from environment variables on top of base.
// A nil base starts from DefaultConfig.
// Prefix: SWARM_COST_
func LoadFromEnv(base *Config) *Config {
	cfg := DefaultConfig()
	if base != nil {
		copied := *base
		cfg = &copied
	}

	if val := os.Getenv("SWARM_COST_ENABLED"); val != "" {
		cfg.Enabled = parseBool(val)
	}

	if val := os.Getenv("SWARM_COST_MAX_TOKENS_PER_FILE"); val != "" {
		if tokens, err := strconv.ParseInt(val, 10, 64); err == nil && tokens >= 0 {
			cfg.MaxTokensPerFile = tokens
		}
	}

	if val := os.Getenv("SWARM_COST_MAX_TOKENS_PER_RUN"); val != "" {
		if tokens, err := strconv.ParseInt(val, 10, 64); err == nil && tokens >= 0 {
			cfg.MaxTokensPerRun = tokens
		}
	}

	if val := os.Getenv("SWARM_COST_ALERT_THRESHOLD"); val != "" {
		if threshold, err := strconv.ParseFloat(val, 64); err == nil && threshold > 0 && threshold <= 1.0 {
			cfg.AlertThreshold = threshold
		}
	}

	if val := os.Getenv("SWARM_COST_INPUT_TOKEN_COST"); val != "" {
		if cost, err := strconv.ParseFloat(val, 64); err == nil && cost >= 0 {
			cfg.InputTokenCost = cost
		}
	}

	if val := os.Getenv("SWARM_COST_OUTPUT_TOKEN_COST"); val != "" {
		if cost, err := strconv.ParseFloat(val, 64); err == nil && cost >= 0 {
			cfg.OutputTokenCost = cost
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid cost config from environment: %v (using defaults)\n", err)
		return DefaultConfig()
	}

	return cfg
}

// Validate checks that the configuration has safe and reasonable values
func (c *Config) Validate() error {
	if c.MaxTokensPerFile < 0 {
		return fmt.Errorf("max_tokens_per_file must be non-negative, got %d", c.MaxTokensPerFile)
	}

	if c.MaxTokensPerRun < 0 {
		return fmt.Errorf("max_tokens_per_run must be non-negative, got %d", c.MaxTokensPerRun)
	}

	if c.AlertThreshold <= 0 || c.AlertThreshold > 1.0 {
		return fmt.Errorf("alert_threshold must be between 0 and 1, got %.2f", c.AlertThreshold)
	}

	if c.InputTokenCost < 0 {
		return fmt.Errorf("input_token_cost must be non-negative, got %.2f", c.InputTokenCost)
	}

	if c.OutputTokenCost < 0 {
		return fmt.Errorf("output_token_cost must be non-negative, got %.2f", c.OutputTokenCost)
	}

	return nil
}

// parseBool parses a boolean string
func parseBool(val string) bool {
	switch val {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return true
	}
}
