package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swarm.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.MaxIterations != 10 {
		t.Errorf("MaxIterations = %d, want 10", cfg.MaxIterations)
	}
	if cfg.RequestsPerMinute != 4 {
		t.Errorf("RequestsPerMinute = %d, want 4", cfg.RequestsPerMinute)
	}
	if cfg.History.Path != ".swarm/history.db" {
		t.Errorf("History.Path = %q", cfg.History.Path)
	}
	if !cfg.Cost.Enabled || cfg.Cost.MaxTokensPerFile != 200000 {
		t.Errorf("unexpected cost defaults: %+v", cfg.Cost)
	}

	// Defaults are valid once a target is set
	cfg.TargetDir = "."
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing target", func(c *Config) { c.TargetDir = "" }, "target_dir"},
		{"zero iterations", func(c *Config) { c.MaxIterations = 0 }, "max_iterations"},
		{"negative iterations", func(c *Config) { c.MaxIterations = -2 }, "max_iterations"},
		{"zero rpm", func(c *Config) { c.RequestsPerMinute = 0 }, "requests_per_minute"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "max_retries"},
		{"negative call timeout", func(c *Config) { c.CallTimeout = -time.Second }, "call_timeout"},
		{"negative gate timeout", func(c *Config) { c.GateTimeout = -time.Second }, "gate_timeout"},
		{"no extensions", func(c *Config) { c.Extensions = nil }, "extension"},
		{"bad keep runs", func(c *Config) { c.History.KeepRuns = -1 }, "keep_runs"},
		{"bad alert threshold", func(c *Config) { c.Cost.AlertThreshold = 2 }, "alert_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.TargetDir = "."
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
target_dir: ./src
max_iterations: 5
model: claude-haiku-4-5
requests_per_minute: 10
call_timeout: 90s
test_command: ["python", "-m", "pytest", "-q"]
lint: true
extensions: [.py, .pyi]
history:
  keep_runs: 5
cost:
  max_tokens_per_file: 5000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TargetDir != "./src" || cfg.MaxIterations != 5 || cfg.Model != "claude-haiku-4-5" {
		t.Errorf("unexpected core fields: %s", cfg)
	}
	if cfg.RequestsPerMinute != 10 {
		t.Errorf("RequestsPerMinute = %d, want 10", cfg.RequestsPerMinute)
	}
	if cfg.CallTimeout != 90*time.Second {
		t.Errorf("CallTimeout = %v, want 90s", cfg.CallTimeout)
	}
	if strings.Join(cfg.TestCommand, " ") != "python -m pytest -q" {
		t.Errorf("TestCommand = %v", cfg.TestCommand)
	}
	if !cfg.Lint {
		t.Error("expected lint enabled")
	}
	if len(cfg.Extensions) != 2 {
		t.Errorf("Extensions = %v", cfg.Extensions)
	}
	if cfg.History.KeepRuns != 5 {
		t.Errorf("KeepRuns = %d, want 5", cfg.History.KeepRuns)
	}

	// Keys absent from the file keep their defaults
	if cfg.History.Path != ".swarm/history.db" {
		t.Errorf("History.Path = %q, want default", cfg.History.Path)
	}
	if cfg.Cost.MaxTokensPerFile != 5000 || cfg.Cost.InputTokenCost != 3.00 {
		t.Errorf("unexpected cost config: %+v", cfg.Cost)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.MaxRetries)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for explicit missing config file")
	}
}

func TestLoad_DefaultFileOptional(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load without default file failed: %v", err)
	}
	if cfg.MaxIterations != 10 {
		t.Errorf("MaxIterations = %d, want default", cfg.MaxIterations)
	}
}

func TestLoad_DefaultFileRead(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, DefaultFile), []byte("max_iterations: 2\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxIterations != 2 {
		t.Errorf("MaxIterations = %d, want 2", cfg.MaxIterations)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "max_iterations: [not a number\n")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	path := writeConfig(t, "max_iterations: 5\nmodel: from-file\n")

	t.Setenv("SWARM_TARGET_DIR", "/work")
	t.Setenv("SWARM_MAX_ITERATIONS", "7")
	t.Setenv("SWARM_MODEL", "from-env")
	t.Setenv("SWARM_RPM", "12")
	t.Setenv("SWARM_GATE_TIMEOUT", "30s")
	t.Setenv("SWARM_LINT", "true")
	t.Setenv("SWARM_TEST_COMMAND", "pytest -x")
	t.Setenv("SWARM_EXTENSIONS", ".py, .go,")
	t.Setenv("SWARM_DB", "/tmp/h.db")
	t.Setenv("SWARM_COST_MAX_TOKENS_PER_FILE", "1234")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Environment overrides the file
	if cfg.MaxIterations != 7 || cfg.Model != "from-env" {
		t.Errorf("env did not override file: %s", cfg)
	}
	if cfg.TargetDir != "/work" || cfg.RequestsPerMinute != 12 || cfg.GateTimeout != 30*time.Second {
		t.Errorf("unexpected env values: %s", cfg)
	}
	if !cfg.Lint {
		t.Error("expected lint from env")
	}
	if strings.Join(cfg.TestCommand, "|") != "pytest|-x" {
		t.Errorf("TestCommand = %v", cfg.TestCommand)
	}
	if strings.Join(cfg.Extensions, "|") != ".py|.go" {
		t.Errorf("Extensions = %v", cfg.Extensions)
	}
	if cfg.History.Path != "/tmp/h.db" {
		t.Errorf("History.Path = %q", cfg.History.Path)
	}
	if cfg.Cost.MaxTokensPerFile != 1234 {
		t.Errorf("MaxTokensPerFile = %d, want 1234", cfg.Cost.MaxTokensPerFile)
	}
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SWARM_MAX_ITERATIONS", "many"},
		{"SWARM_RPM", "1.5"},
		{"SWARM_CALL_TIMEOUT", "soon"},
		{"SWARM_LINT", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			err := Default().ApplyEnv()
			if err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error should name %s, got: %v", tt.key, err)
			}
		})
	}
}

func TestPredicate(t *testing.T) {
	cfg := Default()
	pred := cfg.Predicate()
	if !pred("pkg/calc.py") || pred("pkg/test_calc.py") || pred("main.go") {
		t.Error("default predicate should select non-test Python files")
	}

	cfg.Extensions = []string{"go"}
	cfg.ExcludePrefixes = []string{"gen_"}
	pred = cfg.Predicate()
	if !pred("main.go") || pred("gen_types.go") || pred("calc.py") {
		t.Error("custom predicate should select non-generated Go files")
	}
}

func TestRoot(t *testing.T) {
	cfg := Default()
	cfg.TargetDir = "./src"
	if cfg.Root() != "./src" {
		t.Errorf("Root() = %q, want target dir", cfg.Root())
	}
	cfg.SandboxRoot = "."
	if cfg.Root() != "." {
		t.Errorf("Root() = %q, want sandbox root", cfg.Root())
	}
}

func TestHistoryConfig(t *testing.T) {
	h := DefaultHistoryConfig()
	if !h.Enabled() {
		t.Error("default history should be enabled")
	}
	h.Path = ""
	if h.Enabled() {
		t.Error("empty path should disable history")
	}
	if !strings.Contains(DefaultHistoryConfig().String(), "KeepRuns: 50") {
		t.Errorf("unexpected String(): %s", DefaultHistoryConfig())
	}
}
