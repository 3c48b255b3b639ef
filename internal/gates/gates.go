package gates

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// GateType identifies different quality gates
type GateType string

const (
	GateTest   GateType = "test"
	GateLint   GateType = "lint"
	GateSyntax GateType = "syntax"
)

// ErrToolUnavailable is returned when a gate's external tool is not installed
var ErrToolUnavailable = errors.New("gate tool unavailable")

// Result represents the outcome of a quality gate check
type Result struct {
	Gate   GateType
	Passed bool
	Output string
	Error  error
}

// Executor runs name with args in dir and returns its combined output and
// exit code. A non-zero exit is not an error; err is reserved for failures to
// start the process or context cancellation.
type Executor func(ctx context.Context, dir, name string, args ...string) (output []byte, exitCode int, err error)

// Runner executes quality gates against single files
type Runner struct {
	exec      Executor
	timeout   time.Duration
	pytest    []string
	goCommand string
	python    string
	pylint    string
}

// Config holds quality gate runner configuration
type Config struct {
	// PytestCommand is the test command for Python targets; the target paths are
	// inserted after the first element (default: pytest --disable-warnings -q --tb=short)
	PytestCommand []string

	// GoCommand is the go binary used for Go targets (default: go)
	GoCommand string

	// PythonCommand is the interpreter used for syntax checks (default: python3)
	PythonCommand string

	// PylintCommand is the linter binary (default: pylint)
	PylintCommand string

	// Timeout bounds each gate command (default: 2m)
	Timeout time.Duration

	// Executor overrides process execution (optional, used in tests)
	Executor Executor
}

// DefaultPytestCommand mirrors `pytest <file> --disable-warnings -q --tb=short`
var DefaultPytestCommand = []string{"pytest", "--disable-warnings", "-q", "--tb=short"}

// NewRunner creates a new quality gate runner
func NewRunner(cfg *Config) (*Runner, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %v", cfg.Timeout)
	}

	r := &Runner{
		exec:      cfg.Executor,
		timeout:   cfg.Timeout,
		pytest:    cfg.PytestCommand,
		goCommand: cfg.GoCommand,
		python:    cfg.PythonCommand,
		pylint:    cfg.PylintCommand,
	}
	if r.exec == nil {
		r.exec = runCommand
	}
	if r.timeout == 0 {
		r.timeout = 2 * time.Minute
	}
	if len(r.pytest) == 0 {
		r.pytest = DefaultPytestCommand
	}
	if r.goCommand == "" {
		r.goCommand = "go"
	}
	if r.python == "" {
		r.python = "python3"
	}
	if r.pylint == "" {
		r.pylint = "pylint"
	}
	return r, nil
}

// run executes a gate command under the runner's timeout
func (r *Runner) run(ctx context.Context, dir, name string, args ...string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.exec(ctx, dir, name, args...)
}

// runCommand is the default Executor
func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err == nil {
		return output, 0, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return output, -1, fmt.Errorf("%w: %s: %v", ErrToolUnavailable, name, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return output, -1, fmt.Errorf("%s: %w", name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return output, exitErr.ExitCode(), nil
	}
	return output, -1, fmt.Errorf("%s: %w", name, err)
}

// Format formats a gate result for display or prompt context
func (res *Result) Format() string {
	status := "✓ PASSED"
	if !res.Passed {
		status = "✗ FAILED"
	}

	output := res.Output
	if len(output) > 500 {
		output = output[:500] + "\n... (truncated)"
	}

	text := fmt.Sprintf("Quality Gate: %s - %s\n", res.Gate, status)
	if !res.Passed && res.Error != nil {
		text += fmt.Sprintf("Error: %v\n", res.Error)
	}
	if output != "" {
		text += fmt.Sprintf("Output:\n%s\n", output)
	}
	return text
}
