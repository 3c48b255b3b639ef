package gates

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/modfile"
)

// ErrUnsupportedLanguage is returned for files no gate knows how to test
var ErrUnsupportedLanguage = errors.New("unsupported language")

// pytest exits 5 when no tests were collected
const pytestNoTestsExitCode = 5

var (
	pytestSummaryLine = regexp.MustCompile(`\bin \d+(?:\.\d+)?s\b`)
	pytestCount       = regexp.MustCompile(`(\d+) (passed|failed|errors?|skipped|xfailed|xpassed)`)
)

// TestReport is the parsed outcome of running a file's tests
type TestReport struct {
	Target   string
	Command  string
	Passed   int
	Failed   int
	Errors   int
	Skipped  int
	ExitCode int
	NoTests  bool
	Output   string
}

// Total returns the number of tests that ran
func (t *TestReport) Total() int {
	return t.Passed + t.Failed + t.Errors
}

// AllPassed reports whether at least one test ran and nothing failed
func (t *TestReport) AllPassed() bool {
	return !t.NoTests && t.ExitCode == 0 && t.Failed == 0 && t.Errors == 0 && t.Passed > 0
}

// Result converts the report to a gate result
func (t *TestReport) Result() *Result {
	res := &Result{Gate: GateTest, Passed: t.AllPassed(), Output: t.Output}
	if !res.Passed {
		res.Error = fmt.Errorf("%d passed, %d failed, %d errors (exit %d)", t.Passed, t.Failed, t.Errors, t.ExitCode)
	}
	return res
}

// RunTests runs the tests that exercise path and parses the outcome.
// Python files run under pytest together with a sibling test_<name>.py when
// one exists; Go files run `go test` for their package.
func (r *Runner) RunTests(ctx context.Context, path string) (*TestReport, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("test target: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return r.runPytest(ctx, path)
	case ".go":
		return r.runGoTest(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, filepath.Ext(path))
	}
}

func (r *Runner) runPytest(ctx context.Context, path string) (*TestReport, error) {
	dir := filepath.Dir(path)
	targets := []string{path}
	sibling := filepath.Join(dir, "test_"+filepath.Base(path))
	if _, err := os.Stat(sibling); err == nil {
		targets = append(targets, sibling)
	}

	args := append(append([]string{}, targets...), r.pytest[1:]...)
	output, exitCode, err := r.run(ctx, dir, r.pytest[0], args...)
	if err != nil {
		return nil, fmt.Errorf("pytest: %w", err)
	}

	report := parsePytestOutput(string(output))
	report.Target = path
	report.Command = strings.Join(append([]string{r.pytest[0]}, args...), " ")
	report.ExitCode = exitCode
	if exitCode == pytestNoTestsExitCode {
		report.NoTests = true
	}
	return report, nil
}

// parsePytestOutput reads counts from pytest's final summary line,
// e.g. "2 passed, 1 failed in 0.08s" or "===== 3 passed in 0.05s =====".
func parsePytestOutput(output string) *TestReport {
	report := &TestReport{Output: output}

	summary := ""
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if pytestSummaryLine.MatchString(line) {
			summary = line
		}
	}
	if summary == "" {
		return report
	}
	if strings.Contains(summary, "no tests ran") {
		report.NoTests = true
		return report
	}

	for _, m := range pytestCount.FindAllStringSubmatch(summary, -1) {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "passed", "xpassed":
			report.Passed += n
		case "failed":
			report.Failed += n
		case "error", "errors":
			report.Errors += n
		case "skipped", "xfailed":
			report.Skipped += n
		}
	}
	return report
}

func (r *Runner) runGoTest(ctx context.Context, path string) (*TestReport, error) {
	root, _, err := FindModule(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("package path: %w", err)
	}
	pkg := "./" + filepath.ToSlash(rel)

	args := []string{"test", "-v", "-count=1", pkg}
	output, exitCode, err := r.run(ctx, root, r.goCommand, args...)
	if err != nil {
		return nil, fmt.Errorf("go test: %w", err)
	}

	report := parseGoTestOutput(string(output))
	report.Target = path
	report.Command = r.goCommand + " " + strings.Join(args, " ")
	report.ExitCode = exitCode
	// Build failures produce no test lines but a non-zero exit
	if exitCode != 0 && report.Total() == 0 && !report.NoTests {
		report.Errors = 1
	}
	return report, nil
}

// parseGoTestOutput counts -v result lines, including subtests
func parseGoTestOutput(output string) *TestReport {
	report := &TestReport{Output: output}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "--- PASS:"):
			report.Passed++
		case strings.HasPrefix(line, "--- FAIL:"):
			report.Failed++
		case strings.HasPrefix(line, "--- SKIP:"):
			report.Skipped++
		case strings.Contains(line, "[no test files]"), strings.HasPrefix(line, "testing: warning: no tests to run"):
			report.NoTests = true
		}
	}
	return report
}

// FindModule walks up from dir to the nearest go.mod and returns the module
// root directory and module path
func FindModule(dir string) (root, modulePath string, err error) {
	dir, err = filepath.Abs(dir)
	if err != nil {
		return "", "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	for {
		gomod := filepath.Join(dir, "go.mod")
		data, readErr := os.ReadFile(gomod)
		if readErr == nil {
			f, parseErr := modfile.ParseLax(gomod, data, nil)
			if parseErr != nil {
				return "", "", fmt.Errorf("parse %s: %w", gomod, parseErr)
			}
			if f.Module == nil {
				return "", "", fmt.Errorf("%s has no module directive", gomod)
			}
			return dir, f.Module.Mod.Path, nil
		}
		if !errors.Is(readErr, os.ErrNotExist) {
			return "", "", fmt.Errorf("read %s: %w", gomod, readErr)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", fmt.Errorf("no go.mod found above %s", dir)
		}
		dir = parent
	}
}
