package gates

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeExec records invocations and returns canned output
type fakeExec struct {
	output   string
	exitCode int
	err      error
	calls    []fakeCall
}

type fakeCall struct {
	dir  string
	name string
	args []string
}

func (f *fakeExec) run(ctx context.Context, dir, name string, args ...string) ([]byte, int, error) {
	f.calls = append(f.calls, fakeCall{dir: dir, name: name, args: args})
	return []byte(f.output), f.exitCode, f.err
}

func newFakeRunner(t *testing.T, f *fakeExec) *Runner {
	t.Helper()
	r, err := NewRunner(&Config{Executor: f.run})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestNewRunner(t *testing.T) {
	r, err := NewRunner(nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if r.timeout != 2*time.Minute {
		t.Errorf("Expected default timeout 2m, got %v", r.timeout)
	}
	if strings.Join(r.pytest, " ") != "pytest --disable-warnings -q --tb=short" {
		t.Errorf("Unexpected default pytest command: %v", r.pytest)
	}
	if r.python != "python3" || r.goCommand != "go" || r.pylint != "pylint" {
		t.Errorf("Unexpected default tools: %s %s %s", r.python, r.goCommand, r.pylint)
	}

	if _, err := NewRunner(&Config{Timeout: -time.Second}); err == nil {
		t.Error("Expected error for negative timeout")
	}
}

func TestParsePytestOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		passed  int
		failed  int
		errors  int
		skipped int
		noTests bool
	}{
		{
			name:   "all passed",
			output: "...\n3 passed in 0.05s\n",
			passed: 3,
		},
		{
			name:   "mixed with banner",
			output: "..F\nFAILED test_calc.py::test_add - assert 1 == 3\n====== 2 passed, 1 failed in 0.08s ======\n",
			passed: 2,
			failed: 1,
		},
		{
			name:    "errors and skips",
			output:  "E\n1 skipped, 2 errors in 0.10s\n",
			errors:  2,
			skipped: 1,
		},
		{
			name:    "no tests",
			output:  "\nno tests ran in 0.01s\n",
			noTests: true,
		},
		{
			name:   "no summary",
			output: "ImportError while importing test module\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := parsePytestOutput(tt.output)
			if r.Passed != tt.passed || r.Failed != tt.failed || r.Errors != tt.errors || r.Skipped != tt.skipped {
				t.Errorf("counts = %d/%d/%d/%d, want %d/%d/%d/%d",
					r.Passed, r.Failed, r.Errors, r.Skipped, tt.passed, tt.failed, tt.errors, tt.skipped)
			}
			if r.NoTests != tt.noTests {
				t.Errorf("NoTests = %v, want %v", r.NoTests, tt.noTests)
			}
		})
	}
}

func TestRunTests_Pytest(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "calc.py")
	writeFile(t, target, "def add(a, b):\n    return a + b\n")
	writeFile(t, filepath.Join(dir, "test_calc.py"), "from calc import add\n")

	f := &fakeExec{output: "..\n2 passed in 0.01s\n"}
	r := newFakeRunner(t, f)

	report, err := r.RunTests(context.Background(), target)
	if err != nil {
		t.Fatalf("RunTests: %v", err)
	}
	if !report.AllPassed() {
		t.Errorf("Expected AllPassed, got %+v", report)
	}
	if report.Total() != 2 {
		t.Errorf("Expected 2 tests, got %d", report.Total())
	}

	if len(f.calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(f.calls))
	}
	call := f.calls[0]
	if call.name != "pytest" || call.dir != dir {
		t.Errorf("Unexpected call %s in %s", call.name, call.dir)
	}
	want := []string{target, filepath.Join(dir, "test_calc.py"), "--disable-warnings", "-q", "--tb=short"}
	if strings.Join(call.args, " ") != strings.Join(want, " ") {
		t.Errorf("args = %v, want %v", call.args, want)
	}
}

func TestRunTests_PytestNoTestsCollected(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "calc.py")
	writeFile(t, target, "x = 1\n")

	r := newFakeRunner(t, &fakeExec{output: "\nno tests ran in 0.00s\n", exitCode: pytestNoTestsExitCode})
	report, err := r.RunTests(context.Background(), target)
	if err != nil {
		t.Fatalf("RunTests: %v", err)
	}
	if !report.NoTests || report.AllPassed() {
		t.Errorf("Expected NoTests and not AllPassed, got %+v", report)
	}
	if res := report.Result(); res.Passed || res.Error == nil || res.Gate != GateTest {
		t.Errorf("Unexpected gate result %+v", res)
	}
}

func TestRunTests_ToolMissing(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "calc.py")
	writeFile(t, target, "x = 1\n")

	r := newFakeRunner(t, &fakeExec{err: ErrToolUnavailable})
	_, err := r.RunTests(context.Background(), target)
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("Expected ErrToolUnavailable, got %v", err)
	}
}

func TestRunTests_Unsupported(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "main.rs")
	writeFile(t, target, "fn main() {}\n")

	r := newFakeRunner(t, &fakeExec{})
	if _, err := r.RunTests(context.Background(), target); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("Expected ErrUnsupportedLanguage, got %v", err)
	}
	if _, err := r.RunTests(context.Background(), filepath.Join(dir, "missing.py")); err == nil {
		t.Error("Expected error for missing target")
	}
}

func TestRunTests_GoPackage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/demo\n\ngo 1.22\n")
	target := filepath.Join(root, "pkg", "calc", "calc.go")
	writeFile(t, target, "package calc\n")

	output := strings.Join([]string{
		"=== RUN   TestAdd",
		"--- PASS: TestAdd (0.00s)",
		"=== RUN   TestSub",
		"=== RUN   TestSub/negative",
		"    --- FAIL: TestSub/negative (0.00s)",
		"--- FAIL: TestSub (0.00s)",
		"FAIL",
	}, "\n")
	f := &fakeExec{output: output, exitCode: 1}
	r := newFakeRunner(t, f)

	report, err := r.RunTests(context.Background(), target)
	if err != nil {
		t.Fatalf("RunTests: %v", err)
	}
	if report.Passed != 1 || report.Failed != 2 {
		t.Errorf("Expected 1 passed 2 failed, got %d/%d", report.Passed, report.Failed)
	}
	call := f.calls[0]
	if call.name != "go" || call.dir != root {
		t.Errorf("Unexpected call %s in %s", call.name, call.dir)
	}
	if got := strings.Join(call.args, " "); got != "test -v -count=1 ./pkg/calc" {
		t.Errorf("Unexpected args %q", got)
	}
}

func TestRunTests_GoBuildFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/demo\n")
	target := filepath.Join(root, "calc.go")
	writeFile(t, target, "package calc\n")

	r := newFakeRunner(t, &fakeExec{output: "# example.com/demo\n./calc.go:3:1: syntax error\nFAIL\texample.com/demo [build failed]\n", exitCode: 1})
	report, err := r.RunTests(context.Background(), target)
	if err != nil {
		t.Fatalf("RunTests: %v", err)
	}
	if report.Errors != 1 || report.AllPassed() {
		t.Errorf("Expected a build error, got %+v", report)
	}
}

func TestFindModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/demo\n\ngo 1.22\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	gotRoot, path, err := FindModule(nested)
	if err != nil {
		t.Fatalf("FindModule: %v", err)
	}
	wantRoot, _ := filepath.Abs(root)
	if gotRoot != wantRoot || path != "example.com/demo" {
		t.Errorf("FindModule = %s %s", gotRoot, path)
	}

	bad := t.TempDir()
	writeFile(t, filepath.Join(bad, "go.mod"), "go 1.22\n")
	if _, _, err := FindModule(bad); err == nil {
		t.Error("Expected error for go.mod without module directive")
	}
}

func TestCheckSyntax_Go(t *testing.T) {
	r := newFakeRunner(t, &fakeExec{})
	ctx := context.Background()

	if err := r.CheckSyntax(ctx, "calc.go", "package calc\n\nfunc Add(a, b int) int { return a + b }\n"); err != nil {
		t.Errorf("Expected valid Go, got %v", err)
	}
	if err := r.CheckSyntax(ctx, "calc.go", "package calc\n\nfunc Add(a, b int) int { return a + \n"); err == nil {
		t.Error("Expected syntax error")
	}
	if err := r.CheckSyntax(ctx, "notes.txt", "anything"); err != nil {
		t.Errorf("Expected unknown languages to pass, got %v", err)
	}
}

func TestCheckSyntax_Python(t *testing.T) {
	ctx := context.Background()

	ok := &fakeExec{}
	r := newFakeRunner(t, ok)
	if err := r.CheckSyntax(ctx, "/work/calc.py", "x = 1\n"); err != nil {
		t.Errorf("Expected valid Python, got %v", err)
	}
	if len(ok.calls) != 1 || ok.calls[0].name != "python3" || ok.calls[0].args[0] != "-m" || ok.calls[0].args[1] != "py_compile" {
		t.Fatalf("Unexpected calls %+v", ok.calls)
	}
	scratch := ok.calls[0].args[2]
	if filepath.Base(scratch) != "calc.py" || strings.HasPrefix(scratch, "/work") {
		t.Errorf("Expected a scratch copy, got %s", scratch)
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Errorf("Expected scratch file to be removed, stat err = %v", err)
	}

	bad := &fakeExec{output: "  File \"calc.py\", line 1\n    x = \n       ^\nSyntaxError: invalid syntax\n", exitCode: 1}
	r = newFakeRunner(t, bad)
	err := r.CheckSyntax(ctx, "/work/calc.py", "x = \n")
	if err == nil || !strings.Contains(err.Error(), "SyntaxError") {
		t.Errorf("Expected SyntaxError, got %v", err)
	}
}

func TestLint(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "calc.py")
	writeFile(t, target, "x=1\n")

	f := &fakeExec{output: "calc.py:1:1: C0114: Missing module docstring\n\n-----\nYour code has been rated at 6.67/10 (previous run: 5.00/10, +1.67)\n", exitCode: 16}
	r := newFakeRunner(t, f)

	report, err := r.Lint(context.Background(), target)
	if err != nil {
		t.Fatalf("Lint: %v", err)
	}
	if report.Score != 6.67 || report.MaxScore != PylintMaxScore {
		t.Errorf("Unexpected score %v/%v", report.Score, report.MaxScore)
	}
	res := report.Result()
	if res.Passed || res.Gate != GateLint {
		t.Errorf("Unexpected result %+v", res)
	}
	if !strings.Contains(res.Format(), "✗ FAILED") {
		t.Errorf("Expected failure marker in %q", res.Format())
	}

	if _, err := r.Lint(context.Background(), filepath.Join(dir, "calc.go")); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("Expected ErrUnsupportedLanguage, got %v", err)
	}
	if parsePylintScore("no rating here") != 0 {
		t.Error("Expected zero score without rating line")
	}
}

func TestRunCommand(t *testing.T) {
	if _, _, err := runCommand(context.Background(), "", "definitely-not-a-real-binary-swarm"); !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("Expected ErrToolUnavailable, got %v", err)
	}
}
