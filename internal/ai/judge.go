package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/steveyegge/swarm/internal/gates"
	"github.com/steveyegge/swarm/internal/types"
)

// Decisions as the model spells them
const (
	judgeValidate    = "VALIDATE"
	judgePassToFixer = "PASS_TO_FIXER"
)

// TestRunner runs the tests that exercise a file. gates.Runner implements it.
type TestRunner interface {
	RunTests(ctx context.Context, path string) (*gates.TestReport, error)
}

// Linter scores a file. gates.Runner implements it.
type Linter interface {
	Lint(ctx context.Context, path string) (*gates.LintReport, error)
}

type judgeReport struct {
	File       string       `json:"file"`
	Decision   string       `json:"decision"`
	TotalTests int          `json:"total_tests"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Errors     []judgeError `json:"errors"`
	Message    string       `json:"message"`
}

type judgeError struct {
	TestName  string `json:"test_name"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	Location  string `json:"location"`
}

// Judge verifies persisted content by running its tests and asking the model
// to interpret the result
type Judge struct {
	ai        Completer
	tests     TestRunner
	lint      Linter
	maxTokens int
}

// NewJudge creates a Judge. lint is optional and only adds context.
func NewJudge(ai Completer, tests TestRunner, lint Linter) (*Judge, error) {
	if ai == nil {
		return nil, errors.New("completer is required")
	}
	if tests == nil {
		return nil, errors.New("test runner is required")
	}
	return &Judge{ai: ai, tests: tests, lint: lint, maxTokens: 4096}, nil
}

// Verify runs the tests for path and returns the model's decision. The
// diagnosis, when given, is passed to the model as context for the test run.
// Measured failures always override a VALIDATE from the model.
func (j *Judge) Verify(ctx context.Context, path string, diagnosis *types.Diagnosis) (*types.Verification, error) {
	report, err := j.tests.RunTests(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", path, err)
	}
	if strings.TrimSpace(report.Output) == "" {
		return nil, fmt.Errorf("verify %s: test run produced no output", path)
	}

	output := report.Output
	if j.lint != nil {
		if lr, err := j.lint.Lint(ctx, path); err == nil {
			output += "\n" + lr.Result().Format()
		} else {
			slog.Debug("lint skipped", "file", path, "error", err)
		}
	}

	response, err := j.ai.CallAI(ctx, OpVerify, path, buildJudgePrompt(path, output, diagnosis), j.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", path, err)
	}

	result := Parse[judgeReport](response, ParseOptions{Context: "judge report", LogErrors: true})
	if !result.Success {
		return nil, fmt.Errorf("verify %s: %s", path, result.Error)
	}

	return verificationFromReport(path, &result.Data, report), nil
}

func verificationFromReport(path string, jr *judgeReport, tr *gates.TestReport) *types.Verification {
	decision := mapDecision(jr.Decision)

	passed, failed := tr.Passed, tr.Failed+tr.Errors
	if tr.Total() == 0 && !tr.NoTests {
		// Unparsed output; fall back to the model's reading
		passed, failed = jr.Passed, jr.Failed
	}
	if decision == types.DecisionAccept && failed > 0 {
		slog.Warn("overriding VALIDATE with measured failures", "file", path, "failed", failed)
		decision = types.DecisionRetry
	}

	detail := &types.VerificationDetail{
		Message: jr.Message,
		Output:  tr.Output,
	}
	for _, e := range jr.Errors {
		detail.Errors = append(detail.Errors, types.VerificationError{
			TestName: e.TestName,
			Type:     e.ErrorType,
			Message:  e.Message,
			Location: e.Location,
		})
	}

	return &types.Verification{
		Decision: decision,
		Passed:   passed,
		Failed:   failed,
		Detail:   detail,
	}
}

// mapDecision translates the model's vocabulary. Anything unrecognized is
// passed through so the controller can fail the run on it.
func mapDecision(raw string) types.Decision {
	d := strings.ToUpper(strings.TrimSpace(raw))
	switch d {
	case judgeValidate, string(types.DecisionAccept):
		return types.DecisionAccept
	case judgePassToFixer, string(types.DecisionRetry):
		return types.DecisionRetry
	case "":
		return types.Decision("UNKNOWN")
	default:
		return types.Decision(d)
	}
}
