package gates

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// PylintMaxScore is pylint's top rating
const PylintMaxScore = 10.0

var pylintRating = regexp.MustCompile(`rated at (-?\d+(?:\.\d+)?)/10`)

// LintReport is the outcome of linting a single file
type LintReport struct {
	Score    float64
	MaxScore float64
	ExitCode int
	Output   string
}

// Result converts the report to a gate result. Lint never blocks on its own;
// a perfect score passes, anything else is reported as a failure for context.
func (l *LintReport) Result() *Result {
	res := &Result{Gate: GateLint, Passed: l.Score >= l.MaxScore, Output: l.Output}
	if !res.Passed {
		res.Error = fmt.Errorf("rated %.2f/%.0f", l.Score, l.MaxScore)
	}
	return res
}

// Lint runs pylint on a Python file and extracts its score
func (r *Runner) Lint(ctx context.Context, path string) (*LintReport, error) {
	if strings.ToLower(filepath.Ext(path)) != ".py" {
		return nil, fmt.Errorf("%w: lint %s", ErrUnsupportedLanguage, filepath.Ext(path))
	}

	output, exitCode, err := r.run(ctx, filepath.Dir(path), r.pylint, path)
	if err != nil {
		return nil, fmt.Errorf("pylint: %w", err)
	}

	return &LintReport{
		Score:    parsePylintScore(string(output)),
		MaxScore: PylintMaxScore,
		ExitCode: exitCode,
		Output:   string(output),
	}, nil
}

// parsePylintScore returns the score from "Your code has been rated at X/10", or 0
func parsePylintScore(output string) float64 {
	m := pylintRating.FindStringSubmatch(output)
	if m == nil {
		return 0
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return score
}
