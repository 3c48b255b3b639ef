package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/steveyegge/swarm/internal/gates"
	"github.com/steveyegge/swarm/internal/types"
)

// SyntaxChecker validates candidate content before it is handed back.
// gates.Runner implements it.
type SyntaxChecker interface {
	CheckSyntax(ctx context.Context, path, content string) error
}

// Fixer rewrites file content to resolve a diagnosis
type Fixer struct {
	ai        Completer
	syntax    SyntaxChecker
	maxTokens int
}

// NewFixer creates a Fixer. syntax may be nil to skip the syntax check.
func NewFixer(ai Completer, syntax SyntaxChecker) (*Fixer, error) {
	if ai == nil {
		return nil, errors.New("completer is required")
	}
	return &Fixer{ai: ai, syntax: syntax, maxTokens: 16384}, nil
}

// Remediate asks the model for corrected content. Empty output and output
// that does not parse are errors; the caller must not persist anything then.
func (f *Fixer) Remediate(ctx context.Context, path, content string, diagnosis *types.Diagnosis) (*types.Remediation, error) {
	if diagnosis == nil {
		return nil, errors.New("diagnosis is required")
	}

	response, err := f.ai.CallAI(ctx, OpRemediate, path, buildRemediationPrompt(path, content, diagnosis), f.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("remediate %s: %w", path, err)
	}

	code := ExtractCode(response)
	if code == "" {
		return nil, fmt.Errorf("remediate %s: model returned no code", path)
	}

	if f.syntax != nil {
		if err := f.syntax.CheckSyntax(ctx, path, code); err != nil {
			if !errors.Is(err, gates.ErrToolUnavailable) {
				return nil, fmt.Errorf("remediate %s: rejected output: %w", path, err)
			}
			slog.Warn("syntax check skipped", "file", path, "error", err)
		}
	}

	return &types.Remediation{NewContent: code}, nil
}
