package gates

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
)

// CheckSyntax reports whether content parses as source for path's language.
// A nil error means the content is well-formed; an error wrapping
// ErrToolUnavailable means the check could not be performed at all.
// Languages without a checker pass.
func (r *Runner) CheckSyntax(ctx context.Context, path, content string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return checkGoSyntax(path, content)
	case ".py":
		return r.checkPythonSyntax(ctx, path, content)
	default:
		return nil
	}
}

func checkGoSyntax(path, content string) error {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, filepath.Base(path), content, parser.AllErrors); err != nil {
		return fmt.Errorf("syntax error: %w", err)
	}
	return nil
}

// checkPythonSyntax byte-compiles content from a scratch file so the target
// file is never touched before the syntax is known to be valid
func (r *Runner) checkPythonSyntax(ctx context.Context, path, content string) error {
	dir, err := os.MkdirTemp("", "swarm-syntax-")
	if err != nil {
		return fmt.Errorf("syntax scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	scratch := filepath.Join(dir, filepath.Base(path))
	if err := os.WriteFile(scratch, []byte(content), 0600); err != nil {
		return fmt.Errorf("syntax scratch file: %w", err)
	}

	output, exitCode, err := r.run(ctx, dir, r.python, "-m", "py_compile", scratch)
	if err != nil {
		return fmt.Errorf("py_compile: %w", err)
	}
	if exitCode != 0 {
		msg := strings.TrimSpace(strings.ReplaceAll(string(output), scratch, filepath.Base(path)))
		return fmt.Errorf("syntax error: %s", msg)
	}
	return nil
}
