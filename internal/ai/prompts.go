package ai

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/steveyegge/swarm/internal/types"
)

// maxPromptOutput caps how much test output is sent to the Judge
const maxPromptOutput = 20000

// languageFor returns the display name and fence tag for a file
func languageFor(path string) (name, fence string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "Go", "go"
	case ".py":
		return "Python", "python"
	default:
		return "source", ""
	}
}

func buildAuditPrompt(path, content string) string {
	lang, fence := languageFor(path)
	name := filepath.Base(path)

	return fmt.Sprintf(`You are an expert %[1]s code auditor with deep experience in static analysis and bug detection.

Analyze the file below and report EVERY problem you find as JSON.

Rules:
1. Report only problems that exist in the code shown. Never invent problems.
2. Respond with JSON only. No text before or after it, no markdown fences.
3. Every issue must have line, type, severity, description and suggestion.
4. Line numbers start at 1.

Severities:
- CRITICAL: the code cannot run (undefined names, missing imports, syntax errors)
- HIGH: the code crashes at runtime (division by zero, out-of-range index, missing key, nil/None access, missing file)
- MEDIUM: quality problems (missing docstrings or doc comments, non-descriptive names, duplicated code)
- LOW: style violations (spacing, long lines, naming convention, import order)

Recognized types: undefined_variable, missing_import, syntax_error, division_by_zero,
index_out_of_bounds, key_error, none_operation, file_not_found, missing_docstring,
non_descriptive_name, style_spacing, style_line_length, naming_convention, duplicate_code.

Output format:
{
  "file": "%[2]s",
  "total_issues": <number of issues>,
  "issues": [
    {
      "line": <line number>,
      "type": "<issue type>",
      "severity": "CRITICAL|HIGH|MEDIUM|LOW",
      "description": "<what is wrong>",
      "suggestion": "<how to fix it>"
    }
  ]
}

If there are no problems respond with {"file": "%[2]s", "total_issues": 0, "issues": []}.

File: %[2]s
`+"```%[3]s\n%[4]s\n```"+`

Respond with the JSON report now.`, lang, name, fence, content)
}

func buildRemediationPrompt(path, content string, diagnosis *types.Diagnosis) string {
	lang, fence := languageFor(path)
	name := filepath.Base(path)

	var issues strings.Builder
	for i, f := range diagnosis.Findings {
		fmt.Fprintf(&issues, "\n%d. Line %s - %s\n   Type: %s\n   Problem: %s\n", i+1, f.Location, f.Severity, f.Category, f.Description)
		if f.Suggestion != "" {
			fmt.Fprintf(&issues, "   Suggestion: %s\n", f.Suggestion)
		}
	}

	return fmt.Sprintf(`You are an expert %[1]s maintainer. Fix the file below so that every problem in the audit report is resolved.

Rules:
1. Fix ALL %[2]d reported problems.
2. Preserve the original behaviour, public names and structure. Do not rewrite the file from scratch.
3. Respond with the complete corrected %[1]s file only. No explanations, no markdown fences.
4. The result must be valid %[1]s that runs as-is.

Fix guide:
- Missing imports: add them at the top of the file.
- Undefined names: define them or take them as parameters.
- Division by zero, out-of-range index, missing keys, nil/None access: add explicit guards.
- Missing documentation: add a short docstring or doc comment.
- Style: fix spacing and line length without renaming public identifiers.

Audit report for %[3]s:%[4]s

Original file:
`+"```%[5]s\n%[6]s\n```"+`

Respond with the corrected file now.`, lang, diagnosis.FindingCount, name, issues.String(), fence, content)
}

func buildJudgePrompt(path, testOutput string, diagnosis *types.Diagnosis) string {
	name := filepath.Base(path)
	if len(testOutput) > maxPromptOutput {
		testOutput = safeTruncateString(testOutput, maxPromptOutput/2) +
			"\n\n... [truncated middle section] ...\n\n" +
			safeTruncateTail(testOutput, maxPromptOutput/2)
	}

	return fmt.Sprintf(`You are an expert test engineer. Read the test run output below and decide whether the code is validated (VALIDATE) or must go back to the fixer (PASS_TO_FIXER).

Rules:
1. Base your decision only on the test output shown. Audit findings are context, not evidence.
2. Respond with JSON only. No text before or after it, no markdown fences.
3. The decision is binary: "VALIDATE" or "PASS_TO_FIXER".

VALIDATE only when all of these hold:
- every test passed
- there were no execution errors
- at least one test ran

PASS_TO_FIXER when any test failed, the run errored (import, syntax, build errors), or no tests ran.

Output format:
{
  "file": "%[1]s",
  "decision": "VALIDATE|PASS_TO_FIXER",
  "total_tests": <passed + failed>,
  "passed": <number passed>,
  "failed": <number failed>,
  "errors": [
    {
      "test_name": "<test name or N/A>",
      "error_type": "<AssertionError, NameError, ...>",
      "message": "<error message>",
      "location": "<file:line>"
    }
  ],
  "message": "<one sentence summary>"
}

%[3]sTest output for %[1]s:
`+"```\n%[2]s\n```"+`

Respond with the JSON decision now.`, name, testOutput, auditContext(diagnosis))
}

// auditContext lists the findings the last remediation addressed so the
// judge can tell whether failing tests relate to them. Empty without a diagnosis.
func auditContext(diagnosis *types.Diagnosis) string {
	if diagnosis == nil {
		return ""
	}
	if diagnosis.IsClean() {
		return "The auditor reported no problems in this file.\n\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Audit findings addressed in this pass (%d):\n", diagnosis.FindingCount)
	for i, f := range diagnosis.Findings {
		fmt.Fprintf(&b, "%d. Line %s - %s %s: %s\n", i+1, f.Location, f.Severity, f.Category, f.Description)
	}
	b.WriteString("\n")
	return b.String()
}
