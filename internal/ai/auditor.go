package ai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/steveyegge/swarm/internal/types"
)

// auditReport is the JSON shape the Auditor asks the model for
type auditReport struct {
	File        string       `json:"file"`
	TotalIssues int          `json:"total_issues"`
	Issues      []auditIssue `json:"issues"`
}

type auditIssue struct {
	Line        lineNumber `json:"line"`
	Type        string     `json:"type"`
	Severity    string     `json:"severity"`
	Description string     `json:"description"`
	Suggestion  string     `json:"suggestion"`
}

// lineNumber accepts both 12 and "12" (or "12-14") from the model
type lineNumber string

func (l *lineNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*l = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	*l = lineNumber(strings.TrimSpace(s))
	return nil
}

// Auditor diagnoses file content by asking the model for an issue report
type Auditor struct {
	ai        Completer
	maxTokens int
}

// NewAuditor creates an Auditor backed by ai
func NewAuditor(ai Completer) (*Auditor, error) {
	if ai == nil {
		return nil, errors.New("completer is required")
	}
	return &Auditor{ai: ai, maxTokens: 8192}, nil
}

// Diagnose returns the findings the model reports for content. A response
// that cannot be parsed as a report is an error, never an empty diagnosis.
func (a *Auditor) Diagnose(ctx context.Context, path, content string) (*types.Diagnosis, error) {
	response, err := a.ai.CallAI(ctx, OpDiagnose, path, buildAuditPrompt(path, content), a.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("audit %s: %w", path, err)
	}

	result := Parse[auditReport](response, ParseOptions{Context: "audit report", LogErrors: true})
	if !result.Success {
		return nil, fmt.Errorf("audit %s: %s", path, result.Error)
	}

	return diagnosisFromReport(&result.Data), nil
}

// diagnosisFromReport converts the model report. The count is the larger of
// the declared total and the listed issues so it never under-reports.
func diagnosisFromReport(report *auditReport) *types.Diagnosis {
	findings := make([]types.Finding, 0, len(report.Issues))
	for _, issue := range report.Issues {
		category := strings.TrimSpace(issue.Type)
		if category == "" {
			category = "unspecified"
		}
		findings = append(findings, types.Finding{
			Location:    string(issue.Line),
			Category:    category,
			Severity:    types.ParseSeverity(issue.Severity),
			Description: strings.TrimSpace(issue.Description),
			Suggestion:  strings.TrimSpace(issue.Suggestion),
		})
	}

	count := report.TotalIssues
	if len(findings) > count {
		count = len(findings)
	}
	if count < 0 {
		count = 0
	}
	return &types.Diagnosis{FindingCount: count, Findings: findings}
}
