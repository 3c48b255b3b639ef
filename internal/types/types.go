package types

import (
	"fmt"
	"strings"
)

// WorkflowStatus represents the lifecycle state of a file's convergence run
type WorkflowStatus string

const (
	StatusPending                  WorkflowStatus = "PENDING"
	StatusValidated                WorkflowStatus = "VALIDATED"
	StatusFailed                   WorkflowStatus = "FAILED"
	StatusIterationBudgetExhausted WorkflowStatus = "ITERATION_BUDGET_EXHAUSTED"
)

// IsValid checks if the status value is valid
func (s WorkflowStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusValidated, StatusFailed, StatusIterationBudgetExhausted:
		return true
	}
	return false
}

// IsTerminal reports whether no further passes may run once this status is set
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case StatusValidated, StatusFailed, StatusIterationBudgetExhausted:
		return true
	}
	return false
}

// Decision is the verifier's judgment over (possibly remediated) content
type Decision string

const (
	// DecisionAccept means the content is validated and the run can stop
	DecisionAccept Decision = "ACCEPT"
	// DecisionRetry means the content still fails and another pass is wanted
	DecisionRetry Decision = "RETRY"
)

// IsValid checks if the decision value is one the controller knows how to route
func (d Decision) IsValid() bool {
	switch d {
	case DecisionAccept, DecisionRetry:
		return true
	}
	return false
}

// Severity classifies how serious a finding is
type Severity string

const (
	SeverityCritical Severity = "CRITICAL" // code cannot run
	SeverityHigh     Severity = "HIGH"     // code crashes at runtime
	SeverityMedium   Severity = "MEDIUM"   // quality problems
	SeverityLow      Severity = "LOW"      // style violations
)

// IsValid checks if the severity value is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// ParseSeverity normalizes a model-supplied severity string.
// Unknown values map to SeverityMedium so a finding is never dropped.
func ParseSeverity(s string) Severity {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if sev.IsValid() {
		return sev
	}
	return SeverityMedium
}

// Finding is a single problem reported by a diagnosis
type Finding struct {
	Location    string   `json:"location"`
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

// Diagnosis is the structured result of analyzing file content.
// FindingCount == 0 means "nothing found", which is distinct from an absent diagnosis.
type Diagnosis struct {
	FindingCount int       `json:"finding_count"`
	Findings     []Finding `json:"findings"`
}

// Validate checks if the diagnosis has valid field values
func (d *Diagnosis) Validate() error {
	if d.FindingCount < 0 {
		return fmt.Errorf("finding_count cannot be negative (got %d)", d.FindingCount)
	}
	for i, f := range d.Findings {
		if !f.Severity.IsValid() {
			return fmt.Errorf("finding %d: invalid severity: %s", i, f.Severity)
		}
	}
	return nil
}

// IsClean reports whether the diagnosis found nothing to remediate
func (d *Diagnosis) IsClean() bool {
	return d.FindingCount == 0
}

// CountBySeverity tallies findings per severity
func (d *Diagnosis) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range d.Findings {
		counts[f.Severity]++
	}
	return counts
}

// Remediation carries rewritten content produced in response to a diagnosis
type Remediation struct {
	NewContent string `json:"new_content"`
}

// VerificationError describes one failing check reported by the verifier
type VerificationError struct {
	TestName string `json:"test_name"`
	Type     string `json:"error_type"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// VerificationDetail is optional structured failure information
type VerificationDetail struct {
	Errors  []VerificationError `json:"errors,omitempty"`
	Message string              `json:"message,omitempty"`
	Output  string              `json:"output,omitempty"`
}

// Verification is a pass/fail judgment over persisted content
type Verification struct {
	Decision Decision            `json:"decision"`
	Passed   int                 `json:"passed"`
	Failed   int                 `json:"failed"`
	Detail   *VerificationDetail `json:"detail,omitempty"`
}

// FailureReason names why a run ended FAILED
type FailureReason string

const (
	FailureNone                    FailureReason = ""
	FailureReadFailed              FailureReason = "read_failed"
	FailureAccessDenied            FailureReason = "access_denied"
	FailureDiagnosisUnavailable    FailureReason = "diagnosis_unavailable"
	FailureRemediationUnavailable  FailureReason = "remediation_unavailable"
	FailureWriteFailed             FailureReason = "write_failed"
	FailureVerificationUnavailable FailureReason = "verification_unavailable"
	FailureCleanRejected           FailureReason = "clean_rejected"
	FailureUnknownDecision         FailureReason = "unknown_decision"
	FailureInterrupted             FailureReason = "interrupted"
	FailurePanic                   FailureReason = "panic"
)
