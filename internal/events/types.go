package events

import (
	"context"
	"time"
)

// EventType represents the type of event emitted while a batch runs.
type EventType string

const (
	// Batch-level events
	// EventTypeRunStarted indicates a batch run started
	EventTypeRunStarted EventType = "run_started"
	// EventTypeRunCompleted indicates a batch run finished every discovered file
	EventTypeRunCompleted EventType = "run_completed"
	// EventTypeRunInterrupted indicates a batch run was stopped between files
	EventTypeRunInterrupted EventType = "run_interrupted"

	// File-level events
	// EventTypeFileStarted indicates a file's convergence run started
	EventTypeFileStarted EventType = "file_started"
	// EventTypeFileCompleted indicates a file reached a terminal status
	EventTypeFileCompleted EventType = "file_completed"

	// Pass-level events
	// EventTypePassStarted indicates a diagnose/remediate/verify pass started
	EventTypePassStarted EventType = "pass_started"
	// EventTypeDiagnosisCompleted indicates the diagnoser returned findings
	EventTypeDiagnosisCompleted EventType = "diagnosis_completed"
	// EventTypeRemediationCompleted indicates remediated content was committed
	EventTypeRemediationCompleted EventType = "remediation_completed"
	// EventTypeVerificationCompleted indicates the verifier returned a decision
	EventTypeVerificationCompleted EventType = "verification_completed"
	// EventTypeCapabilityFailed indicates a capability could not produce a result
	EventTypeCapabilityFailed EventType = "capability_failed"

	// AI usage events
	// EventTypeAICall indicates a model call completed (or failed)
	EventTypeAICall EventType = "ai_call"
	// EventTypeBudgetAlert indicates a per-file token budget warning or exhaustion
	EventTypeBudgetAlert EventType = "budget_alert"
)

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
)

// Action classifies what an agent was doing when the event was produced.
type Action string

const (
	ActionAnalysis   Action = "CODE_ANALYSIS"
	ActionGeneration Action = "CODE_GEN"
	ActionDebug      Action = "DEBUG"
	ActionFix        Action = "FIX"
)

// Status is the outcome recorded on an event.
type Status string

const (
	StatusSuccess        Status = "SUCCESS"
	StatusPartialSuccess Status = "PARTIAL_SUCCESS"
	StatusFailure        Status = "FAILURE"
)

// Event is a single structured record in a run's audit trail.
type Event struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// RunID is the batch run this event belongs to
	RunID string `json:"run_id,omitempty"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// File is the target file, empty for batch-level events
	File string `json:"file,omitempty"`
	// Agent is the component that produced the event (Auditor, Fixer, Judge, Orchestrator)
	Agent string `json:"agent_name"`
	// Model is the model used, or "N/A"
	Model string `json:"model_used"`
	// Action classifies the agent's activity
	Action Action `json:"action,omitempty"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Status is the outcome of the activity
	Status Status `json:"status"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"details,omitempty"`
}

// Sink receives events. Implementations must be safe for sequential use;
// sinks shared across goroutines must synchronize internally.
type Sink interface {
	Emit(ctx context.Context, event *Event) error
}

// PassData contains structured data for pass-level events.
type PassData struct {
	Iteration     int `json:"iteration"`
	MaxIterations int `json:"max_iterations"`
}

// DiagnosisData contains structured data for diagnosis events.
type DiagnosisData struct {
	Iteration    int            `json:"iteration"`
	FindingCount int            `json:"finding_count"`
	BySeverity   map[string]int `json:"by_severity,omitempty"`
}

// RemediationData contains structured data for remediation events.
type RemediationData struct {
	Iteration     int    `json:"iteration"`
	FindingsFixed int    `json:"findings_fixed"`
	LinesBefore   int    `json:"lines_before"`
	LinesAfter    int    `json:"lines_after"`
	DiffLines     int    `json:"diff_lines"`
	Diff          string `json:"diff,omitempty"`
}

// VerificationData contains structured data for verification events.
type VerificationData struct {
	Iteration int    `json:"iteration"`
	Decision  string `json:"decision"`
	Passed    int    `json:"passed"`
	Failed    int    `json:"failed"`
}

// FileCompletedData contains structured data for file completion events.
type FileCompletedData struct {
	Status             string `json:"status"`
	FailureReason      string `json:"failure_reason,omitempty"`
	Iterations         int    `json:"iterations"`
	FindingsSeen       int    `json:"bugs_found"`
	FindingsRemediated int    `json:"bugs_fixed"`
	DurationMs         int64  `json:"duration_ms"`
}

// AICallData contains structured data for model call events.
type AICallData struct {
	Operation    string `json:"operation"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	DurationMs   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

// RunData contains structured data for batch-level events.
type RunData struct {
	TargetDir     string  `json:"target_dir"`
	MaxIterations int     `json:"max_iterations,omitempty"`
	Discovered    int     `json:"discovered"`
	Total         int     `json:"total_files"`
	Validated     int     `json:"files_validated"`
	Failed        int     `json:"files_failed"`
	SuccessRate   float64 `json:"success_rate"`
}
