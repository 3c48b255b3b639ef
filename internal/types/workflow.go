package types

import (
	"fmt"
	"time"
)

// WorkflowState is the per-file state driven through the convergence loop.
// It is created fresh for each file and owned by a single controller run.
type WorkflowState struct {
	FilePath      string
	Iteration     int
	MaxIterations int

	// CurrentContent is replaced wholesale, and only after a remediation
	// has been successfully written back.
	CurrentContent string
	original       string

	LastDiagnosis    *Diagnosis
	LastVerification *Verification

	Status        WorkflowStatus
	FailureReason FailureReason
	FailureDetail string

	TotalFindingsSeen       int
	TotalFindingsRemediated int

	StartedAt   time.Time
	CompletedAt time.Time
}

// NewWorkflowState snapshots content and returns a PENDING state at iteration 0
func NewWorkflowState(path, content string, maxIterations int) (*WorkflowState, error) {
	if maxIterations < 1 {
		return nil, fmt.Errorf("max_iterations must be positive (got %d)", maxIterations)
	}
	return &WorkflowState{
		FilePath:       path,
		MaxIterations:  maxIterations,
		CurrentContent: content,
		original:       content,
		Status:         StatusPending,
	}, nil
}

// OriginalContent returns the immutable snapshot taken at creation
func (s *WorkflowState) OriginalContent() string {
	return s.original
}

// Changed reports whether any remediation has been committed
func (s *WorkflowState) Changed() bool {
	return s.CurrentContent != s.original
}

// SetStatus moves a PENDING state to a terminal status.
// Terminal statuses never change afterwards.
func (s *WorkflowState) SetStatus(status WorkflowStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("cannot transition to non-terminal status %s", status)
	}
	if s.Status != StatusPending {
		return fmt.Errorf("status already terminal: %s (attempted %s)", s.Status, status)
	}
	s.Status = status
	s.CompletedAt = time.Now()
	return nil
}

// Fail marks the state FAILED with a reason. It is a no-op on a terminal state.
func (s *WorkflowState) Fail(reason FailureReason, detail string) {
	if err := s.SetStatus(StatusFailed); err != nil {
		return
	}
	s.FailureReason = reason
	s.FailureDetail = detail
}

// Duration returns how long the run took, or zero if it has not finished
func (s *WorkflowState) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.CompletedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}
