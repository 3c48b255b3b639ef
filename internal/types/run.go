package types

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a batch run in history
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// IsValid checks if the run status value is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning, RunStatusCompleted, RunStatusInterrupted:
		return true
	}
	return false
}

// RunRecord is a batch run as kept in run history
type RunRecord struct {
	ID            string     `json:"id"`
	TargetDir     string     `json:"target_dir"`
	MaxIterations int        `json:"max_iterations"`
	Model         string     `json:"model,omitempty"`
	Status        RunStatus  `json:"status"`
	Discovered    int        `json:"discovered"`
	Total         int        `json:"total"`
	Validated     int        `json:"validated"`
	Failed        int        `json:"failed"`
	InputTokens   int64      `json:"input_tokens"`
	OutputTokens  int64      `json:"output_tokens"`
	CostUSD       float64    `json:"cost_usd"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Validate checks required fields
func (r *RunRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if r.TargetDir == "" {
		return fmt.Errorf("target dir is required")
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid run status: %s", r.Status)
	}
	return nil
}

// SuccessRate returns validated/total as a percentage, 0 when nothing was processed
func (r *RunRecord) SuccessRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Validated) / float64(r.Total) * 100
}

// Complete copies a finished batch's counts onto the record
func (r *RunRecord) Complete(summary *BatchSummary) {
	r.Discovered = summary.Discovered
	r.Total = summary.Total
	r.Validated = summary.Validated
	r.Failed = summary.Failed
	r.Status = RunStatusCompleted
	if summary.Interrupted {
		r.Status = RunStatusInterrupted
	}
	completed := summary.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	r.CompletedAt = &completed

	r.InputTokens, r.OutputTokens = 0, 0
	for _, f := range summary.Files {
		r.InputTokens += f.InputTokens
		r.OutputTokens += f.OutputTokens
	}
}
