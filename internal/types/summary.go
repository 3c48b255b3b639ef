package types

import "time"

// FileRecord is the summarized outcome of one file's run
type FileRecord struct {
	RunID              string         `json:"run_id,omitempty"`
	FilePath           string         `json:"file_path"`
	FileName           string         `json:"file_name"`
	Status             WorkflowStatus `json:"status"`
	FailureReason      FailureReason  `json:"failure_reason,omitempty"`
	FailureDetail      string         `json:"failure_detail,omitempty"`
	Iterations         int            `json:"iterations"`
	FindingsSeen       int            `json:"findings_seen"`
	FindingsRemediated int            `json:"findings_remediated"`
	Changed            bool           `json:"changed"`
	Duration           time.Duration  `json:"duration"`
	InputTokens        int64          `json:"input_tokens"`
	OutputTokens       int64          `json:"output_tokens"`
}

// NewFileRecord summarizes a finished workflow state
func NewFileRecord(fileName string, state *WorkflowState) *FileRecord {
	return &FileRecord{
		FilePath:           state.FilePath,
		FileName:           fileName,
		Status:             state.Status,
		FailureReason:      state.FailureReason,
		FailureDetail:      state.FailureDetail,
		Iterations:         state.Iteration,
		FindingsSeen:       state.TotalFindingsSeen,
		FindingsRemediated: state.TotalFindingsRemediated,
		Changed:            state.Changed(),
		Duration:           state.Duration(),
	}
}

// Validated reports whether the file reached VALIDATED
func (r *FileRecord) Validated() bool {
	return r.Status == StatusValidated
}

// BatchSummary aggregates the per-file records of a batch run
type BatchSummary struct {
	RunID       string        `json:"run_id,omitempty"`
	TargetDir   string        `json:"target_dir"`
	Discovered  int           `json:"discovered"`
	Total       int           `json:"total"`
	Validated   int           `json:"validated"`
	Failed      int           `json:"failed"`
	Interrupted bool          `json:"interrupted"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Files       []*FileRecord `json:"files"`
}

// Add appends a record and updates the counts.
// Both FAILED and ITERATION_BUDGET_EXHAUSTED count as failed.
func (s *BatchSummary) Add(rec *FileRecord) {
	s.Files = append(s.Files, rec)
	s.Total++
	if rec.Validated() {
		s.Validated++
	}
	s.Failed = s.Total - s.Validated
}

// SuccessRate returns validated/total as a percentage, 0 when nothing was processed
func (s *BatchSummary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Validated) / float64(s.Total) * 100
}

// AllValidated reports whether every discovered file was processed and validated
func (s *BatchSummary) AllValidated() bool {
	return !s.Interrupted && s.Total == s.Discovered && s.Validated == s.Total
}

// CountByStatus tallies records per status
func (s *BatchSummary) CountByStatus() map[WorkflowStatus]int {
	counts := make(map[WorkflowStatus]int)
	for _, f := range s.Files {
		counts[f.Status]++
	}
	return counts
}
