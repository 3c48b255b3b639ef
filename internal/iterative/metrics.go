package iterative

import (
	"sort"
	"sync"
	"time"

	"github.com/steveyegge/swarm/internal/types"
)

// MetricsCollector provides instrumentation for the convergence loop.
// Implementations track per-pass and per-file metrics to measure how quickly
// files converge and where the loop gives up.
//
// This interface is optional - set Config.Metrics to nil to disable collection.
type MetricsCollector interface {
	// RecordPassStart is called at the beginning of each pass, after the
	// iteration counter has been incremented
	RecordPassStart(file string, iteration int)

	// RecordPassEnd is called when a pass finishes, whatever its outcome
	RecordPassEnd(file string, metrics *PassMetrics)

	// RecordFileComplete is called once the file reaches a terminal status
	RecordFileComplete(metrics *FileMetrics)

	// GetAggregateMetrics returns rolled-up statistics across all files
	GetAggregateMetrics() *AggregateMetrics
}

// PassMetrics captures metrics for a single diagnose/remediate/verify pass.
type PassMetrics struct {
	// Iteration is the pass number (1-based)
	Iteration int

	// FindingCount is the number of findings diagnosed this pass
	FindingCount int

	// Remediated indicates new content was committed this pass
	Remediated bool

	// DiffLines is the number of lines changed by the remediation
	DiffLines int

	// Decision is the verifier's decision, empty if verification never ran
	Decision types.Decision

	// Duration is the time spent on this pass
	Duration time.Duration
}

// FileMetrics captures metrics for one file's entire convergence run.
type FileMetrics struct {
	FilePath        string
	Status          types.WorkflowStatus
	FailureReason   types.FailureReason
	TotalIterations int

	// FindingsSeen is the sum of finding counts across passes
	FindingsSeen int

	// FindingsRemediated is the sum of finding counts for committed remediations
	FindingsRemediated int

	TotalDuration time.Duration

	// Passes contains the per-pass metrics
	Passes []*PassMetrics
}

// AggregateMetrics provides rolled-up statistics across multiple files.
type AggregateMetrics struct {
	// TotalFiles is the total number of files processed
	TotalFiles int

	// ValidatedFiles is the count that the verifier accepted
	ValidatedFiles int

	// ExhaustedFiles is the count that ran out of iterations
	ExhaustedFiles int

	// FailedFiles is the count that ended FAILED
	FailedFiles int

	// TotalIterations is the sum of iterations across all files
	TotalIterations int

	// MeanIterations is the average iterations per file
	MeanIterations float64

	// P50Iterations is the median iterations to validation
	P50Iterations int

	// P95Iterations is the 95th percentile iterations to validation
	P95Iterations int

	// TotalFindingsSeen is the sum of findings diagnosed across all files
	TotalFindingsSeen int

	// TotalFindingsRemediated is the sum of findings addressed by committed remediations
	TotalFindingsRemediated int

	// TotalDuration is the sum of all file durations
	TotalDuration time.Duration

	// ByFailureReason counts FAILED files by reason
	ByFailureReason map[types.FailureReason]int
}

// InMemoryMetricsCollector is a simple in-memory implementation of MetricsCollector.
// It stores all metrics in memory for reporting and testing.
type InMemoryMetricsCollector struct {
	mu sync.Mutex

	files []*FileMetrics

	// passes holds passes for files that have not completed yet
	passes map[string][]*PassMetrics
}

// NewInMemoryMetricsCollector creates a new in-memory metrics collector
func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return &InMemoryMetricsCollector{
		files:  make([]*FileMetrics, 0),
		passes: make(map[string][]*PassMetrics),
	}
}

// RecordPassStart implements MetricsCollector
func (m *InMemoryMetricsCollector) RecordPassStart(file string, iteration int) {
	// Nothing to do - we record metrics at pass end
	_ = file
	_ = iteration
}

// RecordPassEnd implements MetricsCollector
func (m *InMemoryMetricsCollector) RecordPassEnd(file string, metrics *PassMetrics) {
	if metrics == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passes[file] = append(m.passes[file], metrics)
}

// RecordFileComplete implements MetricsCollector
func (m *InMemoryMetricsCollector) RecordFileComplete(metrics *FileMetrics) {
	if metrics == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Attach pass metrics to file metrics
	metrics.Passes = m.passes[metrics.FilePath]
	delete(m.passes, metrics.FilePath)

	m.files = append(m.files, metrics)
}

// GetAggregateMetrics implements MetricsCollector
func (m *InMemoryMetricsCollector) GetAggregateMetrics() *AggregateMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	agg := &AggregateMetrics{
		ByFailureReason: make(map[types.FailureReason]int),
	}

	// Iteration counts of validated files, for percentile calculation
	var iterationCounts []int

	for _, file := range m.files {
		agg.TotalFiles++
		agg.TotalIterations += file.TotalIterations
		agg.TotalFindingsSeen += file.FindingsSeen
		agg.TotalFindingsRemediated += file.FindingsRemediated
		agg.TotalDuration += file.TotalDuration

		switch file.Status {
		case types.StatusValidated:
			agg.ValidatedFiles++
			iterationCounts = append(iterationCounts, file.TotalIterations)
		case types.StatusIterationBudgetExhausted:
			agg.ExhaustedFiles++
		case types.StatusFailed:
			agg.FailedFiles++
			agg.ByFailureReason[file.FailureReason]++
		}
	}

	if agg.TotalFiles > 0 {
		agg.MeanIterations = float64(agg.TotalIterations) / float64(agg.TotalFiles)
	}

	if len(iterationCounts) > 0 {
		sort.Ints(iterationCounts)
		agg.P50Iterations = percentile(iterationCounts, 50)
		agg.P95Iterations = percentile(iterationCounts, 95)
	}

	return agg
}

// GetFiles returns all collected file metrics
func (m *InMemoryMetricsCollector) GetFiles() []*FileMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*FileMetrics, len(m.files))
	copy(out, m.files)
	return out
}

// Helper: percentile calculates the Nth percentile from a sorted slice
func percentile(sorted []int, p int) int {
	if len(sorted) == 0 {
		return 0
	}
	index := (len(sorted) * p) / 100
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
