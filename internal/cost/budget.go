package cost

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/steveyegge/swarm/internal/events"
)

// ErrBudgetExceeded is returned when a model call would exceed a token budget
var ErrBudgetExceeded = errors.New("token budget exceeded")

// BudgetStatus represents the current budget state
type BudgetStatus int

const (
	// BudgetHealthy indicates normal operation - under budget limits
	BudgetHealthy BudgetStatus = iota
	// BudgetWarning indicates approaching budget limits (>80% by default)
	BudgetWarning
	// BudgetExceeded indicates budget limits have been exceeded
	BudgetExceeded
)

// String returns a human-readable string representation of the budget status
func (s BudgetStatus) String() string {
	switch s {
	case BudgetHealthy:
		return "HEALTHY"
	case BudgetWarning:
		return "WARNING"
	case BudgetExceeded:
		return "EXCEEDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Usage is an accumulated token count with its estimated cost
type Usage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Calls        int     `json:"calls"`
	CostUSD      float64 `json:"cost_usd"`
}

// TotalTokens returns input plus output tokens
func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// Tracker records model token usage per file and enforces token budgets.
// It is safe for concurrent use.
type Tracker struct {
	config *Config
	sink   events.Sink
	mu     sync.RWMutex

	files map[string]*Usage
	total Usage

	// Alert tracking (to avoid spamming): last status reported per file
	alerted map[string]BudgetStatus
}

// NewTracker creates a new usage tracker. sink is optional and receives budget alerts.
func NewTracker(cfg *Config, sink events.Sink) (*Tracker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Tracker{
		config:  cfg,
		sink:    sink,
		files:   make(map[string]*Usage),
		alerted: make(map[string]BudgetStatus),
	}, nil
}

// RecordUsage records token usage attributed to file and returns the file's
// budget status after recording
func (t *Tracker) RecordUsage(ctx context.Context, file string, inputTokens, outputTokens int64) (BudgetStatus, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return BudgetHealthy, fmt.Errorf("token counts must be non-negative (input=%d, output=%d)", inputTokens, outputTokens)
	}

	t.mu.Lock()
	cost := t.calculateCost(inputTokens, outputTokens)

	u := t.files[file]
	if u == nil {
		u = &Usage{}
		t.files[file] = u
	}
	u.InputTokens += inputTokens
	u.OutputTokens += outputTokens
	u.CostUSD += cost
	u.Calls++

	t.total.InputTokens += inputTokens
	t.total.OutputTokens += outputTokens
	t.total.CostUSD += cost
	t.total.Calls++

	status := t.statusLocked(file)
	alert := t.shouldAlertLocked(file, status)
	used := u.TotalTokens()
	t.mu.Unlock()

	if alert {
		t.emitAlert(ctx, file, status, used)
	}
	return status, nil
}

// CheckBudget returns the budget status for file without recording usage
func (t *Tracker) CheckBudget(file string) BudgetStatus {
	if !t.config.Enabled {
		return BudgetHealthy
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.statusLocked(file)
}

// CanProceed returns true if another model call for file stays within budget
func (t *Tracker) CanProceed(file string) (bool, string) {
	if t.CheckBudget(file) != BudgetExceeded {
		return true, ""
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.isRunLimitExceeded() {
		return false, fmt.Sprintf("per-run token budget exceeded (%d/%d tokens used)",
			t.total.TotalTokens(), t.config.MaxTokensPerRun)
	}

	var used int64
	if u := t.files[file]; u != nil {
		used = u.TotalTokens()
	}
	return false, fmt.Sprintf("per-file token budget exceeded for %s (%d/%d tokens used)",
		file, used, t.config.MaxTokensPerFile)
}

// Check returns an error wrapping ErrBudgetExceeded if file cannot proceed
func (t *Tracker) Check(file string) error {
	if ok, reason := t.CanProceed(file); !ok {
		return fmt.Errorf("%w: %s", ErrBudgetExceeded, reason)
	}
	return nil
}

// FileUsage returns the usage recorded for file
func (t *Tracker) FileUsage(file string) Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if u := t.files[file]; u != nil {
		return *u
	}
	return Usage{}
}

// GetStats returns current usage statistics
func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status := BudgetHealthy
	if t.config.Enabled && t.isRunLimitExceeded() {
		status = BudgetExceeded
	}

	return Stats{
		Status:       status,
		Total:        t.total,
		FilesMetered: len(t.files),
		LastUpdated:  time.Now(),
		Config:       *t.config,
	}
}

// Stats contains usage statistics
type Stats struct {
	Status       BudgetStatus `json:"status"`
	Total        Usage        `json:"total"`
	FilesMetered int          `json:"files_metered"`
	LastUpdated  time.Time    `json:"last_updated"`
	Config       Config       `json:"config"`
}

// Internal helper methods

// statusLocked returns the budget status for file (must be called with lock held)
func (t *Tracker) statusLocked(file string) BudgetStatus {
	if !t.config.Enabled {
		return BudgetHealthy
	}

	var used int64
	if u := t.files[file]; u != nil {
		used = u.TotalTokens()
	}

	if t.isRunLimitExceeded() || (t.config.MaxTokensPerFile > 0 && used >= t.config.MaxTokensPerFile) {
		return BudgetExceeded
	}

	filePercent := float64(used) / float64(t.config.MaxTokensPerFile)
	runPercent := float64(t.total.TotalTokens()) / float64(t.config.MaxTokensPerRun)

	if (t.config.MaxTokensPerFile > 0 && filePercent >= t.config.AlertThreshold) ||
		(t.config.MaxTokensPerRun > 0 && runPercent >= t.config.AlertThreshold) {
		return BudgetWarning
	}

	return BudgetHealthy
}

// isRunLimitExceeded checks if the per-run token limit is exceeded
func (t *Tracker) isRunLimitExceeded() bool {
	return t.config.MaxTokensPerRun > 0 && t.total.TotalTokens() >= t.config.MaxTokensPerRun
}

// shouldAlertLocked reports whether status is new and worth alerting on for file
func (t *Tracker) shouldAlertLocked(file string, status BudgetStatus) bool {
	if status == BudgetHealthy || t.alerted[file] >= status {
		return false
	}
	t.alerted[file] = status
	return true
}

// calculateCost calculates the cost in USD for given token usage
func (t *Tracker) calculateCost(inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) * t.config.InputTokenCost / 1_000_000
	outputCost := float64(outputTokens) * t.config.OutputTokenCost / 1_000_000
	return inputCost + outputCost
}

func (t *Tracker) emitAlert(ctx context.Context, file string, status BudgetStatus, used int64) {
	severity := events.SeverityWarning
	if status == BudgetExceeded {
		severity = events.SeverityError
	}
	event, err := events.NewDataEvent(events.EventTypeBudgetAlert, "", file, events.AgentSystem, severity,
		fmt.Sprintf("token budget %s (%d tokens used)", status, used),
		map[string]interface{}{
			"status":              status.String(),
			"tokens_used":         used,
			"max_tokens_per_file": t.config.MaxTokensPerFile,
			"max_tokens_per_run":  t.config.MaxTokensPerRun,
		})
	events.EmitData(ctx, t.sink, event, err)
}
