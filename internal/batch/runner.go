// Package batch runs the convergence controller over every eligible file
// under a target directory, one file at a time, and aggregates the outcomes.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/steveyegge/swarm/internal/cost"
	"github.com/steveyegge/swarm/internal/events"
	"github.com/steveyegge/swarm/internal/sandbox"
	"github.com/steveyegge/swarm/internal/storage"
	"github.com/steveyegge/swarm/internal/types"
)

// FileRunner drives a single file's workflow state to a terminal status.
// *iterative.Controller satisfies it.
type FileRunner interface {
	Run(ctx context.Context, state *types.WorkflowState) (*types.WorkflowState, error)
}

// UsageReporter reports the model usage attributed to a file.
// *cost.Tracker satisfies it.
type UsageReporter interface {
	FileUsage(file string) cost.Usage
}

// Config holds runner dependencies
type Config struct {
	Controller    FileRunner
	Files         sandbox.FileStore
	MaxIterations int

	// Predicate selects eligible files (default: sandbox.DefaultPredicate)
	Predicate sandbox.Predicate

	// RunID identifies the run in events and history (generated when empty)
	RunID string
	// Model is recorded on the run for history (optional)
	Model string

	// Sink receives run and file events (optional)
	Sink events.Sink
	// History persists the run and its file outcomes (optional)
	History storage.Store
	// Usage attributes token usage to file records (optional)
	Usage UsageReporter

	// Quiet suppresses progress lines on stdout
	Quiet bool
}

// Runner processes the files of a target directory strictly sequentially
type Runner struct {
	controller    FileRunner
	files         sandbox.FileStore
	maxIterations int
	predicate     sandbox.Predicate
	runID         string
	model         string
	sink          events.Sink
	history       storage.Store
	usage         UsageReporter
	quiet         bool
}

// NewRunner validates cfg and returns a Runner
func NewRunner(cfg *Config) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("runner config is required")
	}
	if cfg.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if cfg.Files == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if cfg.MaxIterations < 1 {
		return nil, fmt.Errorf("max_iterations must be positive (got %d)", cfg.MaxIterations)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	pred := cfg.Predicate
	if pred == nil {
		pred = sandbox.DefaultPredicate
	}

	return &Runner{
		controller:    cfg.Controller,
		files:         cfg.Files,
		maxIterations: cfg.MaxIterations,
		predicate:     pred,
		runID:         runID,
		model:         cfg.Model,
		sink:          events.WithRunID(cfg.Sink, runID),
		history:       cfg.History,
		usage:         cfg.Usage,
		quiet:         cfg.Quiet,
	}, nil
}

// RunID returns the ID this runner stamps on events and history
func (r *Runner) RunID() string {
	return r.runID
}

// Discover lists the eligible files under root without processing them
func (r *Runner) Discover(root string) ([]string, error) {
	return sandbox.Discover(root, r.predicate)
}

// Run processes every eligible file under root and returns the aggregate.
//
// The only error is a failure to discover files (for example a missing root).
// Cancellation is observed between files: the remaining files are skipped and
// the summary is marked Interrupted, keeping every result already recorded.
func (r *Runner) Run(ctx context.Context, root string) (*types.BatchSummary, error) {
	files, err := r.Discover(root)
	if err != nil {
		return nil, err
	}

	summary := &types.BatchSummary{
		RunID:      r.runID,
		TargetDir:  root,
		Discovered: len(files),
		StartedAt:  time.Now(),
	}

	record := &types.RunRecord{
		ID:            r.runID,
		TargetDir:     root,
		MaxIterations: r.maxIterations,
		Model:         r.model,
		Status:        types.RunStatusRunning,
		Discovered:    len(files),
		StartedAt:     summary.StartedAt,
	}
	if r.history != nil {
		if err := r.history.CreateRun(ctx, record); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to record run start: %v\n", err)
		}
	}

	startEvent, err := events.NewRunEvent(events.EventTypeRunStarted, r.runID,
		fmt.Sprintf("processing %d files in %s", len(files), root),
		events.RunData{TargetDir: root, MaxIterations: r.maxIterations, Discovered: len(files)})
	events.EmitData(ctx, r.sink, startEvent, err)
	r.printf("Found %d files to process in %s\n", len(files), root)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}

	for i, path := range files {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		name := displayName(absRoot, path)
		r.printf("\n[%d/%d] %s\n", i+1, len(files), name)

		rec := r.processFile(ctx, path, name)
		summary.Add(rec)
		r.recordFile(ctx, rec)
		r.printf("  -> %s after %d iterations%s\n", rec.Status, rec.Iterations, reasonSuffix(rec))
	}
	// The last file may have ended on cancellation with nothing left to skip
	if ctx.Err() != nil {
		summary.Interrupted = true
	}
	summary.CompletedAt = time.Now()

	r.finishRun(ctx, record, summary)
	return summary, nil
}

// processFile runs one file in isolation. A panic anywhere below is recorded
// as a FAILED outcome for this file only.
func (r *Runner) processFile(ctx context.Context, path, name string) (rec *types.FileRecord) {
	events.Emit(ctx, r.sink, events.NewSimpleEvent(events.EventTypeFileStarted, r.runID, path,
		events.AgentOrchestrator, events.SeverityInfo, "processing "+name))

	state, err := types.NewWorkflowState(path, "", r.maxIterations)
	if err != nil {
		// maxIterations is validated in NewRunner
		panic(err)
	}
	state.StartedAt = time.Now()

	defer func() {
		if p := recover(); p != nil {
			slog.Error("file processing panicked", "file", path, "panic", p, "stack", string(debug.Stack()))
			state.Fail(types.FailurePanic, fmt.Sprintf("panic: %v", p))
			rec = r.fileRecord(name, state)
		}
		r.emitFileCompleted(ctx, rec)
	}()

	content, err := r.files.Read(path)
	if err != nil {
		reason := types.FailureReadFailed
		if errors.Is(err, sandbox.ErrAccessDenied) {
			reason = types.FailureAccessDenied
		}
		state.Fail(reason, err.Error())
		return r.fileRecord(name, state)
	}

	started := state.StartedAt
	state, err = types.NewWorkflowState(path, content, r.maxIterations)
	if err != nil {
		panic(err)
	}
	state.StartedAt = started

	final, err := r.controller.Run(ctx, state)
	if final == nil {
		final = state
	}
	if err != nil && !final.Status.IsTerminal() {
		final.Fail(types.FailurePanic, fmt.Sprintf("controller error: %v", err))
	}
	return r.fileRecord(name, final)
}

func (r *Runner) fileRecord(name string, state *types.WorkflowState) *types.FileRecord {
	rec := types.NewFileRecord(name, state)
	rec.RunID = r.runID
	if r.usage != nil {
		u := r.usage.FileUsage(state.FilePath)
		rec.InputTokens = u.InputTokens
		rec.OutputTokens = u.OutputTokens
	}
	return rec
}

func (r *Runner) recordFile(ctx context.Context, rec *types.FileRecord) {
	if r.history == nil {
		return
	}
	if err := r.history.RecordFile(context.WithoutCancel(ctx), r.runID, rec); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record outcome for %s: %v\n", rec.FileName, err)
	}
}

func (r *Runner) emitFileCompleted(ctx context.Context, rec *types.FileRecord) {
	if rec == nil {
		return
	}
	event, err := events.NewFileCompletedEvent(r.runID, rec.FilePath,
		fmt.Sprintf("%s finished %s", rec.FileName, rec.Status),
		events.FileCompletedData{
			Status:             string(rec.Status),
			FailureReason:      string(rec.FailureReason),
			Iterations:         rec.Iterations,
			FindingsSeen:       rec.FindingsSeen,
			FindingsRemediated: rec.FindingsRemediated,
			DurationMs:         rec.Duration.Milliseconds(),
		})
	events.EmitData(ctx, r.sink, event, err)
}

func (r *Runner) finishRun(ctx context.Context, record *types.RunRecord, summary *types.BatchSummary) {
	// Recording uses a fresh context so an interrupted run is still saved
	saveCtx := context.WithoutCancel(ctx)

	eventType := events.EventTypeRunCompleted
	message := fmt.Sprintf("%d/%d files validated", summary.Validated, summary.Total)
	if summary.Interrupted {
		eventType = events.EventTypeRunInterrupted
		message = fmt.Sprintf("interrupted after %d of %d files", summary.Total, summary.Discovered)
	}
	event, err := events.NewRunEvent(eventType, r.runID, message, events.RunData{
		TargetDir:     summary.TargetDir,
		MaxIterations: r.maxIterations,
		Discovered:    summary.Discovered,
		Total:         summary.Total,
		Validated:     summary.Validated,
		Failed:        summary.Failed,
		SuccessRate:   summary.SuccessRate(),
	})
	events.EmitData(saveCtx, r.sink, event, err)

	if r.history == nil {
		return
	}
	record.Complete(summary)
	if r.usage != nil {
		for _, f := range summary.Files {
			record.CostUSD += r.usage.FileUsage(f.FilePath).CostUSD
		}
	}
	if err := r.history.CompleteRun(saveCtx, record); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record run completion: %v\n", err)
	}
}

func (r *Runner) printf(format string, args ...interface{}) {
	if r.quiet {
		return
	}
	fmt.Printf(format, args...)
}

// displayName is path relative to root, falling back to the base name
func displayName(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !filepath.IsAbs(rel) {
		return filepath.ToSlash(rel)
	}
	return filepath.Base(path)
}

func reasonSuffix(rec *types.FileRecord) string {
	if rec.FailureReason == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", rec.FailureReason)
}
