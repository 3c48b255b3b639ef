package iterative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/steveyegge/swarm/internal/events"
	"github.com/steveyegge/swarm/internal/sandbox"
	"github.com/steveyegge/swarm/internal/types"
)

// Controller drives one file at a time through diagnose → remediate → verify.
// It holds only its injected dependencies, so a single Controller can be
// reused across files as long as runs are not interleaved on the same path.
type Controller struct {
	diagnoser  Diagnoser
	remediator Remediator
	verifier   Verifier
	store      sandbox.FileStore
	sink       events.Sink
	metrics    MetricsCollector
}

// NewController validates cfg and returns a Controller
func NewController(cfg *Config) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("controller config is required")
	}
	if cfg.Diagnoser == nil {
		return nil, fmt.Errorf("diagnoser is required")
	}
	if cfg.Remediator == nil {
		return nil, fmt.Errorf("remediator is required")
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("file store is required")
	}
	return &Controller{
		diagnoser:  cfg.Diagnoser,
		remediator: cfg.Remediator,
		verifier:   cfg.Verifier,
		store:      cfg.Store,
		sink:       cfg.Sink,
		metrics:    cfg.Metrics,
	}, nil
}

// Run drives state until it reaches a terminal status and returns it.
//
// The returned error is reserved for misuse (nil or already-terminal state).
// Every outcome of the loop itself, including capability failures and
// cancellation, is reported through state.Status and state.FailureReason.
func (c *Controller) Run(ctx context.Context, state *types.WorkflowState) (*types.WorkflowState, error) {
	if state == nil {
		return nil, fmt.Errorf("workflow state is required")
	}
	if state.Status != types.StatusPending {
		return state, fmt.Errorf("workflow for %s is already terminal: %s", state.FilePath, state.Status)
	}
	if state.StartedAt.IsZero() {
		state.StartedAt = time.Now()
	}

	for state.Status == types.StatusPending {
		if err := ctx.Err(); err != nil {
			state.Fail(types.FailureInterrupted,
				fmt.Sprintf("canceled after %d iterations: %v", state.Iteration, err))
			break
		}
		if state.Iteration >= state.MaxIterations {
			c.finish(state, types.StatusIterationBudgetExhausted)
			break
		}
		c.pass(ctx, state)
	}

	c.recordFile(state)
	return state, nil
}

// pass performs exactly one diagnose → (remediate) → verify round.
// On return the state is either still PENDING (RETRY below budget) or terminal.
func (c *Controller) pass(ctx context.Context, state *types.WorkflowState) {
	state.Iteration++
	iteration := state.Iteration
	start := time.Now()

	pm := &PassMetrics{Iteration: iteration}
	if c.metrics != nil {
		c.metrics.RecordPassStart(state.FilePath, iteration)
	}
	defer func() {
		pm.Duration = time.Since(start)
		if c.metrics != nil {
			c.metrics.RecordPassEnd(state.FilePath, pm)
		}
	}()

	passEvent, err := events.NewPassStartedEvent("", state.FilePath, events.PassData{
		Iteration:     iteration,
		MaxIterations: state.MaxIterations,
	})
	events.EmitData(ctx, c.sink, passEvent, err)

	diagnosis, err := c.diagnoser.Diagnose(ctx, state.FilePath, state.CurrentContent)
	if err == nil && diagnosis == nil {
		err = errors.New("diagnoser returned no result")
	}
	if err == nil {
		err = diagnosis.Validate()
	}
	if err != nil {
		c.capabilityFailed(ctx, state, events.AgentAuditor, types.FailureDiagnosisUnavailable, err)
		return
	}

	state.LastDiagnosis = diagnosis
	state.TotalFindingsSeen += diagnosis.FindingCount
	pm.FindingCount = diagnosis.FindingCount
	c.emitDiagnosis(ctx, state, diagnosis)

	if diagnosis.IsClean() {
		verification, err := c.verify(ctx, state, diagnosis, pm)
		switch {
		case err != nil:
			c.capabilityFailed(ctx, state, events.AgentJudge, types.FailureVerificationUnavailable, err)
		case verification.Decision == types.DecisionAccept:
			c.finish(state, types.StatusValidated)
		default:
			state.Fail(types.FailureCleanRejected,
				fmt.Sprintf("no findings but verifier returned %s", verification.Decision))
		}
		return
	}

	remediation, err := c.remediator.Remediate(ctx, state.FilePath, state.CurrentContent, diagnosis)
	if err == nil && remediation == nil {
		err = errors.New("remediator returned no result")
	}
	if err != nil {
		c.capabilityFailed(ctx, state, events.AgentFixer, types.FailureRemediationUnavailable, err)
		return
	}

	// Persist before committing so the verifier observes what will ship
	if err := c.store.Write(state.FilePath, remediation.NewContent); err != nil {
		reason := types.FailureWriteFailed
		if errors.Is(err, sandbox.ErrAccessDenied) {
			reason = types.FailureAccessDenied
		}
		c.capabilityFailed(ctx, state, events.AgentFixer, reason, fmt.Errorf("write back: %w", err))
		return
	}

	diff := DiffContent(state.FilePath, state.CurrentContent, remediation.NewContent)
	state.CurrentContent = remediation.NewContent
	state.TotalFindingsRemediated += diagnosis.FindingCount
	pm.Remediated = true
	pm.DiffLines = diff.ChangedLines()

	remediationEvent, err := events.NewRemediationEvent("", state.FilePath,
		fmt.Sprintf("remediated %d findings (%d lines changed)", diagnosis.FindingCount, diff.ChangedLines()),
		events.RemediationData{
			Iteration:     iteration,
			FindingsFixed: diagnosis.FindingCount,
			LinesBefore:   diff.LinesBefore,
			LinesAfter:    diff.LinesAfter,
			DiffLines:     diff.ChangedLines(),
			Diff:          diff.Unified,
		})
	events.EmitData(ctx, c.sink, remediationEvent, err)

	verification, err := c.verify(ctx, state, diagnosis, pm)
	if err != nil {
		c.capabilityFailed(ctx, state, events.AgentJudge, types.FailureVerificationUnavailable, err)
		return
	}

	switch verification.Decision {
	case types.DecisionAccept:
		c.finish(state, types.StatusValidated)
	case types.DecisionRetry:
		if iteration >= state.MaxIterations {
			c.finish(state, types.StatusIterationBudgetExhausted)
		}
	default:
		state.Fail(types.FailureUnknownDecision,
			fmt.Sprintf("unrecognized verification decision %q", verification.Decision))
	}
}

// verify calls the verifier and records its result on state.
// A nil verification is reported as an error.
func (c *Controller) verify(ctx context.Context, state *types.WorkflowState, diagnosis *types.Diagnosis, pm *PassMetrics) (*types.Verification, error) {
	verification, err := c.verifier.Verify(ctx, state.FilePath, diagnosis)
	if err != nil {
		return nil, err
	}
	if verification == nil {
		return nil, errors.New("verifier returned no result")
	}

	state.LastVerification = verification
	pm.Decision = verification.Decision

	event, err := events.NewVerificationEvent("", state.FilePath,
		fmt.Sprintf("verifier decided %s (%d passed, %d failed)", verification.Decision, verification.Passed, verification.Failed),
		events.VerificationData{
			Iteration: state.Iteration,
			Decision:  string(verification.Decision),
			Passed:    verification.Passed,
			Failed:    verification.Failed,
		})
	events.EmitData(ctx, c.sink, event, err)
	return verification, nil
}

func (c *Controller) emitDiagnosis(ctx context.Context, state *types.WorkflowState, diagnosis *types.Diagnosis) {
	bySeverity := make(map[string]int)
	for sev, n := range diagnosis.CountBySeverity() {
		bySeverity[string(sev)] = n
	}
	event, err := events.NewDiagnosisEvent("", state.FilePath,
		fmt.Sprintf("%d findings", diagnosis.FindingCount),
		events.DiagnosisData{
			Iteration:    state.Iteration,
			FindingCount: diagnosis.FindingCount,
			BySeverity:   bySeverity,
		})
	events.EmitData(ctx, c.sink, event, err)
}

func (c *Controller) capabilityFailed(ctx context.Context, state *types.WorkflowState, agent string, reason types.FailureReason, err error) {
	state.Fail(reason, err.Error())
	events.Emit(ctx, c.sink, events.NewSimpleEvent(events.EventTypeCapabilityFailed, "", state.FilePath, agent,
		events.SeverityError, fmt.Sprintf("iteration %d: %s: %v", state.Iteration, reason, err)))
}

// finish moves state to a terminal status. SetStatus only rejects transitions
// out of a terminal status, which the loop never attempts.
func (c *Controller) finish(state *types.WorkflowState, status types.WorkflowStatus) {
	if err := state.SetStatus(status); err != nil {
		slog.Warn("ignored status transition", "file", state.FilePath, "error", err)
	}
}

func (c *Controller) recordFile(state *types.WorkflowState) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordFileComplete(&FileMetrics{
		FilePath:           state.FilePath,
		Status:             state.Status,
		FailureReason:      state.FailureReason,
		TotalIterations:    state.Iteration,
		FindingsSeen:       state.TotalFindingsSeen,
		FindingsRemediated: state.TotalFindingsRemediated,
		TotalDuration:      state.Duration(),
	})
}
