// Package iterative drives a single file through repeated rounds of
// diagnose → remediate → verify until the content is accepted, a capability
// fails, or the iteration budget runs out.
//
// # Overview
//
// The Controller owns one types.WorkflowState for the duration of a run and
// applies a fixed decision table after every capability call. The three
// capabilities (Diagnoser, Remediator, Verifier) and the sandbox.FileStore are
// injected; the controller keeps no state across files, so running it over
// many files is a pure function of each file's initial state.
//
// # Decision table
//
//	iteration >= max                 -> ITERATION_BUDGET_EXHAUSTED
//	iteration++                      (before any capability call)
//	diagnosis absent                 -> FAILED
//	zero findings, verifier ACCEPT   -> VALIDATED
//	zero findings, anything else     -> FAILED (no remediation, no loop)
//	remediation absent               -> FAILED
//	write-back fails                 -> FAILED (content not committed)
//	verification absent              -> FAILED
//	ACCEPT                           -> VALIDATED
//	RETRY at the budget              -> ITERATION_BUDGET_EXHAUSTED
//	RETRY below the budget           -> next pass
//	unrecognized decision            -> FAILED
//
// A capability result is "absent" when it returns a non-nil error or a nil
// value. A diagnosis with FindingCount == 0 is a real answer, not an absent one.
//
// Capability failures are never retried inside the loop. Retrying transient
// transport errors is the capability's own business (see the ai package).
//
// # Observability
//
// Every pass emits events to an optional events.Sink and, optionally, per-pass
// and per-file metrics to a MetricsCollector. Pass nil to disable either.
//
// # Cancellation
//
// The context is checked at the top of each pass. A cancelled context ends the
// run FAILED with reason "interrupted" instead of starting another pass.
package iterative
