package iterative

import (
	"context"

	"github.com/steveyegge/swarm/internal/events"
	"github.com/steveyegge/swarm/internal/sandbox"
	"github.com/steveyegge/swarm/internal/types"
)

// Diagnoser analyzes content and reports findings.
// A nil diagnosis or non-nil error means the diagnosis could not be produced.
type Diagnoser interface {
	Diagnose(ctx context.Context, path, content string) (*types.Diagnosis, error)
}

// Remediator rewrites content in response to a diagnosis.
// A nil remediation or non-nil error means no usable content was produced.
type Remediator interface {
	Remediate(ctx context.Context, path, content string, diagnosis *types.Diagnosis) (*types.Remediation, error)
}

// Verifier judges the persisted content at path, optionally informed by the diagnosis.
// A nil verification or non-nil error means no judgment could be made.
type Verifier interface {
	Verify(ctx context.Context, path string, diagnosis *types.Diagnosis) (*types.Verification, error)
}

// Config holds controller dependencies
type Config struct {
	Diagnoser  Diagnoser
	Remediator Remediator
	Verifier   Verifier
	Store      sandbox.FileStore

	// Sink receives pass and file events (optional)
	Sink events.Sink

	// Metrics collects per-pass and per-file metrics (optional)
	Metrics MetricsCollector
}
