// Package ai implements the model-backed capabilities of a convergence run:
// the Auditor diagnoses a file, the Fixer rewrites it, and the Judge decides
// whether the rewritten file is done. All three talk to the model through a
// Supervisor, which owns retries, the circuit breaker, pacing and usage metering.
package ai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/steveyegge/swarm/internal/cost"
	"github.com/steveyegge/swarm/internal/events"
	"golang.org/x/sync/semaphore"
)

// Model constants. SWARM_MODEL overrides the default.
const (
	// ModelSonnet is used for all agents unless overridden
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// ModelHaiku is a cheaper alternative for large batches
	ModelHaiku = "claude-3-5-haiku-20241022"
)

// defaultMaxTokens is used when a caller passes maxTokens == 0
const defaultMaxTokens = 4096

// Operation names, also used as event operations
const (
	OpDiagnose  = "diagnose"
	OpRemediate = "remediate"
	OpVerify    = "verify"
)

// GetDefaultModel returns the default model, checking SWARM_MODEL first
func GetDefaultModel() string {
	if model := os.Getenv("SWARM_MODEL"); model != "" {
		return model
	}
	return ModelSonnet
}

// Completer sends a single prompt to the model and returns its text.
// subject names the file the call is made for; it scopes usage metering and events.
type Completer interface {
	CallAI(ctx context.Context, operation, subject, prompt string, maxTokens int) (string, error)
}

// UsageTracker meters token usage per file and refuses calls over budget
type UsageTracker interface {
	Check(file string) error
	RecordUsage(ctx context.Context, file string, inputTokens, outputTokens int64) (cost.BudgetStatus, error)
}

// messageAPI is the subset of the Anthropic messages service the supervisor calls
type messageAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Supervisor makes model calls on behalf of the agents
type Supervisor struct {
	messages       messageAPI
	model          string
	retry          RetryConfig
	circuitBreaker *CircuitBreaker
	concurrencySem *semaphore.Weighted
	pacer          Pacer
	usage          UsageTracker
	sink           events.Sink
}

var _ Completer = (*Supervisor)(nil)

// Config holds supervisor configuration
type Config struct {
	APIKey string      // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model  string      // Model to use (default: GetDefaultModel())
	Retry  RetryConfig // Retry configuration (uses defaults if MaxRetries is 0)

	Pacer Pacer        // Optional; waited on before every attempt
	Usage UsageTracker // Optional; budget check before and metering after every call
	Sink  events.Sink  // Optional; receives ai_call events

	// messages overrides the Anthropic client (tests only)
	messages messageAPI
}

// NewSupervisor creates a new model supervisor
func NewSupervisor(cfg *Config) (*Supervisor, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	messages := cfg.messages
	if messages == nil {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
			if apiKey == "" {
				return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
			}
		}
		client := anthropic.NewClient(option.WithAPIKey(apiKey))
		messages = &client.Messages
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	var circuitBreaker *CircuitBreaker
	if retry.CircuitBreakerEnabled {
		circuitBreaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}

	var concurrencySem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	pacer := cfg.Pacer
	if pacer == nil {
		pacer = NopPacer{}
	}

	return &Supervisor{
		messages:       messages,
		model:          model,
		retry:          retry,
		circuitBreaker: circuitBreaker,
		concurrencySem: concurrencySem,
		pacer:          pacer,
		usage:          cfg.Usage,
		sink:           cfg.Sink,
	}, nil
}

// Model returns the model the supervisor calls
func (s *Supervisor) Model() string {
	return s.model
}

// HealthCheck returns an error if the circuit breaker is open
func (s *Supervisor) HealthCheck(ctx context.Context) error {
	if s.circuitBreaker == nil {
		return nil
	}
	state, failures, _ := s.circuitBreaker.GetMetrics()
	if state == CircuitOpen {
		return fmt.Errorf("model unavailable: %w (failures=%d, retry in %v)",
			ErrCircuitOpen, failures, s.retry.OpenTimeout)
	}
	return nil
}

// CallAI sends prompt to the model with pacing, retries and usage metering.
// A budget refusal is returned before any request is made.
func (s *Supervisor) CallAI(ctx context.Context, operation, subject, prompt string, maxTokens int) (string, error) {
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	if s.usage != nil {
		if err := s.usage.Check(subject); err != nil {
			return "", fmt.Errorf("%s: %w", operation, err)
		}
	}

	start := time.Now()
	var response *anthropic.Message
	err := s.retryWithBackoff(ctx, operation, func(attemptCtx context.Context) error {
		resp, apiErr := s.messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(s.model),
			MaxTokens: int64(maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		s.emitCall(ctx, operation, subject, events.AICallData{
			Operation:  operation,
			DurationMs: duration.Milliseconds(),
			Error:      err.Error(),
		})
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	inputTokens, outputTokens := response.Usage.InputTokens, response.Usage.OutputTokens
	if s.usage != nil {
		if _, err := s.usage.RecordUsage(ctx, subject, inputTokens, outputTokens); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to record usage for %s: %v\n", subject, err)
		}
	}
	s.emitCall(ctx, operation, subject, events.AICallData{
		Operation:    operation,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		DurationMs:   duration.Milliseconds(),
	})

	return text.String(), nil
}

func (s *Supervisor) emitCall(ctx context.Context, operation, subject string, data events.AICallData) {
	if s.sink == nil {
		return
	}
	event, err := events.NewAICallEvent("", subject, agentFor(operation), s.model, data)
	events.EmitData(ctx, s.sink, event, err)
}

// agentFor maps an operation to the agent name recorded on its events
func agentFor(operation string) string {
	switch operation {
	case OpDiagnose:
		return events.AgentAuditor
	case OpRemediate:
		return events.AgentFixer
	case OpVerify:
		return events.AgentJudge
	default:
		return events.AgentSystem
	}
}
