package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// RetryConfig holds retry configuration for model calls
type RetryConfig struct {
	MaxRetries        int           // Maximum number of retries (default: 3)
	InitialBackoff    time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff        time.Duration // Maximum backoff duration (default: 30s)
	BackoffMultiplier float64       // Backoff multiplier (default: 2.0)
	Timeout           time.Duration // Per-request timeout (default: 120s)

	// Circuit breaker settings
	CircuitBreakerEnabled bool          // Enable circuit breaker (default: true)
	FailureThreshold      int           // Weighted failures before opening circuit (default: 5)
	SuccessThreshold      int           // Successes in half-open before closing (default: 2)
	OpenTimeout           time.Duration // How long to keep circuit open (default: 30s)

	// MaxQuotaWait caps how long a single quota (429) backoff may sleep
	MaxQuotaWait time.Duration

	// Concurrency limit
	MaxConcurrentCalls int // Maximum concurrent model calls (default: 1, 0 = unlimited)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:            3,
		InitialBackoff:        1 * time.Second,
		MaxBackoff:            30 * time.Second,
		BackoffMultiplier:     2.0,
		Timeout:               120 * time.Second,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      2,
		OpenTimeout:           30 * time.Second,
		MaxQuotaWait:          2 * time.Minute,
		MaxConcurrentCalls:    1,
	}
}

// ErrorType classifies a failed model call for retry decisions
type ErrorType int

const (
	ErrorUnknown   ErrorType = iota // Unrecognized; not retried
	ErrorTransient                  // Timeouts, 5xx, connection errors
	ErrorQuota                      // 429 rate limit / quota
	ErrorAuth                       // 401/403
	ErrorInvalid                    // Other 4xx
)

func (e ErrorType) String() string {
	switch e {
	case ErrorTransient:
		return "TRANSIENT"
	case ErrorQuota:
		return "QUOTA"
	case ErrorAuth:
		return "AUTH"
	case ErrorInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// Retriable reports whether calls failing with this type may succeed later
func (e ErrorType) Retriable() bool {
	return e == ErrorTransient || e == ErrorQuota
}

// quotaFailureWeight is how many breaker failures one quota error counts as
const quotaFailureWeight = 3

// defaultQuotaWait is used for 429s that carry no retry hint
const defaultQuotaWait = time.Minute

var retryAfterPattern = regexp.MustCompile(`(?i)(?:try again in|wait|retry[-_]after"?:?)\s*(\d+)\s*(hours?|minutes?|seconds?|s\b)?`)

// classifyError sorts an error into an ErrorType and, for quota errors,
// returns how long the API asked us to wait.
func classifyError(err error) (ErrorType, time.Duration) {
	if err == nil {
		return ErrorUnknown, 0
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			wait := retryAfterFromResponse(apiErr.Response)
			if wait == 0 {
				wait = defaultQuotaWait
			}
			return ErrorQuota, wait
		case apiErr.StatusCode >= 500:
			return ErrorTransient, 0
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return ErrorAuth, 0
		case apiErr.StatusCode >= 400:
			return ErrorInvalid, 0
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTransient, 0
	}

	// Wrapped or foreign errors only carry a message
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || containsAny(msg, "rate limit", "rate_limit", "quota"):
		wait := parseRetryAfterFromMessage(msg)
		if wait == 0 {
			wait = defaultQuotaWait
		}
		return ErrorQuota, wait
	case containsAny(msg, "500", "502", "503", "504", "529", "internal server error", "bad gateway",
		"service unavailable", "gateway timeout", "overloaded"):
		return ErrorTransient, 0
	case containsAny(msg, "connection refused", "connection reset", "timeout", "temporary failure", "network"):
		return ErrorTransient, 0
	case containsAny(msg, "401", "403", "unauthorized", "forbidden"):
		return ErrorAuth, 0
	case containsAny(msg, "400", "404", "422"):
		return ErrorInvalid, 0
	}
	return ErrorUnknown, 0
}

// isRetriableError determines if an error is retriable (transient or quota)
func isRetriableError(err error) bool {
	errType, _ := classifyError(err)
	return errType.Retriable()
}

func retryAfterFromResponse(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// parseRetryAfterFromMessage extracts hints like "try again in 12 minutes"
// or "retry_after": 600 from an error message. Bare numbers are seconds.
func parseRetryAfterFromMessage(msg string) time.Duration {
	m := retryAfterPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0
	}
	unit := strings.ToLower(m[2])
	switch {
	case strings.HasPrefix(unit, "hour"):
		return time.Duration(n) * time.Hour
	case strings.HasPrefix(unit, "minute"):
		return time.Duration(n) * time.Minute
	default:
		return time.Duration(n) * time.Second
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation, requests pass through
	CircuitOpen                         // Too many failures, block requests (fail fast)
	CircuitHalfOpen                     // Testing recovery, allow limited requests
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling a failing API until it has had time to recover
type CircuitBreaker struct {
	mu sync.Mutex

	state            CircuitState
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(failureThreshold, successThreshold int, openTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
	}
}

// Allow returns ErrCircuitOpen while the circuit is open and the open timeout
// has not elapsed. After the timeout it moves to half-open and lets a probe through.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return nil
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) > cb.openTimeout {
			cb.transition(CircuitHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	default:
		return ErrCircuitOpen
	}
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount = 0
	case CircuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transition(CircuitClosed)
		}
	}
}

// RecordFailure records a failed request with unit weight
func (cb *CircuitBreaker) RecordFailure() {
	cb.recordFailureWithType(ErrorUnknown)
}

// recordFailureWithType weights quota errors more heavily than other failures
func (cb *CircuitBreaker) recordFailureWithType(errType ErrorType) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	weight := 1
	if errType == ErrorQuota {
		weight = quotaFailureWeight
	}
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount += weight
		if cb.failureCount >= cb.failureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Any failure while probing reopens the circuit
		cb.transition(CircuitOpen)
	}
}

// GetState returns the current state (for testing/monitoring)
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetMetrics returns current metrics (for monitoring/logging)
func (cb *CircuitBreaker) GetMetrics() (state CircuitState, failures, successes int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.failureCount, cb.successCount
}

// transition must be called with the lock held
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.successCount = 0
	if to == CircuitClosed {
		cb.failureCount = 0
	}
	slog.Info("circuit breaker transition",
		"from", from.String(),
		"to", to.String(),
		"failures", cb.failureCount,
		"open_timeout", cb.openTimeout)
}

// retryWithBackoff runs fn until it succeeds, fails with a non-retriable
// error, or exhausts the retry budget. Every attempt first waits on the pacer
// with the caller's context, then runs under its own timeout.
func (s *Supervisor) retryWithBackoff(ctx context.Context, operation string, fn func(context.Context) error) error {
	if s.concurrencySem != nil {
		if err := s.concurrencySem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("failed to acquire concurrency slot for %s: %w", operation, err)
		}
		defer s.concurrencySem.Release(1)
	}

	var lastErr error
	backoff := s.retry.InitialBackoff

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if s.circuitBreaker != nil {
			if err := s.circuitBreaker.Allow(); err != nil {
				state, failures, _ := s.circuitBreaker.GetMetrics()
				fmt.Fprintf(os.Stderr, "model %s blocked by circuit breaker (state=%s, failures=%d)\n",
					operation, state, failures)
				return fmt.Errorf("%s failed: %w", operation, err)
			}
		}

		// Pacing delay is not part of the request timeout
		if s.pacer != nil {
			if err := s.pacer.Wait(ctx); err != nil {
				return fmt.Errorf("%s: %w", operation, err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.retry.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if s.circuitBreaker != nil {
				s.circuitBreaker.RecordSuccess()
			}
			if attempt > 0 {
				fmt.Printf("model %s succeeded after %d retries\n", operation, attempt)
			}
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("%s failed: %w", operation, ctx.Err())
		}

		errType, quotaWait := classifyError(err)
		if !errType.Retriable() {
			// Auth and request errors say nothing about API health
			fmt.Fprintf(os.Stderr, "model %s failed with non-retriable %s error: %v\n", operation, errType, err)
			return err
		}
		if s.circuitBreaker != nil {
			s.circuitBreaker.recordFailureWithType(errType)
		}

		if attempt == s.retry.MaxRetries {
			break
		}

		wait := backoff
		if errType == ErrorQuota && quotaWait > wait {
			wait = quotaWait
			if s.retry.MaxQuotaWait > 0 && wait > s.retry.MaxQuotaWait {
				wait = s.retry.MaxQuotaWait
			}
		}

		fmt.Printf("model %s failed (attempt %d/%d, %s), retrying in %v: %v\n",
			operation, attempt+1, s.retry.MaxRetries+1, errType, wait, err)

		select {
		case <-time.After(wait):
			backoff = time.Duration(float64(backoff) * s.retry.BackoffMultiplier)
			if backoff > s.retry.MaxBackoff {
				backoff = s.retry.MaxBackoff
			}
		case <-ctx.Done():
			return fmt.Errorf("%s failed: context canceled during backoff: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, s.retry.MaxRetries+1, lastErr)
}
