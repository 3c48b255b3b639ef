package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRetryAfterFromMessage(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected time.Duration
	}{
		{"try again in minutes", "rate limit exceeded, try again in 12 minutes", 12 * time.Minute},
		{"try again in seconds", "quota exceeded, try again in 720 seconds", 720 * time.Second},
		{"try again in hour", "rate limit hit, try again in 1 hour", time.Hour},
		{"wait minutes", "please wait 5 minutes before retrying", 5 * time.Minute},
		{"json retry_after", `{"error": "rate_limit_error", "retry_after": 600}`, 600 * time.Second},
		{"header style", "retry-after: 300 seconds recommended", 300 * time.Second},
		{"case insensitive", "Try Again In 10 Minutes", 10 * time.Minute},
		{"no match", "unknown error format", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseRetryAfterFromMessage(tt.message))
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedType ErrorType
		expectWait   bool
	}{
		{"nil", nil, ErrorUnknown, false},
		{"deadline", context.DeadlineExceeded, ErrorTransient, false},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrorTransient, false},
		{"rate limit text", errors.New("429 Too Many Requests: rate limit"), ErrorQuota, true},
		{"overloaded", errors.New("529 overloaded_error"), ErrorTransient, false},
		{"server error", errors.New("503 service unavailable"), ErrorTransient, false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), ErrorTransient, false},
		{"unauthorized", errors.New("401 unauthorized"), ErrorAuth, false},
		{"bad request", errors.New("400 invalid_request_error"), ErrorInvalid, false},
		{"unknown", errors.New("something odd"), ErrorUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errType, wait := classifyError(tt.err)
			assert.Equal(t, tt.expectedType, errType)
			if tt.expectWait {
				assert.Greater(t, wait, time.Duration(0))
			} else {
				assert.Equal(t, time.Duration(0), wait)
			}
		})
	}
}

func TestClassifyErrorWithAnthropicSDKError(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		retryAfter   string
		expectedType ErrorType
		expectedWait time.Duration
	}{
		{"429 with Retry-After", http.StatusTooManyRequests, "720", ErrorQuota, 720 * time.Second},
		{"429 without Retry-After", http.StatusTooManyRequests, "", ErrorQuota, defaultQuotaWait},
		{"500", http.StatusInternalServerError, "", ErrorTransient, 0},
		{"502", http.StatusBadGateway, "", ErrorTransient, 0},
		{"400", http.StatusBadRequest, "", ErrorInvalid, 0},
		{"401", http.StatusUnauthorized, "", ErrorAuth, 0},
		{"403", http.StatusForbidden, "", ErrorAuth, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.statusCode, Header: http.Header{}}
			if tt.retryAfter != "" {
				resp.Header.Set("Retry-After", tt.retryAfter)
			}
			apiErr := &anthropic.Error{StatusCode: tt.statusCode, Response: resp}

			errType, wait := classifyError(fmt.Errorf("wrapped: %w", apiErr))
			assert.Equal(t, tt.expectedType, errType)
			assert.Equal(t, tt.expectedWait, wait)
		})
	}
}

func TestErrorTypeStringer(t *testing.T) {
	assert.Equal(t, "TRANSIENT", ErrorTransient.String())
	assert.Equal(t, "QUOTA", ErrorQuota.String())
	assert.Equal(t, "AUTH", ErrorAuth.String())
	assert.Equal(t, "INVALID", ErrorInvalid.String())
	assert.Equal(t, "UNKNOWN", ErrorUnknown.String())
	assert.True(t, ErrorQuota.Retriable())
	assert.False(t, ErrorAuth.Retriable())
	assert.True(t, isRetriableError(errors.New("502 bad gateway")))
	assert.False(t, isRetriableError(errors.New("403 forbidden")))
}

func TestCircuitBreakerStates(t *testing.T) {
	cb := NewCircuitBreaker(2, 1, 10*time.Millisecond)
	assert.Equal(t, CircuitClosed, cb.GetState())

	cb.RecordFailure()
	require.NoError(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.GetState())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.GetState())

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.GetState())
	_, failures, _ := cb.GetMetrics()
	assert.Equal(t, 0, failures)
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.GetState())
}

func TestCircuitBreakerQuotaWeighting(t *testing.T) {
	cb := NewCircuitBreaker(5, 2, 30*time.Second)

	cb.recordFailureWithType(ErrorQuota)
	state, failures, _ := cb.GetMetrics()
	assert.Equal(t, CircuitClosed, state)
	assert.Equal(t, 3, failures)

	cb.recordFailureWithType(ErrorQuota)
	state, failures, _ = cb.GetMetrics()
	assert.Equal(t, CircuitOpen, state)
	assert.Equal(t, 6, failures)
}

func fastRetrySupervisor(maxRetries int, breaker *CircuitBreaker) *Supervisor {
	return &Supervisor{
		retry: RetryConfig{
			MaxRetries:        maxRetries,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        2 * time.Millisecond,
			BackoffMultiplier: 2,
			Timeout:           time.Second,
			MaxQuotaWait:      time.Millisecond,
		},
		circuitBreaker: breaker,
	}
}

func TestRetryWithBackoff_RecoversFromTransient(t *testing.T) {
	s := fastRetrySupervisor(3, nil)
	attempts := 0

	err := s.retryWithBackoff(context.Background(), "test", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_NonRetriableStopsImmediately(t *testing.T) {
	breaker := NewCircuitBreaker(1, 1, time.Minute)
	s := fastRetrySupervisor(3, breaker)
	attempts := 0

	err := s.retryWithBackoff(context.Background(), "test", func(ctx context.Context) error {
		attempts++
		return errors.New("401 unauthorized")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, CircuitClosed, breaker.GetState(), "auth errors must not trip the breaker")
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	s := fastRetrySupervisor(2, nil)
	attempts := 0

	err := s.retryWithBackoff(context.Background(), "test", func(ctx context.Context) error {
		attempts++
		return errors.New("429 rate limit, try again in 30 seconds")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_CircuitOpenFailsFast(t *testing.T) {
	breaker := NewCircuitBreaker(1, 1, time.Minute)
	breaker.RecordFailure()
	s := fastRetrySupervisor(3, breaker)

	called := false
	err := s.retryWithBackoff(context.Background(), "test", func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	s := fastRetrySupervisor(5, nil)
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := s.retryWithBackoff(ctx, "test", func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("503 service unavailable")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
