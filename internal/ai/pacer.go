package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum spacing between model calls. Wait blocks until the
// next call may start or ctx is done.
type Pacer interface {
	Wait(ctx context.Context) error
}

// PacerStats reports pacing activity
type PacerStats struct {
	RequestsPerMinute int
	Calls             int
	Delayed           int
	TotalWait         time.Duration
}

// RatePacer allows at most RequestsPerMinute calls per minute, evenly spaced.
// The first call never waits.
type RatePacer struct {
	limiter *rate.Limiter
	rpm     int

	mu    sync.Mutex
	stats PacerStats
}

// NewRatePacer creates a pacer for rpm requests per minute
func NewRatePacer(rpm int) (*RatePacer, error) {
	if rpm <= 0 {
		return nil, fmt.Errorf("requests per minute must be positive, got %d", rpm)
	}
	return &RatePacer{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		rpm:     rpm,
		stats:   PacerStats{RequestsPerMinute: rpm},
	}, nil
}

// MinDelay is the enforced spacing between consecutive calls
func (p *RatePacer) MinDelay() time.Duration {
	return time.Minute / time.Duration(p.rpm)
}

// Wait blocks until the limiter grants a slot
func (p *RatePacer) Wait(ctx context.Context) error {
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacing: %w", err)
	}
	waited := time.Since(start)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Calls++
	// Sub-millisecond waits are scheduling noise, not pacing
	if waited > time.Millisecond {
		p.stats.Delayed++
		p.stats.TotalWait += waited
	}
	return nil
}

// Stats returns a snapshot of pacing activity
func (p *RatePacer) Stats() PacerStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// NopPacer never waits
type NopPacer struct{}

// Wait returns ctx's error, if any
func (NopPacer) Wait(ctx context.Context) error { return ctx.Err() }
