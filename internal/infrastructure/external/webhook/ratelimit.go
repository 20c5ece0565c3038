package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitError is returned when a request cannot acquire a token before the
// wait timeout elapses.
type RateLimitError struct {
	WaitedFor time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("webhook rate limit: gave up after waiting %s", e.WaitedFor)
}

// Is makes all RateLimitError values match each other with errors.Is.
func (e *RateLimitError) Is(target error) bool {
	_, ok := target.(*RateLimitError)
	return ok
}

// RateLimiterConfig controls the token bucket in front of the host-app endpoint.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained delivery rate.
	RequestsPerSecond float64

	// BurstSize is the maximum number of tokens the bucket holds.
	BurstSize int

	// WaitTimeout bounds how long Wait blocks for a token.
	WaitTimeout time.Duration
}

// DefaultRateLimiterConfig suits a typical household install: notifications
// arrive in small bursts (a review sweep, a digest) and never sustain load.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 5.0,
		BurstSize:         10,
		WaitTimeout:       5 * time.Second,
	}
}

// RateLimiter is a token-bucket limiter. Tokens refill continuously at
// RequestsPerSecond up to BurstSize.
type RateLimiter struct {
	mu          sync.Mutex
	maxTokens   float64
	refillRate  float64
	tokens      float64
	lastRefill  time.Time
	waitTimeout time.Duration
}

// NewRateLimiter creates a RateLimiter from config, starting with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultRateLimiterConfig().RequestsPerSecond
	}
	if config.BurstSize <= 0 {
		config.BurstSize = DefaultRateLimiterConfig().BurstSize
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = DefaultRateLimiterConfig().WaitTimeout
	}
	return &RateLimiter{
		maxTokens:   float64(config.BurstSize),
		refillRate:  config.RequestsPerSecond,
		tokens:      float64(config.BurstSize),
		lastRefill:  time.Now(),
		waitTimeout: config.WaitTimeout,
	}
}

// Wait blocks until a token is available, the context is cancelled, or the
// wait timeout elapses.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	deadline := time.Now().Add(rl.waitTimeout)

	for {
		wait, ok := rl.tryAcquire()
		if ok {
			return nil
		}
		if time.Now().Add(wait).After(deadline) {
			return &RateLimitError{WaitedFor: rl.waitTimeout}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire takes a token if one is available, otherwise reports how long
// until the next token refills.
func (rl *RateLimiter) tryAcquire() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now

	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}

	deficit := 1 - rl.tokens
	wait := time.Duration(deficit / rl.refillRate * float64(time.Second))
	return wait, false
}
