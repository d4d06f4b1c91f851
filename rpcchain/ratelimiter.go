package rpcchain

import (
	"sync"
	"time"
)

// RateLimitOutcome is the admission result from Acquire.
type RateLimitOutcome struct {
	Admitted   bool
	RetryAfter time.Duration
}

// RateLimiterConfig configures a TokenBucketRateLimiter.
type RateLimiterConfig struct {
	Capacity       float64
	RefillPerSec   float64
}

// DefaultRateLimiterConfig is a conservative per-endpoint default.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{Capacity: 10, RefillPerSec: 5}
}

// TokenBucketRateLimiter is a classic lazy-refill token bucket. It never
// blocks: callers either get Admitted or a RetryAfter duration to wait or
// fail over.
type TokenBucketRateLimiter struct {
	mu sync.Mutex

	capacity     float64
	refillRate   float64
	tokens       float64
	lastRefill   time.Time
}

// NewTokenBucketRateLimiter constructs a limiter starting at full capacity.
func NewTokenBucketRateLimiter(cfg RateLimiterConfig) *TokenBucketRateLimiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultRateLimiterConfig().Capacity
	}
	if cfg.RefillPerSec <= 0 {
		cfg.RefillPerSec = DefaultRateLimiterConfig().RefillPerSec
	}
	return &TokenBucketRateLimiter{
		capacity:   cfg.Capacity,
		refillRate: cfg.RefillPerSec,
		tokens:     cfg.Capacity,
		lastRefill: time.Now(),
	}
}

// Acquire attempts to admit n tokens (default 1 when n <= 0).
func (r *TokenBucketRateLimiter) Acquire(n float64) RateLimitOutcome {
	if n <= 0 {
		n = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	if elapsed > 0 {
		r.tokens = min(r.tokens+elapsed*r.refillRate, r.capacity)
		r.lastRefill = now
	}

	if r.tokens >= n {
		r.tokens -= n
		return RateLimitOutcome{Admitted: true}
	}

	deficit := n - r.tokens
	retryAfter := time.Duration(deficit / r.refillRate * float64(time.Second))
	return RateLimitOutcome{Admitted: false, RetryAfter: retryAfter}
}

// Tokens reports the current token count, refilled as of now. Intended for
// tests and metrics only.
func (r *TokenBucketRateLimiter) Tokens() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	return min(r.tokens+elapsed*r.refillRate, r.capacity)
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
