package rpcchain

import (
	"sync"
	"time"
)

// Capability gates which RPC methods may be dispatched to an endpoint.
type Capability string

const (
	CapStandard Capability = "standard"
	CapDAS      Capability = "das"
	CapArchive  Capability = "archive"
)

// EndpointConfig is the immutable configuration for one RPC endpoint,
// constructed at chain initialization.
type EndpointConfig struct {
	URL          string
	Name         string
	Priority     int
	Capabilities map[Capability]bool
	RateLimit    RateLimiterConfig
	Breaker      BreakerConfig
	TimeoutMs    int
}

// HasCapability reports whether the endpoint advertises cap.
func (c EndpointConfig) HasCapability(cap Capability) bool {
	return c.Capabilities[cap]
}

// ConnectionHandle is the opaque per-endpoint transport handle an
// operation receives; its concrete type is the solrpc.Connection
// implementation wired in by the caller.
type ConnectionHandle any

// EndpointState is the live, mutable state paired one-to-one with an
// EndpointConfig: its breaker, limiter, health tag, and connection handle.
// It lives for the lifetime of the owning FallbackChain.
type EndpointState struct {
	Config     EndpointConfig
	Breaker    *CircuitBreaker
	Limiter    *TokenBucketRateLimiter
	Connection ConnectionHandle

	mu      sync.RWMutex
	health  HealthStatus
	latency time.Duration
}

// newEndpointState builds live state for a config and connection handle.
func newEndpointState(cfg EndpointConfig, conn ConnectionHandle) *EndpointState {
	return &EndpointState{
		Config:     cfg,
		Breaker:    NewCircuitBreaker(cfg.Breaker),
		Limiter:    NewTokenBucketRateLimiter(cfg.RateLimit),
		Connection: conn,
		health:     HealthUnknown,
	}
}

func (s *EndpointState) setHealth(status HealthStatus, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = status
	s.latency = latency
}

func (s *EndpointState) snapshotHealth() (HealthStatus, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health, s.latency
}
