package rpcchain

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cygnus-wealth/sol-core/errs"
)

// ExecuteOptions configures a single FallbackChain.Execute call.
type ExecuteOptions struct {
	// Method, when it names a DAS method (see IsDASMethod), restricts
	// candidate endpoints to those advertising CapDAS.
	Method string
	// RequiredCapabilities are capabilities the candidate must advertise,
	// in addition to whatever Method implies.
	RequiredCapabilities []Capability
	// TimeoutMs bounds the per-candidate operation invocation; combined
	// with the endpoint's own TimeoutMs and the chain default via min().
	TimeoutMs int
	// RateLimitBudget bounds how long Execute will cooperatively sleep for
	// a denied rate-limit admission before skipping to the next candidate.
	RateLimitBudget time.Duration
}

// IsDASMethod reports whether method belongs to the Digital Asset Standard
// family (getAsset*, getAssetsBy*, searchAssets), per spec §6.
func IsDASMethod(method string) bool {
	switch {
	case len(method) == 0:
		return false
	case hasPrefix(method, "getAsset"):
		return true
	case hasPrefix(method, "getAssetsBy"):
		return true
	case hasPrefix(method, "searchAssets"):
		return true
	default:
		return false
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// ChainConfig tunes chain-wide defaults.
type ChainConfig struct {
	Name              string
	DefaultTimeoutMs  int
	HealthMonitorCfg  HealthMonitorConfig
	PrometheusRegistry prometheus.Registerer
}

// DefaultChainConfig returns conservative chain-wide defaults.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		Name:             "default",
		DefaultTimeoutMs: 10_000,
		HealthMonitorCfg: DefaultHealthMonitorConfig(),
	}
}

// FallbackChain owns the vector of EndpointStates and the HealthMonitor. It
// selects a healthy endpoint per call, runs the caller's operation under
// that endpoint's breaker and rate limiter, and walks to the next candidate
// on failure.
type FallbackChain struct {
	cfg    ChainConfig
	logger *log.Logger

	mu        sync.RWMutex
	endpoints []*EndpointState

	health  *HealthMonitor
	metrics *chainMetricsRegistry
}

// NewFallbackChain constructs a chain from the given endpoint configs and
// their connection handles. connFactory is invoked once per config to
// obtain the ConnectionHandle that will be passed to every operation
// dispatched to that endpoint.
func NewFallbackChain(cfg ChainConfig, configs []EndpointConfig, connFactory func(EndpointConfig) ConnectionHandle, logger *log.Logger) *FallbackChain {
	if cfg.DefaultTimeoutMs <= 0 {
		cfg = DefaultChainConfig()
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &FallbackChain{
		cfg:     cfg,
		logger:  logger,
		health:  NewHealthMonitor(cfg.HealthMonitorCfg, logger),
		metrics: newChainMetricsRegistry(cfg.Name, cfg.PrometheusRegistry),
	}
	c.endpoints = make([]*EndpointState, 0, len(configs))
	for _, ec := range configs {
		var conn ConnectionHandle
		if connFactory != nil {
			conn = connFactory(ec)
		}
		c.endpoints = append(c.endpoints, newEndpointState(ec, conn))
	}
	return c
}

// UpdateEndpoints hot-swaps the endpoint vector under the chain's exclusive
// lock. Endpoints whose Name persists across the swap keep their prior
// breaker/limiter/health-monitor registration rather than resetting it;
// this answers spec §9 open question (a).
func (c *FallbackChain) UpdateEndpoints(configs []EndpointConfig, connFactory func(EndpointConfig) ConnectionHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := make(map[string]*EndpointState, len(c.endpoints))
	for _, es := range c.endpoints {
		existing[es.Config.Name] = es
	}

	next := make([]*EndpointState, 0, len(configs))
	for _, ec := range configs {
		if prior, ok := existing[ec.Name]; ok {
			prior.Config = ec
			next = append(next, prior)
			continue
		}
		var conn ConnectionHandle
		if connFactory != nil {
			conn = connFactory(ec)
		}
		next = append(next, newEndpointState(ec, conn))
	}
	c.endpoints = next
}

// StartHealthMonitoring registers every current endpoint for which
// proberFor returns a non-nil Prober with the HealthMonitor and starts the
// background probe loop.
func (c *FallbackChain) StartHealthMonitoring(ctx context.Context, proberFor func(EndpointConfig, ConnectionHandle) Prober) error {
	c.mu.RLock()
	endpoints := append([]*EndpointState(nil), c.endpoints...)
	c.mu.RUnlock()

	for _, es := range endpoints {
		if proberFor == nil {
			continue
		}
		prober := proberFor(es.Config, es.Connection)
		if prober == nil {
			continue
		}
		es := es
		_ = c.health.RegisterEndpoint(es.Config.Name, prober, func(h EndpointHealth) {
			es.setHealth(h.Status, h.LatencyEMA)
		})
	}
	return c.health.Start(ctx)
}

// StopHealthMonitoring halts the background probe loop.
func (c *FallbackChain) StopHealthMonitoring(ctx context.Context) error {
	return c.health.Stop(ctx)
}

// GetMetrics returns a snapshot of the chain's monotonic counters.
func (c *FallbackChain) GetMetrics() ChainMetrics {
	return c.metrics.snapshot()
}

// GetEndpointStates returns the live endpoint state vector. Callers must
// not mutate the returned slice's EndpointState values directly; use the
// chain's own operations.
func (c *FallbackChain) GetEndpointStates() []*EndpointState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*EndpointState, len(c.endpoints))
	copy(out, c.endpoints)
	return out
}

// Destroy stops health monitoring and releases the chain. Safe to call
// even if health monitoring was never started.
func (c *FallbackChain) Destroy(ctx context.Context) {
	if c.health.IsRunning() {
		_ = c.health.Stop(ctx)
	}
}

// candidate pairs an endpoint with its advisory rank key.
type candidate struct {
	state        *EndpointState
	breakerOpen  bool
	priority     int
	latencyEMA   time.Duration
}

// rankCandidates filters by capability, then sorts breaker-closed first,
// then by priority ascending, then by latencyEMA ascending.
func (c *FallbackChain) rankCandidates(opts ExecuteOptions) []*EndpointState {
	required := append([]Capability(nil), opts.RequiredCapabilities...)
	if IsDASMethod(opts.Method) {
		required = append(required, CapDAS)
	}

	c.mu.RLock()
	endpoints := append([]*EndpointState(nil), c.endpoints...)
	c.mu.RUnlock()

	cands := make([]candidate, 0, len(endpoints))
	for _, es := range endpoints {
		eligible := true
		for _, cap := range required {
			if !es.Config.HasCapability(cap) {
				eligible = false
				break
			}
		}
		if !eligible {
			continue
		}
		snap := es.Breaker.Snapshot()
		_, latency := es.snapshotHealth()
		cands = append(cands, candidate{
			state:       es,
			breakerOpen: snap.Phase == PhaseOpen,
			priority:    es.Config.Priority,
			latencyEMA:  latency,
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].breakerOpen != cands[j].breakerOpen {
			return !cands[i].breakerOpen
		}
		if cands[i].priority != cands[j].priority {
			return cands[i].priority < cands[j].priority
		}
		return cands[i].latencyEMA < cands[j].latencyEMA
	})

	out := make([]*EndpointState, len(cands))
	for i, cd := range cands {
		out[i] = cd.state
	}
	return out
}

// GetConnection returns the highest-ranked eligible endpoint's connection
// handle without running an operation, or errs.ErrNoEligibleEndpoint if
// none qualify.
func (c *FallbackChain) GetConnection(opts ExecuteOptions) (ConnectionHandle, error) {
	ranked := c.rankCandidates(opts)
	if len(ranked) == 0 {
		return nil, errs.ErrNoEligibleEndpoint
	}
	return ranked[0].Connection, nil
}

// Execute runs op against the best eligible candidate endpoint, falling
// back to the next candidate on a retryable failure. T is the operation's
// result type; Go methods cannot carry type parameters, so this is a
// package-level function taking the chain as its first argument.
func Execute[T any](ctx context.Context, c *FallbackChain, op func(ctx context.Context, conn ConnectionHandle) (T, error), opts ExecuteOptions) (T, error) {
	var zero T
	callID := uuid.New().String()

	ranked := c.rankCandidates(opts)
	if len(ranked) == 0 {
		return zero, errs.ErrNoEligibleEndpoint
	}

	// No capability-and-availability-eligible endpoint exists right now:
	// per spec §4.4, this surfaces as NoEligibleEndpoint even when the
	// ineligible endpoints are merely breaker-tripped rather than
	// permanently incapable.
	anyAvailable := false
	for _, es := range ranked {
		if es.Breaker.WouldAdmit() {
			anyAvailable = true
			break
		}
	}
	if !anyAvailable {
		return zero, errs.ErrNoEligibleEndpoint
	}

	var lastErr error
	for i, es := range ranked {
		if es.Breaker.TryAcquire() == Rejected {
			continue
		}

		outcome := es.Limiter.Acquire(1)
		if !outcome.Admitted {
			budget := opts.RateLimitBudget
			if budget <= 0 {
				budget = time.Second
			}
			if outcome.RetryAfter > budget {
				continue
			}
			select {
			case <-time.After(outcome.RetryAfter):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
			outcome = es.Limiter.Acquire(1)
			if !outcome.Admitted {
				continue
			}
		}

		timeoutMs := minPositiveInt(opts.TimeoutMs, es.Config.TimeoutMs, c.cfg.DefaultTimeoutMs)
		callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
		result, err := op(callCtx, es.Connection)
		cancel()

		if err == nil {
			es.Breaker.RecordSuccess()
			c.metrics.recordSuccess()
			if i > 0 {
				c.metrics.recordFallback()
			}
			return result, nil
		}

		lastErr = err
		if retryable, _ := errs.AsNetworkError(err); retryable {
			es.Breaker.RecordFailure()
			c.logger.Printf("call %s: %s failed on %s, advancing to next candidate: %v", callID, opts.Method, es.Config.Name, err)
		} else {
			es.Breaker.RecordSuccess()
			c.metrics.recordFailure()
			return zero, err
		}
		c.metrics.recordFailure()
		if i > 0 {
			c.metrics.recordFallback()
		}
	}

	return zero, fmt.Errorf("%w: %w", errs.ErrAllEndpointsExhausted, lastErr)
}

func minPositiveInt(values ...int) int {
	best := 0
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if best == 0 || v < best {
			best = v
		}
	}
	if best == 0 {
		return 10_000
	}
	return best
}
