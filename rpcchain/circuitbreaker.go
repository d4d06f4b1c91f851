package rpcchain

import (
	"sync"
	"time"
)

// Phase is the circuit breaker's current state.
type Phase string

const (
	PhaseClosed   Phase = "closed"
	PhaseOpen     Phase = "open"
	PhaseHalfOpen Phase = "half_open"
)

// CircuitState is a point-in-time, read-only snapshot of a breaker.
type CircuitState struct {
	Phase                Phase
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	OpenedAt             time.Time
}

// Admission is the result of tryAcquire.
type Admission int

const (
	Admitted Admission = iota
	Rejected
)

// BreakerConfig configures the three thresholds governing transitions.
type BreakerConfig struct {
	FailureThreshold  int
	RecoveryMs        int
	SuccessThreshold  int
}

// DefaultBreakerConfig supplies any threshold left unset: open after 5
// consecutive failures, recover after 5s, close after 2 probe successes.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryMs:       5000,
		SuccessThreshold: 2,
	}
}

// CircuitBreaker is a per-endpoint failure tracker with three phases:
// Closed, Open, HalfOpen. It is safe for concurrent use.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu                   sync.Mutex
	phase                Phase
	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time
	halfOpenInFlight     bool
}

// NewCircuitBreaker constructs a breaker starting in the Closed phase.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.RecoveryMs <= 0 {
		cfg.RecoveryMs = DefaultBreakerConfig().RecoveryMs
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultBreakerConfig().SuccessThreshold
	}
	return &CircuitBreaker{cfg: cfg, phase: PhaseClosed}
}

// TryAcquire attempts to admit a call. In HalfOpen, only the first caller
// after the recovery window elapses is admitted; concurrent contenders are
// rejected.
func (b *CircuitBreaker) TryAcquire() Admission {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.phase {
	case PhaseClosed:
		return Admitted
	case PhaseOpen:
		if time.Since(b.openedAt) < time.Duration(b.cfg.RecoveryMs)*time.Millisecond {
			return Rejected
		}
		// Recovery window elapsed: move to HalfOpen and grant this caller
		// the single in-flight probe slot.
		b.phase = PhaseHalfOpen
		b.halfOpenInFlight = true
		b.consecutiveSuccesses = 0
		return Admitted
	case PhaseHalfOpen:
		if b.halfOpenInFlight {
			return Rejected
		}
		b.halfOpenInFlight = true
		return Admitted
	default:
		return Rejected
	}
}

// RecordSuccess reports a successful call outcome.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.phase {
	case PhaseClosed:
		b.consecutiveFailures = 0
		b.consecutiveSuccesses++
	case PhaseHalfOpen:
		b.halfOpenInFlight = false
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
			b.phase = PhaseClosed
			b.consecutiveFailures = 0
			b.consecutiveSuccesses = 0
		}
	case PhaseOpen:
		// A success while Open should not occur in normal dispatch, but if
		// it does, treat it as noise rather than mutating phase.
	}
}

// RecordFailure reports a failed call outcome.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.phase {
	case PhaseClosed:
		b.consecutiveFailures++
		b.consecutiveSuccesses = 0
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.phase = PhaseOpen
			b.openedAt = time.Now()
			b.consecutiveFailures = 0
		}
	case PhaseHalfOpen:
		b.halfOpenInFlight = false
		b.phase = PhaseOpen
		b.openedAt = time.Now()
		b.consecutiveSuccesses = 0
	case PhaseOpen:
		// Already open; nothing to do.
	}
}

// ForceOpen trips the breaker immediately regardless of current phase.
// reason is accepted for parity with the spec's operation surface but is
// not retained; callers that need audit trails should log it themselves.
func (b *CircuitBreaker) ForceOpen(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.phase = PhaseOpen
	b.openedAt = time.Now()
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.halfOpenInFlight = false
}

// WouldAdmit reports, without mutating state, whether a call could be
// admitted right now: true when Closed, true when Open but the recovery
// window has elapsed, true when HalfOpen with no probe in flight.
func (b *CircuitBreaker) WouldAdmit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.phase {
	case PhaseClosed:
		return true
	case PhaseOpen:
		return time.Since(b.openedAt) >= time.Duration(b.cfg.RecoveryMs)*time.Millisecond
	case PhaseHalfOpen:
		return !b.halfOpenInFlight
	default:
		return false
	}
}

// Snapshot returns a copy of the breaker's current state.
func (b *CircuitBreaker) Snapshot() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return CircuitState{
		Phase:                b.phase,
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		OpenedAt:             b.openedAt,
	}
}
