package rpcchain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cygnus-wealth/sol-core/errs"
)

func testConfig(name string, priority int, caps ...Capability) EndpointConfig {
	capSet := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		capSet[c] = true
	}
	return EndpointConfig{
		URL:          "https://" + name,
		Name:         name,
		Priority:     priority,
		Capabilities: capSet,
		RateLimit:    RateLimiterConfig{Capacity: 10, RefillPerSec: 10},
		Breaker:      BreakerConfig{FailureThreshold: 3, RecoveryMs: 5000, SuccessThreshold: 1},
		TimeoutMs:    2000,
	}
}

func TestFallbackChain_HappyPath(t *testing.T) {
	e1 := testConfig("e1", 1, CapStandard, CapDAS)
	e2 := testConfig("e2", 2, CapStandard)
	chain := NewFallbackChain(DefaultChainConfig(), []EndpointConfig{e1, e2}, nil, nil)

	result, err := Execute(context.Background(), chain, func(ctx context.Context, conn ConnectionHandle) (string, error) {
		return "1000000000", nil
	}, ExecuteOptions{})

	require.NoError(t, err)
	require.Equal(t, "1000000000", result)

	states := chain.GetEndpointStates()
	require.Equal(t, 1, states[0].Breaker.Snapshot().ConsecutiveSuccesses)
	require.Equal(t, 0, states[1].Breaker.Snapshot().ConsecutiveSuccesses)
}

func TestFallbackChain_FallbackOn5xx(t *testing.T) {
	e1 := testConfig("e1", 1, CapStandard)
	e2 := testConfig("e2", 2, CapStandard)
	chain := NewFallbackChain(DefaultChainConfig(), []EndpointConfig{e1, e2}, nil, nil)

	calls := 0
	result2, err2 := Execute(context.Background(), chain, func(ctx context.Context, conn ConnectionHandle) (int64, error) {
		calls++
		if calls == 1 {
			return 0, &errs.NetworkError{Endpoint: "e1", Op: "getBalance", Retryable: true}
		}
		return 2_000_000_000, nil
	}, ExecuteOptions{})

	require.NoError(t, err2)
	require.Equal(t, int64(2_000_000_000), result2)
	require.Equal(t, uint64(1), chain.GetMetrics().FallbacksTriggered)
}

func TestFallbackChain_BreakerTrips(t *testing.T) {
	e1 := testConfig("e1", 1, CapStandard)
	cfg := e1
	cfg.Breaker = BreakerConfig{FailureThreshold: 3, RecoveryMs: 50, SuccessThreshold: 1}
	chain := NewFallbackChain(DefaultChainConfig(), []EndpointConfig{cfg}, nil, nil)

	for i := 0; i < 3; i++ {
		_, err := Execute(context.Background(), chain, func(ctx context.Context, conn ConnectionHandle) (int, error) {
			return 0, &errs.NetworkError{Endpoint: "e1", Op: "getBalance", Retryable: true}
		}, ExecuteOptions{})
		require.Error(t, err)
	}

	states := chain.GetEndpointStates()
	require.Equal(t, PhaseOpen, states[0].Breaker.Snapshot().Phase)

	_, err := Execute(context.Background(), chain, func(ctx context.Context, conn ConnectionHandle) (int, error) {
		t.Fatal("operation should not be invoked while breaker is open")
		return 0, nil
	}, ExecuteOptions{})
	require.ErrorIs(t, err, errs.ErrNoEligibleEndpoint)

	time.Sleep(60 * time.Millisecond)
	_, err = Execute(context.Background(), chain, func(ctx context.Context, conn ConnectionHandle) (int, error) {
		return 42, nil
	}, ExecuteOptions{})
	require.NoError(t, err)
	require.Equal(t, PhaseClosed, chain.GetEndpointStates()[0].Breaker.Snapshot().Phase)
}

func TestFallbackChain_DASRestriction(t *testing.T) {
	e1 := testConfig("e1", 1, CapDAS)
	e2 := testConfig("e2", 2, CapStandard)
	chain := NewFallbackChain(DefaultChainConfig(), []EndpointConfig{e1, e2}, nil, nil)

	chain.GetEndpointStates()[0].Breaker.ForceOpen("forced for test")

	invoked := false
	_, err := Execute(context.Background(), chain, func(ctx context.Context, conn ConnectionHandle) (int, error) {
		invoked = true
		return 0, nil
	}, ExecuteOptions{Method: "getAssetsByOwner"})

	require.ErrorIs(t, err, errs.ErrNoEligibleEndpoint)
	require.False(t, invoked)
}

func TestFallbackChain_RateLimitAdmission(t *testing.T) {
	e1 := testConfig("e1", 1, CapStandard)
	e1.RateLimit = RateLimiterConfig{Capacity: 2, RefillPerSec: 1}
	chain := NewFallbackChain(DefaultChainConfig(), []EndpointConfig{e1}, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := Execute(context.Background(), chain, func(ctx context.Context, conn ConnectionHandle) (int, error) {
			return 0, nil
		}, ExecuteOptions{RateLimitBudget: 2 * time.Second})
		require.NoError(t, err)
	}

	start := time.Now()
	_, err := Execute(context.Background(), chain, func(ctx context.Context, conn ConnectionHandle) (int, error) {
		return 0, nil
	}, ExecuteOptions{RateLimitBudget: 2 * time.Second})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.GreaterOrEqual(t, elapsed, 800*time.Millisecond)
}

func TestFallbackChain_AllEndpointsExhausted(t *testing.T) {
	e1 := testConfig("e1", 1, CapStandard)
	chain := NewFallbackChain(DefaultChainConfig(), []EndpointConfig{e1}, nil, nil)

	_, err := Execute(context.Background(), chain, func(ctx context.Context, conn ConnectionHandle) (int, error) {
		return 0, &errs.NetworkError{Endpoint: "e1", Op: "getBalance", Retryable: true}
	}, ExecuteOptions{})

	require.ErrorIs(t, err, errs.ErrAllEndpointsExhausted)
	require.Equal(t, uint64(1), chain.GetMetrics().FailedRequests)
}
