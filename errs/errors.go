// Package errs defines the error taxonomy shared across the RPC access
// layer and discovery pipeline.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEligibleEndpoint is returned when no registered endpoint carries
	// the capability a call requires, or when every endpoint that does has a
	// breaker that would currently reject the call.
	ErrNoEligibleEndpoint = errors.New("no eligible endpoint for requested capability")
	// ErrAllEndpointsExhausted is returned when every candidate endpoint
	// failed during a single execute call.
	ErrAllEndpointsExhausted = errors.New("all endpoints exhausted")
	// ErrCircuitOpen names a breaker rejection. CircuitBreaker.TryAcquire
	// reports a rejection as the Rejected admission value and FallbackChain
	// skips that endpoint; no function in this module returns this error.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrInsufficientBalance is returned by tokenamount.TokenAmount.Sub when
	// the result would be negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrAssetNotFound names an asset lookup miss; no function in this
	// module returns it.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrInvalidAddress marks a wallet address that failed validation.
	ErrInvalidAddress = errors.New("invalid wallet address")
)

// ValidationError reports an input that failed a local check before any
// network call was attempted. Never retryable.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NetworkError reports a transport or RPC-level failure. Retryable is set
// by the classifier for timeouts, connection resets, HTTP 5xx and RPC
// rate-limit responses.
type NetworkError struct {
	Endpoint  string
	Op        string
	Retryable bool
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s on %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TimeoutError is a NetworkError specialization that is always retryable.
type TimeoutError struct {
	Endpoint string
	Op       string
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout calling %s on %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// AsNetworkError reports whether err carries retry classification, either
// as a *NetworkError or a *TimeoutError (always retryable).
func AsNetworkError(err error) (retryable bool, ok bool) {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Retryable, true
	}
	var toErr *TimeoutError
	if errors.As(err, &toErr) {
		return true, true
	}
	return false, false
}

// MetadataFetchError is a per-item error accumulated in a DiscoveryResult;
// it never aborts the containing batch.
type MetadataFetchError struct {
	Mint string
	Err  error
}

func (e *MetadataFetchError) Error() string {
	return fmt.Sprintf("metadata fetch failed for mint %s: %v", e.Mint, e.Err)
}

func (e *MetadataFetchError) Unwrap() error {
	return e.Err
}

// NFTParseError reports a failure to parse one mint's NFT metadata. The
// asset discovery service does not produce it; the per-item errors it
// accumulates are MetadataFetchError values.
type NFTParseError struct {
	Mint string
	Err  error
}

func (e *NFTParseError) Error() string {
	return fmt.Sprintf("nft metadata parse failed for mint %s: %v", e.Mint, e.Err)
}

func (e *NFTParseError) Unwrap() error {
	return e.Err
}

// CacheError is internal bookkeeping; callers should never see it surface
// past a cache boundary. A cache miss is not an error.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error during %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}
