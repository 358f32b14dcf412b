package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fast-fail paths. Callers match with errors.Is.
var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call
	// without attempting the network.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrRateLimitTimeout is returned when the caller's deadline expired
	// while waiting for a rate-limit token.
	ErrRateLimitTimeout = errors.New("rate limit wait timed out")

	// ErrBudgetExceeded is returned when an action would push cumulative
	// committed budget past the owner's ceiling. The action is skipped.
	ErrBudgetExceeded = errors.New("budget exceeded")
)

// UpstreamError is a network or HTTP failure from the provider.
// It counts toward the circuit breaker's failure threshold.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

// ParseError is a malformed provider response. It indicates a contract
// mismatch, not unavailability, so it is never counted as a breaker failure
// and never retried.
type ParseError struct {
	Field   string
	Message string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse error: field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

// InvalidPriceError is a non-positive denominator in profit math.
// The offending listing is dropped from the scan.
type InvalidPriceError struct {
	Price int64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price %d: must be positive", e.Price)
}
