package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

// State is the breaker state.
type State int

const (
	// StateClosed passes calls through and counts consecutive failures.
	StateClosed State = iota
	// StateOpen rejects all calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits exactly one trial call.
	StateHalfOpen
)

// String returns the state name for logs and metrics.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a classic failure-counting circuit breaker guarding one
// downstream category. Closed counts consecutive failures and opens at
// the threshold; Open rejects fast until the cooldown elapses; HalfOpen
// admits exactly one trial call - concurrent callers arriving before the
// trial resolves are rejected, never piled onto the trial.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	logger    *zap.Logger

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	trialInFlight       bool
}

// Config holds breaker configuration.
type Config struct {
	Name             string // downstream category, used in logs and metrics
	FailureThreshold int
	Cooldown         time.Duration
	Logger           *zap.Logger
}

// New creates a new circuit breaker in the Closed state.
func New(cfg *Config) (*Breaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}
	if cfg.FailureThreshold <= 0 {
		return nil, fmt.Errorf("failure threshold must be positive")
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive")
	}

	StateGauge.WithLabelValues(cfg.Name).Set(float64(StateClosed))

	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.FailureThreshold,
		cooldown:  cfg.Cooldown,
		logger:    cfg.Logger,
		state:     StateClosed,
	}, nil
}

// Allow reports whether a call may be attempted. It returns
// types.ErrCircuitOpen when the breaker rejects. A nil return from Allow
// must be paired with exactly one RecordSuccess or RecordFailure once the
// call resolves.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(b.openedAt) < b.cooldown {
			RejectedTotal.WithLabelValues(b.name).Inc()
			return types.ErrCircuitOpen
		}
		// Cooldown elapsed: this caller becomes the single HalfOpen trial.
		b.transitionLocked(StateHalfOpen)
		b.trialInFlight = true
		return nil

	case StateHalfOpen:
		if b.trialInFlight {
			RejectedTotal.WithLabelValues(b.name).Inc()
			return types.ErrCircuitOpen
		}
		b.trialInFlight = true
		return nil

	default:
		return fmt.Errorf("breaker %q in unknown state %d", b.name, b.state)
	}
}

// RecordSuccess reports a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.trialInFlight = false
		b.consecutiveFailures = 0
		b.transitionLocked(StateClosed)
		b.logger.Info("breaker-recovered", zap.String("breaker", b.name))
	case StateClosed:
		b.consecutiveFailures = 0
	case StateOpen:
		// A late result from a call admitted before opening. Ignore.
	}
}

// RecordFailure reports a failed call. Cancellation mid-call counts: an
// unresponsive upstream is a failure regardless of who gave up first.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	FailuresTotal.WithLabelValues(b.name).Inc()

	switch b.state {
	case StateHalfOpen:
		b.trialInFlight = false
		b.openedAt = time.Now()
		b.transitionLocked(StateOpen)
		b.logger.Warn("breaker-trial-failed",
			zap.String("breaker", b.name),
			zap.Duration("cooldown", b.cooldown))
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.threshold {
			b.openedAt = time.Now()
			b.transitionLocked(StateOpen)
			b.logger.Warn("breaker-opened",
				zap.String("breaker", b.name),
				zap.Int("consecutive-failures", b.consecutiveFailures),
				zap.Duration("cooldown", b.cooldown))
		}
	case StateOpen:
		// Late failure from a call admitted before opening. Ignore.
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure streak.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

func (b *Breaker) transitionLocked(next State) {
	b.state = next
	StateGauge.WithLabelValues(b.name).Set(float64(next))
	TransitionsTotal.WithLabelValues(b.name, next.String()).Inc()
}
