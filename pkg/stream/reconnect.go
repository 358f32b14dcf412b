package stream

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BackoffConfig holds exponential backoff settings for reconnection.
type BackoffConfig struct {
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	JitterPercent float64 // 0.2 = up to 20% extra delay
}

// Backoff retries a connect function with exponential backoff and jitter.
type Backoff struct {
	cfg     BackoffConfig
	logger  *zap.Logger
	mu      sync.Mutex
	current time.Duration
}

// NewBackoff creates a backoff helper. Zero-valued fields get safe defaults.
func NewBackoff(cfg BackoffConfig, logger *zap.Logger) *Backoff {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 2.0
	}

	return &Backoff{
		cfg:     cfg,
		logger:  logger,
		current: cfg.InitialDelay,
	}
}

// Retry runs connect until it succeeds or ctx ends, sleeping the current
// backoff before each attempt. A success resets the backoff.
func (b *Backoff) Retry(ctx context.Context, connect func(context.Context) error) error {
	for {
		delay := b.next()
		b.logger.Info("stream-reconnect-waiting", zap.Duration("delay", delay))
		ReconnectAttemptsTotal.Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		err := connect(ctx)
		if err == nil {
			b.Reset()
			return nil
		}

		ReconnectFailuresTotal.Inc()
		b.logger.Warn("stream-reconnect-failed", zap.Error(err))
		b.grow()
	}
}

// Reset returns the backoff to its initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.cfg.InitialDelay
}

func (b *Backoff) next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	jitter := rand.Float64() * b.cfg.JitterPercent
	return time.Duration(float64(b.current) * (1.0 + jitter))
}

func (b *Backoff) grow() {
	b.mu.Lock()
	defer b.mu.Unlock()

	grown := time.Duration(float64(b.current) * b.cfg.Multiplier)
	if grown > b.cfg.MaxDelay {
		grown = b.cfg.MaxDelay
	}
	b.current = grown
}
