package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Category identifies an independent provider quota.
type Category string

const (
	CategoryMarket  Category = "market"  // market reads
	CategoryTrade   Category = "trade"   // trade writes (stricter quota)
	CategoryAccount Category = "account" // account reads
)

// BucketConfig configures one token bucket.
type BucketConfig struct {
	Capacity     float64
	RefillPerSec float64
}

// Config holds limiter configuration, one bucket per category.
type Config struct {
	Buckets map[Category]BucketConfig
	Logger  *zap.Logger
}

// Limiter is a per-category token-bucket rate limiter. Refill is
// continuous; fractional tokens accumulate internally but Acquire
// consumes exactly one whole token. Categories are fully independent:
// starvation in one never blocks another.
type Limiter struct {
	buckets map[Category]*bucket
	logger  *zap.Logger
}

type bucket struct {
	mu           sync.Mutex
	capacity     float64
	refillPerSec float64
	tokens       float64
	lastRefill   time.Time
}

// New creates a new rate limiter.
func New(cfg *Config) (*Limiter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if len(cfg.Buckets) == 0 {
		return nil, fmt.Errorf("at least one bucket must be configured")
	}

	buckets := make(map[Category]*bucket, len(cfg.Buckets))
	for category, bc := range cfg.Buckets {
		if bc.Capacity < 1 {
			return nil, fmt.Errorf("category %q: capacity must be >= 1", category)
		}
		if bc.RefillPerSec <= 0 {
			return nil, fmt.Errorf("category %q: refill rate must be positive", category)
		}
		buckets[category] = &bucket{
			capacity:     bc.Capacity,
			refillPerSec: bc.RefillPerSec,
			tokens:       bc.Capacity, // start full
			lastRefill:   time.Now(),
		}
	}

	return &Limiter{
		buckets: buckets,
		logger:  cfg.Logger,
	}, nil
}

// Acquire blocks until one whole token is available for the category, then
// consumes it. If ctx is cancelled while waiting, no token is consumed and
// the context error is returned. Unknown categories are an error, not a
// silent pass-through.
func (l *Limiter) Acquire(ctx context.Context, category Category) error {
	b, ok := l.buckets[category]
	if !ok {
		return fmt.Errorf("unknown rate limit category %q", category)
	}

	start := time.Now()
	err := b.acquire(ctx)
	waited := time.Since(start)

	AcquireWaitSeconds.WithLabelValues(string(category)).Observe(waited.Seconds())
	if err != nil {
		AcquireCancelledTotal.WithLabelValues(string(category)).Inc()
		return err
	}

	AcquiredTotal.WithLabelValues(string(category)).Inc()
	if waited > time.Second {
		l.logger.Debug("rate-limit-wait",
			zap.String("category", string(category)),
			zap.Duration("waited", waited))
	}
	return nil
}

// Available returns the current whole-token availability for a category.
// Used by the status endpoint; not part of the admission path.
func (l *Limiter) Available(category Category) float64 {
	b, ok := l.buckets[category]
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	return b.tokens
}

func (b *bucket) acquire(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := time.Now()
		b.refillLocked(now)

		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}

		// Time until one whole token has accumulated.
		deficit := 1 - b.tokens
		wait := time.Duration(deficit / b.refillPerSec * float64(time.Second))
		b.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// Re-check under the lock; another waiter may have won the token.
		}
	}
}

// refillLocked adds tokens accrued since the last refill, capped at capacity.
func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillPerSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}
