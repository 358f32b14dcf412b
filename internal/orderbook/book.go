// Package orderbook keeps the live view of competing bids per item query,
// fed by the provider's bid-update stream.
package orderbook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skinarb/skinarb/pkg/stream"
	"go.uber.org/zap"
)

// Snapshot is the current competitive state for one item query.
type Snapshot struct {
	QueryKey  string
	BestBid   int64 // best competing bid, minor units
	Bidders   int
	UpdatedAt time.Time
}

// Book consumes bid updates and answers best-bid lookups. Reads and
// writes touch different keys concurrently; a single RWMutex is enough at
// this key cardinality.
type Book struct {
	mu      sync.RWMutex
	entries map[string]Snapshot

	updates <-chan *stream.BidUpdate
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// Config holds book configuration.
type Config struct {
	Updates <-chan *stream.BidUpdate
	Logger  *zap.Logger
}

// New creates a new order-book view.
func New(cfg *Config) (*Book, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Updates == nil {
		return nil, fmt.Errorf("updates channel cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Book{
		entries: make(map[string]Snapshot),
		updates: cfg.Updates,
		logger:  cfg.Logger,
	}, nil
}

// Start begins consuming updates until ctx is cancelled.
func (b *Book) Start(ctx context.Context) error {
	b.logger.Info("orderbook-starting")

	b.wg.Add(1)
	go b.consume(ctx)

	return nil
}

// Close waits for the consume loop to drain.
func (b *Book) Close() error {
	b.wg.Wait()
	b.logger.Info("orderbook-closed")
	return nil
}

// BestBid returns the best competing bid for an item query, if known.
func (b *Book) BestBid(queryKey string) (int64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshot, ok := b.entries[queryKey]
	if !ok {
		return 0, false
	}
	return snapshot.BestBid, true
}

// Get returns the full snapshot for an item query, if known.
func (b *Book) Get(queryKey string) (Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshot, ok := b.entries[queryKey]
	return snapshot, ok
}

// Size returns the number of tracked item queries.
func (b *Book) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *Book) consume(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("orderbook-stopping")
			return
		case update, ok := <-b.updates:
			if !ok {
				b.logger.Info("orderbook-updates-channel-closed")
				return
			}
			b.apply(update)
		}
	}
}

func (b *Book) apply(update *stream.BidUpdate) {
	b.mu.Lock()
	b.entries[update.QueryKey] = Snapshot{
		QueryKey:  update.QueryKey,
		BestBid:   update.BestBid,
		Bidders:   update.Bidders,
		UpdatedAt: time.UnixMilli(update.Timestamp),
	}
	size := len(b.entries)
	b.mu.Unlock()

	UpdatesAppliedTotal.Inc()
	TrackedQueries.Set(float64(size))
}
