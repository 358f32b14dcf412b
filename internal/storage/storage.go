package storage

import (
	"context"

	"github.com/skinarb/skinarb/internal/scanner"
	"github.com/skinarb/skinarb/pkg/types"
)

// Storage is the interface for persisting scan results and target state.
type Storage interface {
	// SaveOpportunity records one ranked scan result.
	SaveOpportunity(ctx context.Context, opp *scanner.Opportunity) error

	// SaveTarget upserts a target's current state, keyed by request id.
	SaveTarget(ctx context.Context, target *types.Target) error

	// Close closes the storage connection.
	Close() error
}
