// Package notify fans trading events out to operators. Notifications are
// fire-and-forget: a notification must never block or fail the trading
// path, so the interface returns nothing.
package notify

import (
	"github.com/skinarb/skinarb/internal/scanner"
	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

// Notifier receives trading events.
type Notifier interface {
	// OpportunitiesFound reports one tier's ranked scan results.
	OpportunitiesFound(gameID, tierName string, opps []scanner.Opportunity)

	// TargetTransition reports a target lifecycle change.
	TargetTransition(target *types.Target, from types.TargetStatus)
}

// LogNotifier implements Notifier on top of structured logging.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// OpportunitiesFound logs the top of one tier's ranking. Empty results are
// skipped so quiet tiers don't flood the log every cycle.
func (n *LogNotifier) OpportunitiesFound(gameID, tierName string, opps []scanner.Opportunity) {
	if len(opps) == 0 {
		return
	}

	top := opps
	if len(top) > 3 {
		top = top[:3]
	}
	summaries := make([]string, 0, len(top))
	for _, opp := range top {
		summaries = append(summaries, opp.String())
	}

	n.logger.Info("opportunities-found",
		zap.String("game-id", gameID),
		zap.String("tier", tierName),
		zap.Int("count", len(opps)),
		zap.Strings("top", summaries))
}

// TargetTransition logs a target lifecycle change.
func (n *LogNotifier) TargetTransition(target *types.Target, from types.TargetStatus) {
	n.logger.Info("target-event",
		zap.String("request-id", target.RequestID),
		zap.String("query", target.Query.Key()),
		zap.String("tier", target.TierName),
		zap.String("from", string(from)),
		zap.String("to", string(target.Status)),
		zap.Int64("current-bid", target.CurrentBid))
}
