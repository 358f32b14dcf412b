package storage

import (
	"context"
	"fmt"

	"github.com/skinarb/skinarb/internal/scanner"
	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

// ConsoleStorage implements Storage by pretty-printing to console. Used
// when no database is configured and by the one-shot scan command.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
	}
}

// SaveOpportunity pretty-prints a scan result to console.
func (c *ConsoleStorage) SaveOpportunity(ctx context.Context, opp *scanner.Opportunity) error {
	fmt.Println("\n" + "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("🎯 OPPORTUNITY DETECTED\n")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("ID:       %s\n", opp.ID[:8])
	fmt.Printf("Item:     %s (%s)\n", opp.Listing.Title, opp.Listing.ItemID)
	fmt.Printf("Game:     %s\n", opp.Listing.GameID)
	fmt.Printf("Tier:     %s\n", opp.TierName)
	fmt.Printf("Time:     %s\n", opp.DetectedAt.Format("2006-01-02 15:04:05"))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("💰 PROFIT ANALYSIS\n")
	fmt.Printf("  Buy Price:       %d\n", opp.Listing.Price)
	fmt.Printf("  Suggested Price: %d\n", opp.Listing.SuggestedPrice)
	fmt.Printf("  Daily Volume:    %d\n", opp.Listing.DailyVolume)
	fmt.Printf("  Net Profit:      %d (%.2f%% ROI)\n", opp.NetProfit, opp.ROIPercent)
	if len(opp.ConfidenceFlags) > 0 {
		fmt.Printf("  ⚠️  Flags:        %v\n", opp.ConfidenceFlags)
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return nil
}

// SaveTarget logs a target state change.
func (c *ConsoleStorage) SaveTarget(ctx context.Context, target *types.Target) error {
	fmt.Printf("📌 TARGET %-9s %s bid=%d budget=%d tier=%s\n",
		target.Status, target.Query.Key(), target.CurrentBid, target.OwnerBudget, target.TierName)
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
