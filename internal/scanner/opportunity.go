package scanner

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/skinarb/skinarb/internal/tier"
	"github.com/skinarb/skinarb/pkg/types"
)

// Confidence flags attached to an opportunity. They never exclude a
// listing on their own; risk filters downstream decide what to act on.
const (
	FlagLowLiquidity = "low-liquidity" // volume barely clears the tier floor
	FlagThinMargin   = "thin-margin"   // ROI barely clears the tier floor
	FlagFreshListing = "fresh-listing" // first seen under 24h ago, price history unknown
)

// Opportunity is one profit-ranked scan result. It is a transient ranking
// artifact, recomputed every cycle and never authoritative state.
type Opportunity struct {
	ID              string
	Listing         types.Listing
	TierName        string
	NetProfit       int64 // minor units
	ROIPercent      float64
	ConfidenceFlags []string
	DetectedAt      time.Time
}

func newOpportunity(listing types.Listing, t tier.Policy, netProfit int64, roi float64, now time.Time) Opportunity {
	var flags []string
	if listing.DailyVolume < 2*t.MinDailyVolume {
		flags = append(flags, FlagLowLiquidity)
	}
	if roi < t.MinROIPercent*1.2 {
		flags = append(flags, FlagThinMargin)
	}
	if !listing.FirstSeenAt.IsZero() && now.Sub(listing.FirstSeenAt) < 24*time.Hour {
		flags = append(flags, FlagFreshListing)
	}

	return Opportunity{
		ID:              uuid.New().String(),
		Listing:         listing,
		TierName:        t.Name,
		NetProfit:       netProfit,
		ROIPercent:      roi,
		ConfidenceFlags: flags,
		DetectedAt:      now,
	}
}

// HasFlag reports whether a confidence flag is set.
func (o Opportunity) HasFlag(flag string) bool {
	for _, f := range o.ConfidenceFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// String returns a human-readable representation of the opportunity.
func (o Opportunity) String() string {
	return fmt.Sprintf("Opportunity[%s] %s tier=%s price=%d net=%d roi=%.2f%%",
		o.ID[:8], o.Listing.ItemID, o.TierName, o.Listing.Price, o.NetProfit, o.ROIPercent)
}
