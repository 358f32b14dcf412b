// Package scanner orchestrates market fetches, profit math, and tier
// policies into ranked opportunity lists.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/skinarb/skinarb/internal/profit"
	"github.com/skinarb/skinarb/internal/tier"
	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

// ListingFetcher is the market-read dependency. *marketdata.Client
// implements it; tests substitute fakes.
type ListingFetcher interface {
	FetchListings(ctx context.Context, gameID string, filter types.FilterSpec) ([]types.Listing, error)
}

// Scanner derives profit-ranked opportunities from market snapshots.
type Scanner struct {
	fetcher   ListingFetcher
	feeBPS    int64
	blacklist map[string]bool
	whitelist map[string]bool // empty means "everything allowed"
	logger    *zap.Logger
}

// Config holds scanner configuration.
type Config struct {
	Fetcher   ListingFetcher
	FeeBPS    int64    // marketplace fee on the buy price, basis points
	Blacklist []string // item IDs never considered
	Whitelist []string // when non-empty, only these item IDs are considered
	Logger    *zap.Logger
}

// New creates a new scanner.
func New(cfg *Config) (*Scanner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.FeeBPS < 0 || cfg.FeeBPS >= 10000 {
		return nil, fmt.Errorf("fee must be in [0, 10000) bps, got %d", cfg.FeeBPS)
	}

	blacklist := make(map[string]bool, len(cfg.Blacklist))
	for _, id := range cfg.Blacklist {
		blacklist[id] = true
	}
	whitelist := make(map[string]bool, len(cfg.Whitelist))
	for _, id := range cfg.Whitelist {
		whitelist[id] = true
	}

	return &Scanner{
		fetcher:   cfg.Fetcher,
		feeBPS:    cfg.FeeBPS,
		blacklist: blacklist,
		whitelist: whitelist,
		logger:    cfg.Logger,
	}, nil
}

// Scan fetches listings for one game and ranks the opportunities that
// satisfy a single tier.
func (s *Scanner) Scan(ctx context.Context, gameID string, t tier.Policy) ([]Opportunity, error) {
	result, err := s.ScanTiers(ctx, gameID, []tier.Policy{t})
	if err != nil {
		return nil, err
	}
	return result[t.Name], nil
}

// ScanTiers evaluates several tiers of the same game over ONE fetch: the
// tiers partition the price axis, so a single request spanning the full
// range covers all of them, filtered by band after the fetch.
func (s *Scanner) ScanTiers(ctx context.Context, gameID string, tiers []tier.Policy) (map[string][]Opportunity, error) {
	if len(tiers) == 0 {
		return map[string][]Opportunity{}, nil
	}

	filter := fullRangeFilter(tiers)
	start := time.Now()
	listings, err := s.fetcher.FetchListings(ctx, gameID, filter)
	if err != nil {
		return nil, fmt.Errorf("fetch listings for %q: %w", gameID, err)
	}

	now := time.Now()
	result := make(map[string][]Opportunity, len(tiers))
	for _, t := range tiers {
		result[t.Name] = s.rankTier(gameID, t, listings, now)
	}

	ScanDurationSeconds.Observe(time.Since(start).Seconds())
	ScansTotal.WithLabelValues(gameID).Inc()

	return result, nil
}

// rankTier filters one tier's candidates out of a shared listing set and
// ranks them. Per-listing failures are isolated: an unpriceable listing is
// dropped and logged, never fatal to the scan.
func (s *Scanner) rankTier(gameID string, t tier.Policy, listings []types.Listing, now time.Time) []Opportunity {
	opportunities := make([]Opportunity, 0, len(listings))

	for _, listing := range listings {
		if !t.Contains(listing.Price) {
			continue
		}
		if s.blacklist[listing.ItemID] {
			continue
		}
		if len(s.whitelist) > 0 && !s.whitelist[listing.ItemID] {
			continue
		}
		if listing.DailyVolume < t.MinDailyVolume {
			continue
		}

		res, err := profit.SingleMarket(listing.Price, listing.SuggestedPrice, s.feeBPS)
		if err != nil {
			var invalid *types.InvalidPriceError
			if errors.As(err, &invalid) {
				ListingsSkippedTotal.WithLabelValues("invalid-price").Inc()
				s.logger.Warn("listing-unpriceable",
					zap.String("item-id", listing.ItemID),
					zap.Error(err))
				continue
			}
			// SingleMarket only returns InvalidPriceError today; anything
			// else would be a programming error worth surfacing loudly.
			s.logger.Error("profit-computation-failed",
				zap.String("item-id", listing.ItemID),
				zap.Error(err))
			continue
		}

		if res.ROIPercent < t.MinROIPercent {
			continue
		}

		opportunities = append(opportunities, newOpportunity(listing, t, res.NetProfit, res.ROIPercent, now))
	}

	sortOpportunities(opportunities)
	OpportunitiesFoundTotal.WithLabelValues(gameID, t.Name).Add(float64(len(opportunities)))

	return opportunities
}

// sortOpportunities orders by ROI descending, then net profit descending,
// then item ID ascending so repeated scans over unchanged data rank
// identically.
func sortOpportunities(opps []Opportunity) {
	sort.Slice(opps, func(i, j int) bool {
		if opps[i].ROIPercent != opps[j].ROIPercent {
			return opps[i].ROIPercent > opps[j].ROIPercent
		}
		if opps[i].NetProfit != opps[j].NetProfit {
			return opps[i].NetProfit > opps[j].NetProfit
		}
		return opps[i].Listing.ItemID < opps[j].Listing.ItemID
	})
}

// fullRangeFilter spans the union of all tier bands so one fetch serves
// every tier.
func fullRangeFilter(tiers []tier.Policy) types.FilterSpec {
	min := tiers[0].MinPrice
	max := tiers[0].MaxPrice
	for _, t := range tiers[1:] {
		if t.MinPrice < min {
			min = t.MinPrice
		}
		if t.MaxPrice > max {
			max = t.MaxPrice
		}
	}
	return types.FilterSpec{MinPrice: min, MaxPrice: max}
}
