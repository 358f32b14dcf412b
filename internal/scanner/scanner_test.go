package scanner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skinarb/skinarb/internal/tier"
	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

// fakeFetcher serves a fixed listing set and counts fetches.
type fakeFetcher struct {
	listings []types.Listing
	err      error
	fetches  atomic.Int64
}

func (f *fakeFetcher) FetchListings(ctx context.Context, gameID string, filter types.FilterSpec) ([]types.Listing, error) {
	f.fetches.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

func listing(id string, price, suggested int64, volume int) types.Listing {
	return types.Listing{
		ItemID:         id,
		Title:          "Item " + id,
		GameID:         "csgo",
		Price:          price,
		SuggestedPrice: suggested,
		DailyVolume:    volume,
		FirstSeenAt:    time.Now().Add(-48 * time.Hour),
	}
}

func boostTier() tier.Policy {
	return tier.Policy{Name: "boost", MinPrice: 50, MaxPrice: 300, MinROIPercent: 15, MinDailyVolume: 20}
}

func newTestScanner(t *testing.T, fetcher ListingFetcher, opts ...func(*Config)) *Scanner {
	t.Helper()
	cfg := &Config{
		Fetcher: fetcher,
		FeeBPS:  700, // 7%
		Logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("create scanner: %v", err)
	}
	return s
}

func TestScan_BoostTierReferenceCase(t *testing.T) {
	// price=100, suggested=130, fee=7%: net = 130-100-7 = 23, roi = 23% >= 15.
	fetcher := &fakeFetcher{listings: []types.Listing{
		listing("ak-redline", 100, 130, 40),
	}}
	s := newTestScanner(t, fetcher)

	opps, err := s.Scan(context.Background(), "csgo", boostTier())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	if opps[0].NetProfit != 23 {
		t.Errorf("net profit = %d, want 23", opps[0].NetProfit)
	}
	if opps[0].ROIPercent != 23.0 {
		t.Errorf("roi = %f, want 23.0", opps[0].ROIPercent)
	}
	if opps[0].TierName != "boost" {
		t.Errorf("tier = %q, want boost", opps[0].TierName)
	}
}

func TestScan_TierFilters(t *testing.T) {
	fetcher := &fakeFetcher{listings: []types.Listing{
		listing("in-band-good", 100, 130, 40),     // kept
		listing("below-band", 40, 80, 40),         // price < 50
		listing("above-band", 400, 600, 40),       // price >= 300
		listing("low-roi", 100, 115, 40),          // roi 8% < 15
		listing("low-volume", 100, 130, 5),        // volume 5 < 20
		listing("zero-price", 0, 100, 40),         // outside every band
	}}
	s := newTestScanner(t, fetcher)

	opps, err := s.Scan(context.Background(), "csgo", boostTier())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("expected 1 surviving opportunity, got %d: %v", len(opps), opps)
	}
	if opps[0].Listing.ItemID != "in-band-good" {
		t.Errorf("unexpected survivor %q", opps[0].Listing.ItemID)
	}
}

func TestScan_Blacklist(t *testing.T) {
	fetcher := &fakeFetcher{listings: []types.Listing{
		listing("banned", 100, 130, 40),
		listing("allowed", 100, 130, 40),
	}}
	s := newTestScanner(t, fetcher, func(cfg *Config) {
		cfg.Blacklist = []string{"banned"}
	})

	opps, err := s.Scan(context.Background(), "csgo", boostTier())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(opps) != 1 || opps[0].Listing.ItemID != "allowed" {
		t.Errorf("expected only allowed item, got %v", opps)
	}
}

func TestScan_WhitelistRestricts(t *testing.T) {
	fetcher := &fakeFetcher{listings: []types.Listing{
		listing("listed", 100, 130, 40),
		listing("unlisted", 100, 130, 40),
	}}
	s := newTestScanner(t, fetcher, func(cfg *Config) {
		cfg.Whitelist = []string{"listed"}
	})

	opps, err := s.Scan(context.Background(), "csgo", boostTier())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(opps) != 1 || opps[0].Listing.ItemID != "listed" {
		t.Errorf("expected only whitelisted item, got %v", opps)
	}
}

func TestScan_DeterministicOrdering(t *testing.T) {
	// b and c tie on ROI and net profit; item ID ascending breaks the tie.
	fetcher := &fakeFetcher{listings: []types.Listing{
		listing("c-item", 100, 130, 40), // roi 23
		listing("a-item", 100, 140, 40), // roi 33 - first
		listing("b-item", 100, 130, 40), // roi 23
	}}
	s := newTestScanner(t, fetcher)

	opps, err := s.Scan(context.Background(), "csgo", boostTier())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	var gotOrder []string
	for _, o := range opps {
		gotOrder = append(gotOrder, o.Listing.ItemID)
	}
	want := []string{"a-item", "b-item", "c-item"}
	for i := range want {
		if gotOrder[i] != want[i] {
			t.Fatalf("order = %v, want %v", gotOrder, want)
		}
	}
}

func TestScan_RepeatedScansRankIdentically(t *testing.T) {
	fetcher := &fakeFetcher{listings: []types.Listing{
		listing("x", 100, 130, 40),
		listing("y", 200, 280, 40),
		listing("z", 60, 90, 40),
	}}
	s := newTestScanner(t, fetcher)

	ctx := context.Background()
	first, err := s.Scan(ctx, "csgo", boostTier())
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Scan(ctx, "csgo", boostTier())
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Listing.ItemID != second[i].Listing.ItemID ||
			first[i].NetProfit != second[i].NetProfit ||
			first[i].ROIPercent != second[i].ROIPercent {
			t.Errorf("position %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestScanTiers_SingleFetchForAllTiers(t *testing.T) {
	fetcher := &fakeFetcher{listings: []types.Listing{
		listing("cheap", 20, 30, 60),     // entry band
		listing("medium", 100, 130, 40),  // boost band
		listing("pricey", 5000, 6000, 8), // premium band
	}}
	s := newTestScanner(t, fetcher)

	tiers := tier.Canonical()
	result, err := s.ScanTiers(context.Background(), "csgo", tiers)
	if err != nil {
		t.Fatalf("scan tiers: %v", err)
	}

	if got := fetcher.fetches.Load(); got != 1 {
		t.Errorf("expected exactly 1 fetch for 5 tiers, got %d", got)
	}
	if len(result) != 5 {
		t.Errorf("expected results for all 5 tiers, got %d", len(result))
	}
	if len(result["boost"]) != 1 || result["boost"][0].Listing.ItemID != "medium" {
		t.Errorf("boost tier mismatch: %v", result["boost"])
	}
	if len(result["premium"]) != 1 || result["premium"][0].Listing.ItemID != "pricey" {
		t.Errorf("premium tier mismatch: %v", result["premium"])
	}
}

func TestScan_ConfidenceFlags(t *testing.T) {
	now := time.Now()
	fresh := listing("fresh", 100, 130, 21) // volume 21 < 2*20 -> low liquidity
	fresh.FirstSeenAt = now.Add(-2 * time.Hour)

	solid := listing("solid", 100, 160, 100) // roi 53%, volume 100: no flags
	fetcher := &fakeFetcher{listings: []types.Listing{fresh, solid}}
	s := newTestScanner(t, fetcher)

	opps, err := s.Scan(context.Background(), "csgo", boostTier())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	byID := make(map[string]Opportunity, len(opps))
	for _, o := range opps {
		byID[o.Listing.ItemID] = o
	}

	if !byID["fresh"].HasFlag(FlagLowLiquidity) {
		t.Error("expected low-liquidity flag on fresh item")
	}
	if !byID["fresh"].HasFlag(FlagFreshListing) {
		t.Error("expected fresh-listing flag on fresh item")
	}
	if len(byID["solid"].ConfidenceFlags) != 0 {
		t.Errorf("expected no flags on solid item, got %v", byID["solid"].ConfidenceFlags)
	}
}
