// Package autotrader runs the periodic scan-and-place loop: scan every
// configured game, filter the ranked opportunities through risk rules and
// place targets while the cumulative budget ceiling holds.
package autotrader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skinarb/skinarb/internal/scanner"
	"github.com/skinarb/skinarb/internal/targets"
	"github.com/skinarb/skinarb/internal/tier"
	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

// OpportunitySource produces ranked opportunities per tier. *scanner.Scanner
// implements it.
type OpportunitySource interface {
	ScanTiers(ctx context.Context, gameID string, tiers []tier.Policy) (map[string][]scanner.Opportunity, error)
}

// TargetPlacer is the target-manager surface the trader needs.
type TargetPlacer interface {
	Place(ctx context.Context, req targets.PlacementRequest) (*types.Target, error)
	Targets() []types.Target
	CommittedExposure() int64
	RefreshSuggestedPrices(prices map[string]int64)
	Poll(ctx context.Context)
}

// Notifier receives each cycle's ranked opportunity lists.
type Notifier interface {
	OpportunitiesFound(gameID, tierName string, opps []scanner.Opportunity)
}

// OpportunityStore persists scan results for later analysis.
type OpportunityStore interface {
	SaveOpportunity(ctx context.Context, opp *scanner.Opportunity) error
}

// Trader is the automated trading loop.
type Trader struct {
	scanner  OpportunitySource
	targets  TargetPlacer
	notifier Notifier
	store    OpportunityStore
	tiers    []tier.Policy
	games    []string
	observe  bool // scan and report, never place

	interval          time.Duration
	budgetCeiling     int64 // cumulative cap across all live targets
	maxPerCycle       int
	budgetHeadroomBPS int64
	skipFlags         map[string]bool
	logger            *zap.Logger

	mu     sync.RWMutex
	latest map[string]map[string][]scanner.Opportunity // last cycle's results per game
}

// Config holds autotrader configuration.
type Config struct {
	Scanner  OpportunitySource
	Targets  TargetPlacer
	Notifier Notifier
	Store    OpportunityStore // optional; persists each cycle's top picks
	Tiers    []tier.Policy
	Games    []string

	// Mode is "observe" (scan and report only) or "auto" (place targets).
	Mode          string
	Interval      time.Duration
	BudgetCeiling int64
	MaxPerCycle   int
	// BudgetHeadroomBPS sets each target's budget above its initial bid,
	// in basis points of the bid, so the target can compete before the
	// manager's ROI check withdraws it.
	BudgetHeadroomBPS int64
	// SkipFlags lists confidence flags that disqualify an opportunity
	// from automated placement.
	SkipFlags []string

	Logger *zap.Logger
}

// New creates a new trader.
func New(cfg *Config) (*Trader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Scanner == nil {
		return nil, fmt.Errorf("scanner cannot be nil")
	}
	if cfg.Targets == nil {
		return nil, fmt.Errorf("target placer cannot be nil")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if len(cfg.Games) == 0 {
		return nil, fmt.Errorf("at least one game must be configured")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if cfg.BudgetCeiling <= 0 {
		return nil, fmt.Errorf("budget ceiling must be positive")
	}
	if cfg.MaxPerCycle <= 0 {
		return nil, fmt.Errorf("max placements per cycle must be positive")
	}
	if cfg.BudgetHeadroomBPS < 0 {
		return nil, fmt.Errorf("budget headroom cannot be negative")
	}
	if cfg.Mode != "observe" && cfg.Mode != "auto" {
		return nil, fmt.Errorf("mode must be 'observe' or 'auto', got %q", cfg.Mode)
	}
	if err := tier.Validate(cfg.Tiers); err != nil {
		return nil, fmt.Errorf("validate tiers: %w", err)
	}

	skip := make(map[string]bool, len(cfg.SkipFlags))
	for _, flag := range cfg.SkipFlags {
		skip[flag] = true
	}

	return &Trader{
		scanner:           cfg.Scanner,
		targets:           cfg.Targets,
		notifier:          cfg.Notifier,
		store:             cfg.Store,
		tiers:             cfg.Tiers,
		games:             cfg.Games,
		observe:           cfg.Mode == "observe",
		interval:          cfg.Interval,
		budgetCeiling:     cfg.BudgetCeiling,
		maxPerCycle:       cfg.MaxPerCycle,
		budgetHeadroomBPS: cfg.BudgetHeadroomBPS,
		skipFlags:         skip,
		logger:            cfg.Logger,
	}, nil
}

// Run executes the trading loop until the context is cancelled. The first
// cycle runs immediately rather than one interval in.
func (t *Trader) Run(ctx context.Context) error {
	t.logger.Info("autotrader-started",
		zap.Strings("games", t.games),
		zap.Duration("interval", t.interval),
		zap.Int64("budget-ceiling", t.budgetCeiling))

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.Cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("autotrader-stopped")
			return nil
		case <-ticker.C:
			t.Cycle(ctx)
		}
	}
}

// Cycle runs one pass: reconcile live targets, scan every game, then place
// the best qualifying opportunities. Game scans run concurrently; placement
// is sequential so the budget ceiling is enforced without races.
func (t *Trader) Cycle(ctx context.Context) {
	start := time.Now()
	t.targets.Poll(ctx)

	results := make([]map[string][]scanner.Opportunity, len(t.games))
	var wg sync.WaitGroup
	for i, gameID := range t.games {
		wg.Add(1)
		go func(i int, gameID string) {
			defer wg.Done()
			result, err := t.scanner.ScanTiers(ctx, gameID, t.tiers)
			if err != nil {
				t.logger.Warn("scan-failed",
					zap.String("game-id", gameID),
					zap.Error(err))
				return
			}
			results[i] = result
		}(i, gameID)
	}
	wg.Wait()

	latest := make(map[string]map[string][]scanner.Opportunity, len(t.games))
	placed := 0
	for i, gameID := range t.games {
		if results[i] == nil || ctx.Err() != nil {
			continue
		}
		latest[gameID] = results[i]
		t.targets.RefreshSuggestedPrices(suggestedPrices(results[i]))
		t.report(ctx, gameID, results[i])
		if !t.observe {
			placed += t.placeCandidates(ctx, gameID, results[i], t.maxPerCycle-placed)
		}
	}

	t.mu.Lock()
	t.latest = latest
	t.mu.Unlock()

	CyclesTotal.Inc()
	CycleDurationSeconds.Observe(time.Since(start).Seconds())
	t.logger.Info("cycle-complete",
		zap.Int("placed", placed),
		zap.Int64("committed-exposure", t.targets.CommittedExposure()),
		zap.Duration("elapsed", time.Since(start)))
}

// LatestOpportunities returns the previous cycle's ranked results, keyed
// by game then tier. Nil until the first cycle completes.
func (t *Trader) LatestOpportunities() map[string]map[string][]scanner.Opportunity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}

// report notifies and persists one game's results. The ranking head of
// each tier is stored; the full lists stay in memory for the API.
func (t *Trader) report(ctx context.Context, gameID string, result map[string][]scanner.Opportunity) {
	for _, policy := range t.tiers {
		opps := result[policy.Name]
		t.notifier.OpportunitiesFound(gameID, policy.Name, opps)

		if t.store == nil || len(opps) == 0 {
			continue
		}
		top := opps[0]
		err := t.store.SaveOpportunity(ctx, &top)
		if err != nil {
			t.logger.Warn("opportunity-persist-failed",
				zap.String("opportunity-id", top.ID),
				zap.Error(err))
		}
	}
}

// placeCandidates walks one game's ranked opportunities in tier order and
// places up to limit targets.
func (t *Trader) placeCandidates(ctx context.Context, gameID string, result map[string][]scanner.Opportunity, limit int) int {
	live := t.liveQueries()
	placed := 0

	for _, policy := range t.tiers {
		opps := result[policy.Name]

		for _, opp := range opps {
			if placed >= limit {
				return placed
			}

			if t.flagged(opp) {
				PlacementsSkippedTotal.WithLabelValues("risk-flag").Inc()
				continue
			}

			query := types.ItemQuery{GameID: gameID, Title: opp.Listing.Title}
			if live[query.Key()] {
				PlacementsSkippedTotal.WithLabelValues("duplicate").Inc()
				continue
			}

			bid := opp.Listing.Price
			budget := bid + bid*t.budgetHeadroomBPS/10000

			if t.targets.CommittedExposure()+budget > t.budgetCeiling {
				PlacementsSkippedTotal.WithLabelValues("budget").Inc()
				t.logger.Warn("placement-skipped",
					zap.String("item-id", opp.Listing.ItemID),
					zap.Int64("budget", budget),
					zap.Int64("ceiling", t.budgetCeiling),
					zap.Error(types.ErrBudgetExceeded))
				continue
			}

			target, err := t.targets.Place(ctx, targets.PlacementRequest{
				Query:          query,
				TierName:       policy.Name,
				InitialBid:     bid,
				OwnerBudget:    budget,
				SuggestedPrice: opp.Listing.SuggestedPrice,
			})
			if err != nil {
				if errors.Is(err, types.ErrBudgetExceeded) {
					PlacementsSkippedTotal.WithLabelValues("budget").Inc()
					continue
				}
				t.logger.Warn("placement-failed",
					zap.String("item-id", opp.Listing.ItemID),
					zap.Error(err))
				continue
			}

			live[query.Key()] = true
			placed++
			PlacementsTotal.WithLabelValues(gameID, policy.Name).Inc()
			t.logger.Info("target-auto-placed",
				zap.String("request-id", target.RequestID),
				zap.String("item-id", opp.Listing.ItemID),
				zap.String("tier", policy.Name),
				zap.Int64("bid", bid),
				zap.Float64("roi-percent", opp.ROIPercent))
		}
	}

	return placed
}

// suggestedPrices flattens one game's scan results into the latest resale
// reference per item query, for the manager's reprice ROI checks.
func suggestedPrices(result map[string][]scanner.Opportunity) map[string]int64 {
	prices := make(map[string]int64)
	for _, opps := range result {
		for _, opp := range opps {
			query := types.ItemQuery{GameID: opp.Listing.GameID, Title: opp.Listing.Title}
			prices[query.Key()] = opp.Listing.SuggestedPrice
		}
	}
	return prices
}

func (t *Trader) flagged(opp scanner.Opportunity) bool {
	for _, flag := range opp.ConfidenceFlags {
		if t.skipFlags[flag] {
			return true
		}
	}
	return false
}

// liveQueries indexes the item queries already covered by a non-terminal
// target, so one item never carries two of our bids.
func (t *Trader) liveQueries() map[string]bool {
	live := make(map[string]bool)
	for _, target := range t.targets.Targets() {
		if !target.Status.Terminal() {
			live[target.Query.Key()] = true
		}
	}
	return live
}
