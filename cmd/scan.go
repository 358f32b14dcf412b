package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/skinarb/skinarb/internal/circuitbreaker"
	"github.com/skinarb/skinarb/internal/marketdata"
	"github.com/skinarb/skinarb/internal/scanner"
	"github.com/skinarb/skinarb/internal/storage"
	"github.com/skinarb/skinarb/internal/tier"
	"github.com/skinarb/skinarb/pkg/config"
	"github.com/skinarb/skinarb/pkg/ratelimit"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a one-shot scan and print the results",
	Long: `Fetches listings for one game, ranks the opportunities per tier and
pretty-prints them to the console. Useful for checking filters and fees
before letting the bot trade.`,
	RunE: runScan,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("game", "g", "csgo", "Game to scan")
	scanCmd.Flags().StringP("tier", "t", "", "Only print one tier")
	scanCmd.Flags().IntP("limit", "n", 10, "Opportunities printed per tier")
}

func runScan(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	gameID, _ := cmd.Flags().GetString("game")
	tierName, _ := cmd.Flags().GetString("tier")
	limit, _ := cmd.Flags().GetInt("limit")

	limiter, err := ratelimit.New(&ratelimit.Config{
		Buckets: map[ratelimit.Category]ratelimit.BucketConfig{
			ratelimit.CategoryMarket: {Capacity: cfg.MarketRateCapacity, RefillPerSec: cfg.MarketRateRefill},
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create rate limiter: %w", err)
	}

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		Name:             "market",
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("create circuit breaker: %w", err)
	}

	client, err := marketdata.New(&marketdata.Config{
		BaseURL:        cfg.ProviderAPIURL,
		APIKey:         cfg.ProviderAPIKey,
		Limiter:        limiter,
		Breaker:        breaker,
		AcquireTimeout: cfg.AcquireTimeout,
		Retry: marketdata.RetryPolicy{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryInitialBackoff,
			Multiplier:     cfg.RetryBackoffMultiplier,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create market client: %w", err)
	}

	scan, err := scanner.New(&scanner.Config{
		Fetcher:   client,
		FeeBPS:    cfg.FeeBPS,
		Blacklist: cfg.Blacklist,
		Whitelist: cfg.Whitelist,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create scanner: %w", err)
	}

	tiers := tier.Canonical()
	if tierName != "" {
		policy, ok := tier.ByName(tiers, tierName)
		if !ok {
			return fmt.Errorf("unknown tier %q", tierName)
		}
		tiers = []tier.Policy{policy}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := scan.ScanTiers(ctx, gameID, tiers)
	if err != nil {
		return fmt.Errorf("scan %q: %w", gameID, err)
	}

	console := storage.NewConsoleStorage(logger)
	for _, policy := range tiers {
		opps := result[policy.Name]
		fmt.Printf("\n=== tier %s: %d opportunities ===\n", policy.Name, len(opps))
		for i, opp := range opps {
			if i >= limit {
				break
			}
			_ = console.SaveOpportunity(ctx, &opp)
		}
	}

	return nil
}
