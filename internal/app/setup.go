package app

import (
	"context"
	"fmt"

	"github.com/skinarb/skinarb/internal/autotrader"
	"github.com/skinarb/skinarb/internal/circuitbreaker"
	"github.com/skinarb/skinarb/internal/marketdata"
	"github.com/skinarb/skinarb/internal/notify"
	"github.com/skinarb/skinarb/internal/orderbook"
	"github.com/skinarb/skinarb/internal/scanner"
	"github.com/skinarb/skinarb/internal/storage"
	"github.com/skinarb/skinarb/internal/targets"
	"github.com/skinarb/skinarb/internal/tier"
	"github.com/skinarb/skinarb/internal/trade"
	"github.com/skinarb/skinarb/pkg/cache"
	"github.com/skinarb/skinarb/pkg/config"
	"github.com/skinarb/skinarb/pkg/healthprobe"
	"github.com/skinarb/skinarb/pkg/httpserver"
	"github.com/skinarb/skinarb/pkg/ratelimit"
	"github.com/skinarb/skinarb/pkg/stream"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	tiers, err := setupTiers(cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup tiers: %w", err)
	}

	snapshotCache, err := setupCache(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	limiter, err := setupLimiter(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup rate limiter: %w", err)
	}

	marketClient, err := setupMarketClient(cfg, logger, limiter, snapshotCache)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup market client: %w", err)
	}

	scan, err := scanner.New(&scanner.Config{
		Fetcher:   marketClient,
		FeeBPS:    cfg.FeeBPS,
		Blacklist: cfg.Blacklist,
		Whitelist: cfg.Whitelist,
		Logger:    logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup scanner: %w", err)
	}

	streamClient, err := setupStream(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup stream: %w", err)
	}

	book, err := orderbook.New(&orderbook.Config{
		Updates: streamClient.Updates(),
		Logger:  logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup orderbook: %w", err)
	}

	tradeClient, err := setupTradeClient(cfg, logger, limiter)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup trade client: %w", err)
	}

	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	notifier := notify.NewLogNotifier(logger)

	manager, err := targets.New(&targets.Config{
		Trade:        tradeClient,
		Bids:         book,
		Store:        store,
		Notifier:     notifier,
		Subscriber:   streamClient,
		Tiers:        tiers,
		BidIncrement: cfg.BidIncrement,
		FeeBPS:       cfg.FeeBPS,
		Logger:       logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup target manager: %w", err)
	}

	trader, err := autotrader.New(&autotrader.Config{
		Scanner:           scan,
		Targets:           manager,
		Notifier:          notifier,
		Store:             store,
		Tiers:             tiers,
		Games:             cfg.ScanGames,
		Mode:              cfg.TradingMode,
		Interval:          cfg.ScanInterval,
		BudgetCeiling:     cfg.BudgetCeiling,
		MaxPerCycle:       cfg.MaxTargetsPerCycle,
		BudgetHeadroomBPS: cfg.BudgetHeadroomBPS,
		SkipFlags:         cfg.RiskSkipFlags,
		Logger:            logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup autotrader: %w", err)
	}

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Opportunities: trader,
		Targets:       manager,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		marketClient:  marketClient,
		scanner:       scan,
		streamClient:  streamClient,
		book:          book,
		tradeClient:   tradeClient,
		store:         store,
		manager:       manager,
		trader:        trader,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// setupTiers applies per-tier ROI overrides to the canonical tier set and
// validates the result. A bad override is a configuration error and fatal.
func setupTiers(cfg *config.Config) ([]tier.Policy, error) {
	tiers := tier.Canonical()
	for i := range tiers {
		if roi, ok := cfg.TierMinROIOverrides[tiers[i].Name]; ok {
			tiers[i].MinROIPercent = roi
		}
	}

	err := tier.Validate(tiers)
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

func setupCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	return cache.NewSnapshotCache(&cache.RistrettoConfig{
		NumCounters: cfg.CacheNumCounters,
		MaxCost:     cfg.CacheMaxCost,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupLimiter(cfg *config.Config, logger *zap.Logger) (*ratelimit.Limiter, error) {
	return ratelimit.New(&ratelimit.Config{
		Buckets: map[ratelimit.Category]ratelimit.BucketConfig{
			ratelimit.CategoryMarket:  {Capacity: cfg.MarketRateCapacity, RefillPerSec: cfg.MarketRateRefill},
			ratelimit.CategoryTrade:   {Capacity: cfg.TradeRateCapacity, RefillPerSec: cfg.TradeRateRefill},
			ratelimit.CategoryAccount: {Capacity: cfg.AccountRateCapacity, RefillPerSec: cfg.AccountRateRefill},
		},
		Logger: logger,
	})
}

func setupMarketClient(cfg *config.Config, logger *zap.Logger, limiter *ratelimit.Limiter, snapshotCache cache.Cache) (*marketdata.Client, error) {
	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		Name:             "market",
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create market breaker: %w", err)
	}

	return marketdata.New(&marketdata.Config{
		BaseURL:        cfg.ProviderAPIURL,
		APIKey:         cfg.ProviderAPIKey,
		Limiter:        limiter,
		Breaker:        breaker,
		Cache:          snapshotCache,
		CacheTTL:       cfg.CacheTTL,
		AcquireTimeout: cfg.AcquireTimeout,
		Retry: marketdata.RetryPolicy{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryInitialBackoff,
			Multiplier:     cfg.RetryBackoffMultiplier,
		},
		Logger: logger,
	})
}

func setupTradeClient(cfg *config.Config, logger *zap.Logger, limiter *ratelimit.Limiter) (*trade.Client, error) {
	// Trade writes get their own breaker so a broken trade endpoint never
	// blocks market reads, and vice versa.
	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		Name:             "trade",
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create trade breaker: %w", err)
	}

	return trade.New(&trade.Config{
		BaseURL:        cfg.ProviderAPIURL,
		APIKey:         cfg.ProviderAPIKey,
		Limiter:        limiter,
		Breaker:        breaker,
		AcquireTimeout: cfg.AcquireTimeout,
		Logger:         logger,
	})
}

func setupStream(cfg *config.Config, logger *zap.Logger) (*stream.Client, error) {
	return stream.New(&stream.Config{
		URL:          cfg.ProviderWSURL,
		DialTimeout:  cfg.WSDialTimeout,
		PingInterval: cfg.WSPingInterval,
		PongTimeout:  cfg.WSPongTimeout,
		Backoff: stream.BackoffConfig{
			InitialDelay: cfg.WSReconnectInitialDelay,
			MaxDelay:     cfg.WSReconnectMaxDelay,
			Multiplier:   cfg.WSReconnectBackoffMult,
		},
		BufferSize: cfg.WSMessageBufferSize,
		Logger:     logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}
