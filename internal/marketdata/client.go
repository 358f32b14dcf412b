// Package marketdata is the only component that issues market-read network
// calls. Every fetch funnels through the snapshot cache, the market-category
// rate limiter, and the circuit breaker, in that order.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skinarb/skinarb/internal/circuitbreaker"
	"github.com/skinarb/skinarb/pkg/cache"
	"github.com/skinarb/skinarb/pkg/ratelimit"
	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

// Client fetches normalized listings from the marketplace HTTP API.
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	limiter        *ratelimit.Limiter
	breaker        *circuitbreaker.Breaker
	cache          cache.Cache
	cacheTTL       time.Duration
	acquireTimeout time.Duration
	retry          RetryPolicy
	logger         *zap.Logger
}

// Config holds market client configuration.
type Config struct {
	BaseURL  string
	APIKey   string // optional; sent as a bearer token when set
	Limiter  *ratelimit.Limiter
	Breaker  *circuitbreaker.Breaker
	Cache    cache.Cache // optional; nil disables caching
	CacheTTL time.Duration
	// AcquireTimeout bounds the wait for a rate-limit token even when the
	// caller's context has no deadline. Zero means wait as long as the
	// caller does.
	AcquireTimeout time.Duration
	Retry          RetryPolicy
	HTTPTimeout    time.Duration
	Logger         *zap.Logger
}

// New creates a new market client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter cannot be nil")
	}
	if cfg.Breaker == nil {
		return nil, fmt.Errorf("circuit breaker cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if err := cfg.Retry.validate(); err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		limiter:        cfg.Limiter,
		breaker:        cfg.Breaker,
		cache:          cfg.Cache,
		cacheTTL:       cfg.CacheTTL,
		acquireTimeout: cfg.AcquireTimeout,
		retry:          cfg.Retry,
		logger:         cfg.Logger,
	}, nil
}

// FetchListings returns the current listings for (game, filter). Cache hits
// return directly; misses consume one market-category token, then go through
// the breaker-wrapped network fetch. Fresh results populate the cache with
// the configured TTL.
func (c *Client) FetchListings(ctx context.Context, gameID string, filter types.FilterSpec) ([]types.Listing, error) {
	key := filter.CacheKey(gameID)

	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			if listings, ok := cached.([]types.Listing); ok {
				FetchesTotal.WithLabelValues("cache").Inc()
				return listings, nil
			}
		}
	}

	acquireCtx := ctx
	if c.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, c.acquireTimeout)
		defer cancel()
	}
	err := c.limiter.Acquire(acquireCtx, ratelimit.CategoryMarket)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			FetchesTotal.WithLabelValues("rate_limit_timeout").Inc()
			return nil, fmt.Errorf("acquire market token: %w", types.ErrRateLimitTimeout)
		}
		return nil, fmt.Errorf("acquire market token: %w", err)
	}

	start := time.Now()
	body, err := c.fetchWithRetry(ctx, gameID, filter)
	FetchDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, types.ErrCircuitOpen) {
			FetchesTotal.WithLabelValues("circuit_open").Inc()
		} else {
			FetchesTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	listings, err := parseListings(body, gameID, c.logger)
	if err != nil {
		// A contract mismatch, not unavailability: surfaced immediately,
		// never retried, never counted against the breaker.
		FetchesTotal.WithLabelValues("parse_error").Inc()
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(key, listings, c.cacheTTL)
	}

	FetchesTotal.WithLabelValues("ok").Inc()
	c.logger.Debug("listings-fetched",
		zap.String("game-id", gameID),
		zap.Int("count", len(listings)))

	return listings, nil
}

// fetchWithRetry runs the breaker-wrapped HTTP fetch under the retry policy.
// Only upstream failures are retried; a breaker rejection ends the attempt
// loop immediately.
func (c *Client) fetchWithRetry(ctx context.Context, gameID string, filter types.FilterSpec) ([]byte, error) {
	backoff := c.retry.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			RetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * c.retry.Multiplier)
		}

		err := c.breaker.Allow()
		if err != nil {
			return nil, err
		}

		body, err := c.doFetch(ctx, gameID, filter)
		if err == nil {
			c.breaker.RecordSuccess()
			return body, nil
		}

		// A cancelled in-flight call still counts against the breaker:
		// an unresponsive upstream is a failure either way.
		c.breaker.RecordFailure()
		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}

		c.logger.Warn("market-fetch-attempt-failed",
			zap.String("game-id", gameID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return nil, fmt.Errorf("all %d fetch attempts failed: %w", c.retry.MaxAttempts, lastErr)
}

// doFetch performs one HTTP round trip and returns the raw body.
func (c *Client) doFetch(ctx context.Context, gameID string, filter types.FilterSpec) ([]byte, error) {
	params := url.Values{}
	params.Add("gameId", gameID)
	params.Add("currency", "USD")
	if filter.MinPrice > 0 {
		params.Add("priceFrom", strconv.FormatInt(filter.MinPrice, 10))
	}
	if filter.MaxPrice > 0 {
		params.Add("priceTo", strconv.FormatInt(filter.MaxPrice, 10))
	}
	if filter.MinVolume > 0 {
		params.Add("volumeFrom", strconv.Itoa(filter.MinVolume))
	}
	if filter.SearchQuery != "" {
		params.Add("title", filter.SearchQuery)
	}

	requestURL := fmt.Sprintf("%s/marketplace/v1/items?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "skinarb/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.UpstreamError{Message: fmt.Sprintf("read body: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &types.UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	return body, nil
}
