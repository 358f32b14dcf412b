// Package trade is the provider REST client for buy-order writes and
// status reads. Writes consume trade-category tokens, status reads
// account-category tokens; both carry a stricter quota than market reads.
package trade

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/skinarb/skinarb/internal/circuitbreaker"
	"github.com/skinarb/skinarb/pkg/ratelimit"
	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

// Client talks to the provider's target endpoints.
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	limiter        *ratelimit.Limiter
	breaker        *circuitbreaker.Breaker
	acquireTimeout time.Duration
	logger         *zap.Logger
}

// Config holds trade client configuration.
type Config struct {
	BaseURL string
	APIKey  string // optional; sent as a bearer token when set
	Limiter *ratelimit.Limiter
	Breaker *circuitbreaker.Breaker
	// AcquireTimeout bounds the wait for a rate-limit token even when the
	// caller's context has no deadline. Zero means wait as long as the
	// caller does.
	AcquireTimeout time.Duration
	HTTPTimeout    time.Duration
	Logger         *zap.Logger
}

// New creates a new trade client.
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
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		limiter:        cfg.Limiter,
		breaker:        cfg.Breaker,
		acquireTimeout: cfg.AcquireTimeout,
		logger:         cfg.Logger,
	}, nil
}

type createTargetRequest struct {
	GameID string `json:"gameId"`
	Title  string `json:"title"`
	Bid    int64  `json:"bid"`
}

type targetResponse struct {
	TargetID string `json:"targetId"`
	Status   string `json:"status"`
}

// CreateTarget places a new buy-order and returns the provider-assigned id.
func (c *Client) CreateTarget(ctx context.Context, query types.ItemQuery, bid int64) (string, error) {
	payload := createTargetRequest{GameID: query.GameID, Title: query.Title, Bid: bid}

	var resp targetResponse
	err := c.call(ctx, ratelimit.CategoryTrade, http.MethodPost, "/marketplace/v1/targets", payload, &resp)
	if err != nil {
		return "", err
	}
	if resp.TargetID == "" {
		return "", &types.ParseError{Field: "targetId", Message: "missing in create response"}
	}

	RequestsTotal.WithLabelValues("create").Inc()
	c.logger.Info("target-created",
		zap.String("target-id", resp.TargetID),
		zap.String("query", query.Key()),
		zap.Int64("bid", bid))

	return resp.TargetID, nil
}

// UpdateTarget re-prices an existing buy-order.
func (c *Client) UpdateTarget(ctx context.Context, targetID string, bid int64) error {
	payload := struct {
		Bid int64 `json:"bid"`
	}{Bid: bid}

	err := c.call(ctx, ratelimit.CategoryTrade, http.MethodPatch, "/marketplace/v1/targets/"+targetID, payload, nil)
	if err != nil {
		return err
	}

	RequestsTotal.WithLabelValues("update").Inc()
	return nil
}

// CancelTarget withdraws a buy-order.
func (c *Client) CancelTarget(ctx context.Context, targetID string) error {
	err := c.call(ctx, ratelimit.CategoryTrade, http.MethodDelete, "/marketplace/v1/targets/"+targetID, nil, nil)
	if err != nil {
		return err
	}

	RequestsTotal.WithLabelValues("cancel").Inc()
	return nil
}

// TargetStatus reads the current provider-side status of a buy-order.
func (c *Client) TargetStatus(ctx context.Context, targetID string) (types.TargetStatus, error) {
	var resp targetResponse
	err := c.call(ctx, ratelimit.CategoryAccount, http.MethodGet, "/marketplace/v1/targets/"+targetID, nil, &resp)
	if err != nil {
		return "", err
	}

	RequestsTotal.WithLabelValues("status").Inc()

	switch resp.Status {
	case "pending":
		return types.TargetPending, nil
	case "active":
		return types.TargetActive, nil
	case "outbid":
		return types.TargetOutbid, nil
	case "filled":
		return types.TargetFilled, nil
	case "cancelled":
		return types.TargetCancelled, nil
	case "rejected":
		return types.TargetFailed, nil
	default:
		return "", &types.ParseError{Field: "status", Message: fmt.Sprintf("unknown value %q", resp.Status)}
	}
}

// call runs one limiter+breaker guarded round trip.
func (c *Client) call(ctx context.Context, category ratelimit.Category, method, path string, payload, out interface{}) error {
	acquireCtx := ctx
	if c.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, c.acquireTimeout)
		defer cancel()
	}
	err := c.limiter.Acquire(acquireCtx, category)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("acquire %s token: %w", category, types.ErrRateLimitTimeout)
		}
		return fmt.Errorf("acquire %s token: %w", category, err)
	}

	err = c.breaker.Allow()
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			c.breaker.RecordSuccess() // marshal failure is ours, not upstream's
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		c.breaker.RecordSuccess()
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return &types.UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return &types.UpstreamError{Message: fmt.Sprintf("read body: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.breaker.RecordFailure()
		return &types.UpstreamError{StatusCode: resp.StatusCode, Message: string(raw)}
	}
	c.breaker.RecordSuccess()

	if out != nil {
		err = json.Unmarshal(raw, out)
		if err != nil {
			return &types.ParseError{Message: err.Error()}
		}
	}

	return nil
}
