// Package stream maintains the websocket subscription that feeds the
// order-book view of competing bids.
package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// BidUpdate is one push from the provider's order-book channel: the best
// competing bid currently visible for an item query.
type BidUpdate struct {
	QueryKey  string `json:"query"`   // gameId/title
	BestBid   int64  `json:"bestBid"` // minor units
	Bidders   int    `json:"bidders"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

type subscribeFrame struct {
	Op      string   `json:"op"`
	Queries []string `json:"queries"`
}

// Client is a reconnecting websocket consumer of bid updates.
type Client struct {
	url          string
	dialer       *websocket.Dialer
	logger       *zap.Logger
	backoff      *Backoff
	pingInterval time.Duration
	pongTimeout  time.Duration
	updates      chan *BidUpdate

	mu         sync.Mutex
	conn       *websocket.Conn
	subscribed map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds stream client configuration.
type Config struct {
	URL          string
	DialTimeout  time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
	Backoff      BackoffConfig
	BufferSize   int
	Logger       *zap.Logger
}

// New creates a new stream client. Start must be called before updates flow.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 10 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 15 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}

	return &Client{
		url: cfg.URL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
		},
		logger:       cfg.Logger,
		backoff:      NewBackoff(cfg.Backoff, cfg.Logger),
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		updates:      make(chan *BidUpdate, cfg.BufferSize),
		subscribed:   make(map[string]bool),
	}, nil
}

// Updates returns the channel bid updates are delivered on.
func (c *Client) Updates() <-chan *BidUpdate {
	return c.updates
}

// Start dials the stream and keeps it alive until ctx is cancelled,
// reconnecting with exponential backoff and re-issuing subscriptions.
func (c *Client) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	err := c.connect(c.ctx)
	if err != nil {
		return fmt.Errorf("initial connect: %w", err)
	}

	c.wg.Add(1)
	go c.runLoop()

	return nil
}

// Subscribe registers item queries for bid updates. Subscriptions survive
// reconnects.
func (c *Client) Subscribe(queryKeys []string) error {
	c.mu.Lock()
	fresh := make([]string, 0, len(queryKeys))
	for _, key := range queryKeys {
		if !c.subscribed[key] {
			c.subscribed[key] = true
			fresh = append(fresh, key)
		}
	}
	conn := c.conn
	c.mu.Unlock()

	if len(fresh) == 0 || conn == nil {
		return nil
	}
	return c.sendSubscribe(conn, fresh)
}

// Close tears down the connection and stops the run loop.
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.wg.Wait()
	close(c.updates)
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(c.pongTimeout))

	c.mu.Lock()
	c.conn = conn
	keys := make([]string, 0, len(c.subscribed))
	for key := range c.subscribed {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	ConnectsTotal.Inc()
	c.logger.Info("stream-connected", zap.String("url", c.url))

	if len(keys) > 0 {
		err = c.sendSubscribe(conn, keys)
		if err != nil {
			return fmt.Errorf("resubscribe: %w", err)
		}
	}

	return nil
}

func (c *Client) sendSubscribe(conn *websocket.Conn, keys []string) error {
	frame := subscribeFrame{Op: "subscribe", Queries: keys}
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal subscribe frame: %w", err)
	}

	err = conn.WriteMessage(websocket.TextMessage, payload)
	if err != nil {
		return fmt.Errorf("write subscribe frame: %w", err)
	}

	c.logger.Debug("stream-subscribed", zap.Int("queries", len(keys)))
	return nil
}

// runLoop reads until the connection drops, then reconnects until ctx ends.
func (c *Client) runLoop() {
	defer c.wg.Done()

	for {
		err := c.readUntilError()
		if c.ctx.Err() != nil {
			c.logger.Info("stream-stopping")
			return
		}

		DisconnectsTotal.Inc()
		c.logger.Warn("stream-disconnected", zap.Error(err))

		err = c.backoff.Retry(c.ctx, c.connect)
		if err != nil {
			c.logger.Info("stream-reconnect-abandoned", zap.Error(err))
			return
		}
	}
}

func (c *Client) readUntilError() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("no connection")
	}

	pingTicker := time.NewTicker(c.pingInterval)
	defer pingTicker.Stop()

	readErr := make(chan error, 1)
	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			c.handleMessage(payload)
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			// Closing the connection forces the reader out of ReadMessage;
			// wait for its error so no reader outlives this call.
			_ = conn.Close()
			<-readErr
			return c.ctx.Err()
		case err := <-readErr:
			return err
		case <-pingTicker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			if err != nil {
				_ = conn.Close()
				<-readErr
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (c *Client) handleMessage(payload []byte) {
	var update BidUpdate
	err := json.Unmarshal(payload, &update)
	if err != nil || update.QueryKey == "" {
		MessagesTotal.WithLabelValues("malformed").Inc()
		c.logger.Debug("stream-message-malformed", zap.Error(err))
		return
	}

	select {
	case c.updates <- &update:
		MessagesTotal.WithLabelValues("ok").Inc()
	default:
		MessagesTotal.WithLabelValues("dropped").Inc()
		c.logger.Warn("stream-buffer-full", zap.String("query", update.QueryKey))
	}
}
