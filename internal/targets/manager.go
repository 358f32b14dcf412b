// Package targets manages the lifecycle of outstanding buy-orders: it
// places them, watches the order book for competing bids, re-prices when
// outbid and withdraws orders whose economics no longer clear the tier.
package targets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skinarb/skinarb/internal/profit"
	"github.com/skinarb/skinarb/internal/tier"
	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

// TradeClient is the provider surface the manager needs.
type TradeClient interface {
	CreateTarget(ctx context.Context, query types.ItemQuery, bid int64) (string, error)
	UpdateTarget(ctx context.Context, targetID string, bid int64) error
	CancelTarget(ctx context.Context, targetID string) error
	TargetStatus(ctx context.Context, targetID string) (types.TargetStatus, error)
}

// BidSource exposes the best competing bid per item query.
type BidSource interface {
	BestBid(queryKey string) (int64, bool)
}

// Store persists target state on every transition.
type Store interface {
	SaveTarget(ctx context.Context, target *types.Target) error
}

// Notifier receives target lifecycle transitions.
type Notifier interface {
	TargetTransition(target *types.Target, from types.TargetStatus)
}

// Subscriber registers item queries on the bid stream so the order book
// starts tracking competitors for newly placed targets.
type Subscriber interface {
	Subscribe(queryKeys []string) error
}

// Manager owns all targets this process has placed. Each target is
// serialized on its own mutex so a reprice and a status sync for the same
// target never interleave, while distinct targets proceed concurrently.
type Manager struct {
	trade      TradeClient
	bids       BidSource
	store      Store
	notifier   Notifier
	subscriber Subscriber
	tiers      []tier.Policy

	bidIncrement int64
	feeBPS       int64
	logger       *zap.Logger

	mu      sync.RWMutex
	tracked map[string]*trackedTarget // keyed by RequestID
}

type trackedTarget struct {
	mu             sync.Mutex
	target         types.Target
	tier           tier.Policy
	suggestedPrice int64
}

// Config holds target manager configuration.
type Config struct {
	Trade        TradeClient
	Bids         BidSource
	Store        Store
	Notifier     Notifier
	Subscriber   Subscriber // optional
	Tiers        []tier.Policy
	BidIncrement int64 // minor units added on top of the best competing bid
	FeeBPS       int64
	Logger       *zap.Logger
}

// New creates a new target manager.
func New(cfg *Config) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Trade == nil {
		return nil, fmt.Errorf("trade client cannot be nil")
	}
	if cfg.Bids == nil {
		return nil, fmt.Errorf("bid source cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.BidIncrement <= 0 {
		return nil, fmt.Errorf("bid increment must be positive")
	}
	if cfg.FeeBPS < 0 || cfg.FeeBPS >= 10000 {
		return nil, fmt.Errorf("fee bps must be in [0,10000)")
	}
	if err := tier.Validate(cfg.Tiers); err != nil {
		return nil, fmt.Errorf("validate tiers: %w", err)
	}

	return &Manager{
		trade:        cfg.Trade,
		bids:         cfg.Bids,
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		subscriber:   cfg.Subscriber,
		tiers:        cfg.Tiers,
		bidIncrement: cfg.BidIncrement,
		feeBPS:       cfg.FeeBPS,
		logger:       cfg.Logger,
		tracked:      make(map[string]*trackedTarget),
	}, nil
}

// PlacementRequest describes a new buy-order to place.
type PlacementRequest struct {
	Query          types.ItemQuery
	TierName       string
	InitialBid     int64
	OwnerBudget    int64 // hard cap for this target's bid
	SuggestedPrice int64 // resale reference used for ROI checks on reprice
}

// Place creates a provider buy-order and starts tracking it. The target
// stays Pending until a status sync confirms the provider accepted it; a
// rejected creation is recorded as Failed.
func (m *Manager) Place(ctx context.Context, req PlacementRequest) (*types.Target, error) {
	policy, ok := tier.ByName(m.tiers, req.TierName)
	if !ok {
		return nil, fmt.Errorf("unknown tier %q", req.TierName)
	}
	if req.InitialBid <= 0 {
		return nil, &types.InvalidPriceError{Price: req.InitialBid}
	}
	if req.OwnerBudget < req.InitialBid {
		return nil, fmt.Errorf("budget %d below initial bid %d: %w",
			req.OwnerBudget, req.InitialBid, types.ErrBudgetExceeded)
	}
	if req.SuggestedPrice <= 0 {
		return nil, &types.InvalidPriceError{Price: req.SuggestedPrice}
	}

	entry := &trackedTarget{
		target: types.Target{
			RequestID:   uuid.NewString(),
			Query:       req.Query,
			TierName:    req.TierName,
			CurrentBid:  req.InitialBid,
			OwnerBudget: req.OwnerBudget,
			Status:      types.TargetPending,
			CreatedAt:   time.Now().UTC(),
		},
		tier:           policy,
		suggestedPrice: req.SuggestedPrice,
	}

	providerID, err := m.trade.CreateTarget(ctx, req.Query, req.InitialBid)
	if err != nil {
		entry.target.Status = types.TargetFailed
		m.persist(ctx, &entry.target)
		m.notifier.TargetTransition(&entry.target, types.TargetPending)
		TransitionsTotal.WithLabelValues(string(types.TargetPending), string(types.TargetFailed)).Inc()
		return nil, fmt.Errorf("create target: %w", err)
	}
	entry.target.ID = providerID

	m.mu.Lock()
	m.tracked[entry.target.RequestID] = entry
	OpenTargets.Set(float64(len(m.tracked)))
	m.mu.Unlock()

	m.persist(ctx, &entry.target)

	if m.subscriber != nil {
		err = m.subscriber.Subscribe([]string{req.Query.Key()})
		if err != nil {
			// Status sync still covers this target; the book is just slower.
			m.logger.Warn("bid-stream-subscribe-failed",
				zap.String("query", req.Query.Key()),
				zap.Error(err))
		}
	}

	m.logger.Info("target-placed",
		zap.String("request-id", entry.target.RequestID),
		zap.String("target-id", providerID),
		zap.String("query", req.Query.Key()),
		zap.String("tier", req.TierName),
		zap.Int64("bid", req.InitialBid),
		zap.Int64("budget", req.OwnerBudget))

	snapshot := entry.target
	return &snapshot, nil
}

// Reprice answers a competing bid: the new bid is the best competing bid
// plus the configured increment, capped at the target's budget. When even
// the capped bid cannot clear the tier's minimum ROI against the current
// suggested price, the target is withdrawn instead.
func (m *Manager) Reprice(ctx context.Context, requestID string) error {
	entry, err := m.lookup(requestID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.target.Status.Terminal() {
		return nil
	}

	competing, ok := m.bids.BestBid(entry.target.Query.Key())
	if !ok || competing < entry.target.CurrentBid {
		return nil
	}

	newBid := competing + m.bidIncrement
	if newBid > entry.target.OwnerBudget {
		newBid = entry.target.OwnerBudget
	}

	result, err := profit.SingleMarket(newBid, entry.suggestedPrice, m.feeBPS)
	if err != nil {
		return fmt.Errorf("price capped bid: %w", err)
	}
	if result.ROIPercent < entry.tier.MinROIPercent {
		CancelledBelowROITotal.Inc()
		m.logger.Info("target-withdrawn-below-roi",
			zap.String("request-id", requestID),
			zap.Int64("capped-bid", newBid),
			zap.Float64("roi-percent", result.ROIPercent),
			zap.Float64("tier-min-roi", entry.tier.MinROIPercent))
		return m.cancelLocked(ctx, entry)
	}

	if newBid <= entry.target.CurrentBid {
		// Budget cap leaves us where we are; stay outbid until the
		// competitor withdraws or the target owner raises the budget.
		return nil
	}

	err = m.trade.UpdateTarget(ctx, entry.target.ID, newBid)
	if err != nil {
		return fmt.Errorf("update target %s: %w", entry.target.ID, err)
	}

	entry.target.CurrentBid = newBid
	entry.target.LastRepricedAt = time.Now().UTC()
	RepricesTotal.Inc()

	if newBid > competing {
		m.transitionLocked(ctx, entry, types.TargetActive)
	}

	m.logger.Info("target-repriced",
		zap.String("request-id", requestID),
		zap.Int64("competing-bid", competing),
		zap.Int64("new-bid", newBid))

	return nil
}

// Cancel withdraws a target. Terminal targets are left untouched.
func (m *Manager) Cancel(ctx context.Context, requestID string) error {
	entry, err := m.lookup(requestID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.target.Status.Terminal() {
		return nil
	}
	return m.cancelLocked(ctx, entry)
}

// Sync reconciles one target against the provider's view of it.
func (m *Manager) Sync(ctx context.Context, requestID string) error {
	entry, err := m.lookup(requestID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.target.Status.Terminal() {
		return nil
	}

	remote, err := m.trade.TargetStatus(ctx, entry.target.ID)
	if err != nil {
		return fmt.Errorf("fetch status for %s: %w", entry.target.ID, err)
	}
	if remote != entry.target.Status {
		m.transitionLocked(ctx, entry, remote)
	}

	return nil
}

// Poll runs one reconciliation sweep: every live target is synced against
// the provider, checked against the order book and repriced when a
// competitor holds a better bid.
func (m *Manager) Poll(ctx context.Context) {
	for _, requestID := range m.liveRequestIDs() {
		if ctx.Err() != nil {
			return
		}

		err := m.Sync(ctx, requestID)
		if err != nil {
			m.logger.Warn("target-sync-failed",
				zap.String("request-id", requestID),
				zap.Error(err))
			continue
		}

		if m.outbidByBook(requestID) {
			err = m.Reprice(ctx, requestID)
			if err != nil {
				m.logger.Warn("target-reprice-failed",
					zap.String("request-id", requestID),
					zap.Error(err))
			}
		}
	}
}

// Targets returns a snapshot of every tracked target.
func (m *Manager) Targets() []types.Target {
	m.mu.RLock()
	entries := make([]*trackedTarget, 0, len(m.tracked))
	for _, entry := range m.tracked {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	out := make([]types.Target, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		out = append(out, entry.target)
		entry.mu.Unlock()
	}
	return out
}

// CommittedExposure sums the budgets of all non-terminal targets. Budgets,
// not current bids: a live target may be repriced up to its budget at any
// time, so the budget is the true commitment against the owner's ceiling.
func (m *Manager) CommittedExposure() int64 {
	var total int64
	for _, t := range m.Targets() {
		if !t.Status.Terminal() {
			total += t.OwnerBudget
		}
	}
	return total
}

// RefreshSuggestedPrices updates the resale reference the reprice ROI gate
// checks against, keyed by item query. Each scan cycle feeds its fresh
// listings through here so a target is judged against the current suggested
// price, not the one seen at placement.
func (m *Manager) RefreshSuggestedPrices(prices map[string]int64) {
	m.mu.RLock()
	entries := make([]*trackedTarget, 0, len(m.tracked))
	for _, entry := range m.tracked {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	for _, entry := range entries {
		entry.mu.Lock()
		if price, ok := prices[entry.target.Query.Key()]; ok && price > 0 {
			entry.suggestedPrice = price
		}
		entry.mu.Unlock()
	}
}

var errUnknownTarget = errors.New("unknown target")

func (m *Manager) lookup(requestID string) (*trackedTarget, error) {
	m.mu.RLock()
	entry, ok := m.tracked[requestID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownTarget, requestID)
	}
	return entry, nil
}

func (m *Manager) liveRequestIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.tracked))
	for id, entry := range m.tracked {
		entry.mu.Lock()
		terminal := entry.target.Status.Terminal()
		entry.mu.Unlock()
		if !terminal {
			ids = append(ids, id)
		}
	}
	return ids
}

// outbidByBook reports whether the order book shows a bid beating ours.
// The provider also reports outbid through status sync; the book is just
// faster.
func (m *Manager) outbidByBook(requestID string) bool {
	entry, err := m.lookup(requestID)
	if err != nil {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.target.Status != types.TargetActive && entry.target.Status != types.TargetOutbid {
		return false
	}

	competing, ok := m.bids.BestBid(entry.target.Query.Key())
	if !ok || competing <= entry.target.CurrentBid {
		return false
	}
	if entry.target.Status == types.TargetActive {
		m.transitionLocked(context.Background(), entry, types.TargetOutbid)
	}
	return true
}

func (m *Manager) cancelLocked(ctx context.Context, entry *trackedTarget) error {
	err := m.trade.CancelTarget(ctx, entry.target.ID)
	if err != nil {
		return fmt.Errorf("cancel target %s: %w", entry.target.ID, err)
	}
	m.transitionLocked(ctx, entry, types.TargetCancelled)
	return nil
}

// transitionLocked applies a status change, persists it and notifies.
// Caller holds entry.mu.
func (m *Manager) transitionLocked(ctx context.Context, entry *trackedTarget, to types.TargetStatus) {
	from := entry.target.Status
	if from == to || from.Terminal() {
		return
	}
	entry.target.Status = to

	TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	m.persist(ctx, &entry.target)
	m.notifier.TargetTransition(&entry.target, from)

	m.logger.Info("target-transition",
		zap.String("request-id", entry.target.RequestID),
		zap.String("query", entry.target.Query.Key()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
}

// persist writes through to storage; a storage failure is logged, never
// allowed to stall the trading path.
func (m *Manager) persist(ctx context.Context, target *types.Target) {
	err := m.store.SaveTarget(ctx, target)
	if err != nil {
		m.logger.Error("target-persist-failed",
			zap.String("request-id", target.RequestID),
			zap.Error(err))
	}
}
