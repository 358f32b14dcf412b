package targets

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/skinarb/skinarb/internal/tier"
	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

type fakeTrade struct {
	mu sync.Mutex

	createErr    error
	remoteStatus types.TargetStatus

	created   []int64
	updated   []int64
	cancelled []string
}

func (f *fakeTrade) CreateTarget(_ context.Context, _ types.ItemQuery, bid int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, bid)
	return "tgt-1", nil
}

func (f *fakeTrade) UpdateTarget(_ context.Context, _ string, bid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, bid)
	return nil
}

func (f *fakeTrade) CancelTarget(_ context.Context, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, targetID)
	return nil
}

func (f *fakeTrade) TargetStatus(_ context.Context, _ string) (types.TargetStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remoteStatus == "" {
		return types.TargetPending, nil
	}
	return f.remoteStatus, nil
}

type fakeBids struct {
	mu   sync.Mutex
	bids map[string]int64
}

func (f *fakeBids) BestBid(queryKey string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bid, ok := f.bids[queryKey]
	return bid, ok
}

func (f *fakeBids) set(queryKey string, bid int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bids == nil {
		f.bids = make(map[string]int64)
	}
	f.bids[queryKey] = bid
}

type fakeStore struct {
	mu    sync.Mutex
	saves []types.Target
}

func (f *fakeStore) SaveTarget(_ context.Context, target *types.Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, *target)
	return nil
}

type fakeNotifier struct {
	mu          sync.Mutex
	transitions []string
}

func (f *fakeNotifier) TargetTransition(target *types.Target, from types.TargetStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, string(from)+"->"+string(target.Status))
}

type managerFixture struct {
	manager  *Manager
	trade    *fakeTrade
	bids     *fakeBids
	store    *fakeStore
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *managerFixture {
	t.Helper()

	f := &managerFixture{
		trade:    &fakeTrade{},
		bids:     &fakeBids{},
		store:    &fakeStore{},
		notifier: &fakeNotifier{},
	}

	manager, err := New(&Config{
		Trade:        f.trade,
		Bids:         f.bids,
		Store:        f.store,
		Notifier:     f.notifier,
		Tiers:        tier.Canonical(),
		BidIncrement: 5,
		FeeBPS:       700,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	f.manager = manager
	return f
}

var testQuery = types.ItemQuery{GameID: "csgo", Title: "AK-47 Redline"}

func place(t *testing.T, f *managerFixture, bid, budget, suggested int64) *types.Target {
	t.Helper()
	target, err := f.manager.Place(context.Background(), PlacementRequest{
		Query:          testQuery,
		TierName:       "boost",
		InitialBid:     bid,
		OwnerBudget:    budget,
		SuggestedPrice: suggested,
	})
	if err != nil {
		t.Fatalf("place target: %v", err)
	}
	return target
}

func TestPlace(t *testing.T) {
	f := newFixture(t)
	target := place(t, f, 100, 200, 150)

	if target.Status != types.TargetPending {
		t.Errorf("status = %q, want pending", target.Status)
	}
	if target.ID != "tgt-1" {
		t.Errorf("provider id = %q, want tgt-1", target.ID)
	}
	if len(f.store.saves) != 1 {
		t.Errorf("saves = %d, want 1", len(f.store.saves))
	}
}

func TestPlace_BudgetBelowBid(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Place(context.Background(), PlacementRequest{
		Query:          testQuery,
		TierName:       "boost",
		InitialBid:     100,
		OwnerBudget:    90,
		SuggestedPrice: 150,
	})
	if !errors.Is(err, types.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestPlace_ProviderRejectionIsFailed(t *testing.T) {
	f := newFixture(t)
	f.trade.createErr = &types.UpstreamError{StatusCode: 422, Message: "invalid item"}

	_, err := f.manager.Place(context.Background(), PlacementRequest{
		Query:          testQuery,
		TierName:       "boost",
		InitialBid:     100,
		OwnerBudget:    200,
		SuggestedPrice: 150,
	})
	if err == nil {
		t.Fatal("expected error")
	}

	if len(f.notifier.transitions) != 1 || f.notifier.transitions[0] != "pending->failed" {
		t.Errorf("transitions = %v, want [pending->failed]", f.notifier.transitions)
	}
	if len(f.store.saves) != 1 || f.store.saves[0].Status != types.TargetFailed {
		t.Errorf("expected failed target persisted, got %+v", f.store.saves)
	}
}

func TestReprice_BeatsCompetitor(t *testing.T) {
	f := newFixture(t)
	target := place(t, f, 100, 200, 150)
	f.bids.set(testQuery.Key(), 105)

	if err := f.manager.Reprice(context.Background(), target.RequestID); err != nil {
		t.Fatalf("reprice: %v", err)
	}

	if len(f.trade.updated) != 1 || f.trade.updated[0] != 110 {
		t.Fatalf("updated = %v, want [110]", f.trade.updated)
	}
	got := f.manager.Targets()[0]
	if got.CurrentBid != 110 {
		t.Errorf("current bid = %d, want 110", got.CurrentBid)
	}
	if got.Status != types.TargetActive {
		t.Errorf("status = %q, want active", got.Status)
	}
}

func TestReprice_CappedAtBudget(t *testing.T) {
	f := newFixture(t)
	// Capped bid 120: fee 8, net 180-120-8 = 52, ROI 43% clears boost's 15%.
	target := place(t, f, 100, 120, 180)
	f.bids.set(testQuery.Key(), 130)

	if err := f.manager.Reprice(context.Background(), target.RequestID); err != nil {
		t.Fatalf("reprice: %v", err)
	}

	if len(f.trade.updated) != 1 || f.trade.updated[0] != 120 {
		t.Fatalf("updated = %v, want [120]", f.trade.updated)
	}
	// 120 still trails the 130 competitor, so the target stays outbid.
	got := f.manager.Targets()[0]
	if got.Status == types.TargetActive {
		t.Error("target below competitor must not be marked active")
	}
}

func TestReprice_BelowTierROICancels(t *testing.T) {
	f := newFixture(t)
	// Capped bid 110: fee 7, net 130-110-7 = 13, ROI 11.8% misses boost's 15%.
	target := place(t, f, 100, 110, 130)
	f.bids.set(testQuery.Key(), 105)

	if err := f.manager.Reprice(context.Background(), target.RequestID); err != nil {
		t.Fatalf("reprice: %v", err)
	}

	if len(f.trade.updated) != 0 {
		t.Errorf("no update expected, got %v", f.trade.updated)
	}
	if len(f.trade.cancelled) != 1 {
		t.Fatalf("cancelled = %v, want one cancel", f.trade.cancelled)
	}
	got := f.manager.Targets()[0]
	if got.Status != types.TargetCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
}

func TestReprice_NoCompetitorIsNoop(t *testing.T) {
	f := newFixture(t)
	target := place(t, f, 100, 200, 150)

	if err := f.manager.Reprice(context.Background(), target.RequestID); err != nil {
		t.Fatalf("reprice: %v", err)
	}
	if len(f.trade.updated) != 0 || len(f.trade.cancelled) != 0 {
		t.Error("reprice without a competing bid must not touch the provider")
	}
}

func TestSync_AppliesRemoteStatus(t *testing.T) {
	f := newFixture(t)
	target := place(t, f, 100, 200, 150)
	f.trade.remoteStatus = types.TargetFilled

	if err := f.manager.Sync(context.Background(), target.RequestID); err != nil {
		t.Fatalf("sync: %v", err)
	}

	got := f.manager.Targets()[0]
	if got.Status != types.TargetFilled {
		t.Errorf("status = %q, want filled", got.Status)
	}

	// Terminal state: a later remote change must not resurrect it.
	f.trade.remoteStatus = types.TargetActive
	if err := f.manager.Sync(context.Background(), target.RequestID); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if got := f.manager.Targets()[0]; got.Status != types.TargetFilled {
		t.Errorf("status after second sync = %q, want filled", got.Status)
	}
}

func TestCancel_TerminalIsIdempotent(t *testing.T) {
	f := newFixture(t)
	target := place(t, f, 100, 200, 150)

	if err := f.manager.Cancel(context.Background(), target.RequestID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := f.manager.Cancel(context.Background(), target.RequestID); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if len(f.trade.cancelled) != 1 {
		t.Errorf("cancel calls = %d, want 1", len(f.trade.cancelled))
	}
}

func TestPoll_RepricesWhenBookShowsBetterBid(t *testing.T) {
	f := newFixture(t)
	target := place(t, f, 100, 200, 150)

	f.trade.remoteStatus = types.TargetActive
	f.bids.set(testQuery.Key(), 105)

	f.manager.Poll(context.Background())

	if len(f.trade.updated) != 1 || f.trade.updated[0] != 110 {
		t.Fatalf("updated = %v, want [110]", f.trade.updated)
	}
	_ = target
}

func TestCommittedExposure_CountsBudgets(t *testing.T) {
	f := newFixture(t)
	first := place(t, f, 100, 200, 150)
	place(t, f, 60, 120, 100)

	// Budgets, not current bids: 200 + 120.
	if got := f.manager.CommittedExposure(); got != 320 {
		t.Errorf("exposure = %d, want 320", got)
	}

	if err := f.manager.Cancel(context.Background(), first.RequestID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.manager.CommittedExposure(); got != 120 {
		t.Errorf("exposure after cancel = %d, want 120", got)
	}
}

func TestCommittedExposure_StableAcrossReprice(t *testing.T) {
	f := newFixture(t)
	target := place(t, f, 100, 110, 180)

	before := f.manager.CommittedExposure()
	if before != 110 {
		t.Fatalf("exposure = %d, want 110", before)
	}

	// A competitor pushes the bid up to the budget cap. The commitment was
	// counted up front, so repricing must not move the exposure.
	f.bids.set(testQuery.Key(), 109)
	if err := f.manager.Reprice(context.Background(), target.RequestID); err != nil {
		t.Fatalf("reprice: %v", err)
	}
	if got := f.manager.Targets()[0].CurrentBid; got != 110 {
		t.Fatalf("current bid = %d, want 110", got)
	}

	if got := f.manager.CommittedExposure(); got != before {
		t.Errorf("exposure after reprice = %d, want %d", got, before)
	}
}

func TestReprice_UsesRefreshedSuggestedPrice(t *testing.T) {
	f := newFixture(t)
	// Against the placement-time reference 180 the capped bid would clear
	// the tier floor comfortably.
	target := place(t, f, 100, 110, 180)

	// The resale reference collapses; the next scan reports 130. Capped bid
	// 110: fee 7, net 130-110-7 = 13, ROI 11.8% misses boost's 15%.
	f.manager.RefreshSuggestedPrices(map[string]int64{testQuery.Key(): 130})
	f.bids.set(testQuery.Key(), 105)

	if err := f.manager.Reprice(context.Background(), target.RequestID); err != nil {
		t.Fatalf("reprice: %v", err)
	}

	if len(f.trade.updated) != 0 {
		t.Errorf("no update expected, got %v", f.trade.updated)
	}
	if got := f.manager.Targets()[0].Status; got != types.TargetCancelled {
		t.Errorf("status = %q, want cancelled", got)
	}
}

func TestUnknownTarget(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.Reprice(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown target")
	}
}
