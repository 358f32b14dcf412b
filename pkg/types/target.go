package types

import "time"

// TargetStatus is the lifecycle state of an outstanding buy-order.
type TargetStatus string

const (
	TargetPending   TargetStatus = "pending"   // requested, provider has not confirmed yet
	TargetActive    TargetStatus = "active"    // live on the order book
	TargetOutbid    TargetStatus = "outbid"    // a competitor holds a better bid
	TargetFilled    TargetStatus = "filled"    // terminal
	TargetCancelled TargetStatus = "cancelled" // terminal
	TargetFailed    TargetStatus = "failed"    // terminal: provider rejected creation
)

// Terminal reports whether no further transitions are possible.
func (s TargetStatus) Terminal() bool {
	return s == TargetFilled || s == TargetCancelled || s == TargetFailed
}

// ItemQuery identifies the item a target bids on.
type ItemQuery struct {
	GameID string
	Title  string
}

// Key renders the order-book key for this query.
func (q ItemQuery) Key() string {
	return q.GameID + "/" + q.Title
}

// Target is an outstanding buy-order this system has placed.
// Monetary fields are minor currency units.
type Target struct {
	ID             string // provider-assigned once accepted; empty while pending
	RequestID      string // client-side id, stable across the whole lifecycle
	Query          ItemQuery
	TierName       string
	CurrentBid     int64
	OwnerBudget    int64 // hard cap for this target's bid
	Status         TargetStatus
	CreatedAt      time.Time
	LastRepricedAt time.Time
}
