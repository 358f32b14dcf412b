package types

import (
	"fmt"
	"time"
)

// Listing is an immutable snapshot of one marketplace entry at fetch time.
// All monetary fields are integers in minor currency units (cents).
type Listing struct {
	ItemID         string
	Title          string
	GameID         string
	Price          int64 // current ask price, minor units
	SuggestedPrice int64 // marketplace resale suggestion, minor units
	DailyVolume    int
	FirstSeenAt    time.Time
}

// FilterSpec narrows a market fetch. The zero value means "everything for
// the game". MinPrice/MaxPrice are minor units; MaxPrice == 0 means no cap.
type FilterSpec struct {
	MinPrice    int64
	MaxPrice    int64
	MinVolume   int
	SearchQuery string
}

// CacheKey renders a stable cache key for a (game, filter) pair.
func (f FilterSpec) CacheKey(gameID string) string {
	return fmt.Sprintf("listings:%s:%d:%d:%d:%s", gameID, f.MinPrice, f.MaxPrice, f.MinVolume, f.SearchQuery)
}
