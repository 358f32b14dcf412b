package marketdata

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

// listingPayload is the wire shape of one marketplace item. Every field is
// a pointer so that absence is distinguishable from a zero value; the
// provider's payloads are duck-typed and must not leak partial structures
// past this boundary.
type listingPayload struct {
	ItemID         *string `json:"itemId"`
	Title          *string `json:"title"`
	Price          *int64  `json:"price"`
	SuggestedPrice *int64  `json:"suggestedPrice"`
	DailyVolume    *int    `json:"dailyVolume"`
	FirstSeenAt    *int64  `json:"firstSeenAt"` // unix seconds
}

type listingsEnvelope struct {
	Items []listingPayload `json:"items"`
	Total int              `json:"total"`
}

// parseListings normalizes a raw response body into Listings. A malformed
// envelope is a ParseError for the whole fetch; a malformed individual item
// is isolated - logged, counted, and dropped without failing the rest.
func parseListings(body []byte, gameID string, logger *zap.Logger) ([]types.Listing, error) {
	var envelope listingsEnvelope
	err := json.Unmarshal(body, &envelope)
	if err != nil {
		return nil, &types.ParseError{Message: err.Error()}
	}

	listings := make([]types.Listing, 0, len(envelope.Items))
	for i, item := range envelope.Items {
		listing, err := normalizeListing(item, gameID)
		if err != nil {
			ListingsDroppedTotal.WithLabelValues("malformed").Inc()
			logger.Warn("listing-dropped",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		listings = append(listings, listing)
	}

	ListingsParsedTotal.Add(float64(len(listings)))
	return listings, nil
}

func normalizeListing(p listingPayload, gameID string) (types.Listing, error) {
	switch {
	case p.ItemID == nil || *p.ItemID == "":
		return types.Listing{}, &types.ParseError{Field: "itemId", Message: "missing"}
	case p.Title == nil || *p.Title == "":
		return types.Listing{}, &types.ParseError{Field: "title", Message: "missing"}
	case p.Price == nil:
		return types.Listing{}, &types.ParseError{Field: "price", Message: "missing"}
	case *p.Price < 0:
		return types.Listing{}, &types.ParseError{Field: "price", Message: "negative"}
	case p.SuggestedPrice == nil:
		return types.Listing{}, &types.ParseError{Field: "suggestedPrice", Message: "missing"}
	case *p.SuggestedPrice < 0:
		return types.Listing{}, &types.ParseError{Field: "suggestedPrice", Message: "negative"}
	case p.DailyVolume == nil:
		return types.Listing{}, &types.ParseError{Field: "dailyVolume", Message: "missing"}
	case *p.DailyVolume < 0:
		return types.Listing{}, &types.ParseError{Field: "dailyVolume", Message: "negative"}
	}

	var firstSeen time.Time
	if p.FirstSeenAt != nil {
		firstSeen = time.Unix(*p.FirstSeenAt, 0).UTC()
	}

	return types.Listing{
		ItemID:         *p.ItemID,
		Title:          *p.Title,
		GameID:         gameID,
		Price:          *p.Price,
		SuggestedPrice: *p.SuggestedPrice,
		DailyVolume:    *p.DailyVolume,
		FirstSeenAt:    firstSeen,
	}, nil
}
