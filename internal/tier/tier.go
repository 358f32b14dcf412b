// Package tier defines the per-price-band profitability policies the
// scanner filters against.
package tier

import "fmt"

// Policy is one profitability tier. Bands are half-open: a listing
// belongs to the tier when MinPrice <= price < MaxPrice (minor units).
type Policy struct {
	Name           string
	MinPrice       int64
	MaxPrice       int64
	MinROIPercent  float64
	MinDailyVolume int
}

// Contains reports whether a price falls inside the tier's band.
func (p Policy) Contains(price int64) bool {
	return price >= p.MinPrice && price < p.MaxPrice
}

// Canonical returns the five default tiers, ordered by ascending price
// band. Higher-priced items carry equal absolute risk at lower margins,
// so MinROIPercent decreases as the band rises.
func Canonical() []Policy {
	return []Policy{
		{Name: "entry", MinPrice: 1, MaxPrice: 50, MinROIPercent: 20, MinDailyVolume: 50},
		{Name: "boost", MinPrice: 50, MaxPrice: 300, MinROIPercent: 15, MinDailyVolume: 20},
		{Name: "mid", MinPrice: 300, MaxPrice: 1500, MinROIPercent: 10, MinDailyVolume: 10},
		{Name: "premium", MinPrice: 1500, MaxPrice: 10000, MinROIPercent: 7, MinDailyVolume: 5},
		{Name: "elite", MinPrice: 10000, MaxPrice: 100000, MinROIPercent: 5, MinDailyVolume: 1},
	}
}

// Validate checks a tier set: ascending contiguous non-overlapping bands
// and MinROIPercent non-increasing as the band rises. Called once at
// startup; a violation is a configuration error and fatal.
func Validate(tiers []Policy) error {
	if len(tiers) == 0 {
		return fmt.Errorf("at least one tier must be configured")
	}

	seen := make(map[string]bool, len(tiers))
	for i, t := range tiers {
		if t.Name == "" {
			return fmt.Errorf("tier %d: name cannot be empty", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("tier %q: duplicate name", t.Name)
		}
		seen[t.Name] = true

		if t.MinPrice <= 0 {
			return fmt.Errorf("tier %q: min price must be positive", t.Name)
		}
		if t.MaxPrice <= t.MinPrice {
			return fmt.Errorf("tier %q: max price must exceed min price", t.Name)
		}
		if t.MinDailyVolume < 0 {
			return fmt.Errorf("tier %q: min daily volume cannot be negative", t.Name)
		}

		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if t.MinPrice != prev.MaxPrice {
			return fmt.Errorf("tier %q: band [%d,%d) not contiguous with %q ending at %d",
				t.Name, t.MinPrice, t.MaxPrice, prev.Name, prev.MaxPrice)
		}
		if t.MinROIPercent > prev.MinROIPercent {
			return fmt.Errorf("tier %q: min ROI %.2f%% exceeds lower-band tier %q at %.2f%%",
				t.Name, t.MinROIPercent, prev.Name, prev.MinROIPercent)
		}
	}

	return nil
}

// ByName returns the tier with the given name.
func ByName(tiers []Policy, name string) (Policy, bool) {
	for _, t := range tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Policy{}, false
}
