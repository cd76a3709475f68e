package risk

import "math"

// Limits caps how much cash a single buy may commit. A zero cap means unlimited.
type Limits struct {
	MaxAmountPerTrade float64
}

// Cap trims amount to the per-trade cap. Non-finite input is returned untouched
// so the ledger can reject it.
func (l Limits) Cap(amount float64) float64 {
	if l.MaxAmountPerTrade <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return amount
	}
	return math.Min(amount, l.MaxAmountPerTrade)
}
