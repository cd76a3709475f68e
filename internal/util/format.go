package util

import (
	"math"

	"github.com/shopspring/decimal"
)

// marketCapScale converts the simulated unit price into the displayed market
// cap, shown in thousands.
const marketCapScale = 1000

// FormatAmount renders a cash or quantity value with two decimals.
func FormatAmount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatPnL renders a profit or loss with an explicit minus sign for losses.
// Small losses keep their sign even when they round to zero ("-0.00").
func FormatPnL(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	abs := decimal.NewFromFloat(math.Abs(v)).StringFixed(2)
	if v < 0 {
		return "-" + abs
	}
	return abs
}

// FormatMarketCap renders price as the game's market cap figure, e.g. 123.45 -> "123450.00K".
func FormatMarketCap(price float64) string {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return "-"
	}
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(marketCapScale)).StringFixed(2) + "K"
}
