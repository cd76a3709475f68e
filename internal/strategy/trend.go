// Package strategy reads the candle window and suggests a direction to the player.
package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/bigbagadawgz/trenchsimulator/internal/market"
)

// Signal expresses a trading bias over the recent chart.
type Signal struct {
	Score  float64 // fractional change; positive long bias, negative short bias
	Reason string
	Ts     time.Time
}

// Long reports a positive bias.
func (s Signal) Long() bool { return s.Score > 0 }

// TrendFollower emits a signal when the close-to-close move over the lookback
// exceeds threshold and the candles are active enough to matter.
type TrendFollower struct {
	threshold float64
	lookback  int
	minRange  float64
}

// NewTrendFollower builds a trend hint over the last lookback candles. minRange
// is the smallest mean high-low span accepted; zero disables that filter.
func NewTrendFollower(threshold float64, lookback int, minRange float64) *TrendFollower {
	if threshold <= 0 {
		threshold = 0.05
	}
	if lookback < 2 {
		lookback = 20
	}
	return &TrendFollower{threshold: threshold, lookback: lookback, minRange: math.Max(0, minRange)}
}

// Name returns the identifier used in logs and the shell.
func (t *TrendFollower) Name() string { return "TrendFollower" }

// Evaluate inspects the newest candles, oldest first, and returns nil when
// there is no clear trend.
func (t *TrendFollower) Evaluate(candles []market.Candle) *Signal {
	if len(candles) < 2 {
		return nil
	}
	window := candles
	if len(window) > t.lookback {
		window = window[len(window)-t.lookback:]
	}
	oldest, latest := window[0], window[len(window)-1]
	if oldest.Close <= 0 {
		return nil
	}

	change := (latest.Close - oldest.Close) / oldest.Close
	if math.Abs(change) < t.threshold {
		return nil
	}
	avgRange := meanRange(window)
	if t.minRange > 0 && avgRange < t.minRange {
		return nil
	}
	reason := fmt.Sprintf("Δ=%.2f%% over %d candles, avg range %.2f", change*100, len(window), avgRange)
	return &Signal{Score: change, Reason: reason, Ts: latest.Time}
}

func meanRange(candles []market.Candle) float64 {
	var total float64
	for _, c := range candles {
		total += c.High - c.Low
	}
	return total / float64(len(candles))
}
