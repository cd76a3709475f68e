// Package market simulates the price path of the traded asset as a stream of OHLC candles.
package market

import (
	"math"
	"time"
)

// Candle is one OHLC sample. Candles are values; nothing mutates one after Next returns it.
type Candle struct {
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
	Time  time.Time `json:"timestamp"`
}

// Genesis returns the flat opening candle a session starts from.
func Genesis(price float64, at time.Time) Candle {
	return Candle{Open: price, High: price, Low: price, Close: price, Time: at}
}

// Valid reports whether the wicks enclose the body and prices are finite and positive.
func (c Candle) Valid() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if c.Close <= 0 || c.Open <= 0 {
		return false
	}
	return c.Low <= math.Min(c.Open, c.Close) && c.High >= math.Max(c.Open, c.Close)
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }
