package market

import (
	"math"
	"time"
)

// Params holds the constants of the random walk.
type Params struct {
	// BaseVolatility is the body size scale before the per-tick jitter of up to +50%.
	BaseVolatility float64
	// SpikeThreshold is the draw above which a tick becomes a volatility spike.
	SpikeThreshold float64
	// SpikeRange widens a spike: the multiplier is 1 + u*SpikeRange.
	SpikeRange float64
	// MinPrice is the floor applied to every close.
	MinPrice float64
}

// DefaultParams returns the reference tuning: volatility 8, ~10% spike chance of 1x-3x, floor at 1.
func DefaultParams() Params {
	return Params{
		BaseVolatility: 8,
		SpikeThreshold: 0.9,
		SpikeRange:     2,
		MinPrice:       1,
	}
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.BaseVolatility <= 0 {
		p.BaseVolatility = def.BaseVolatility
	}
	if p.SpikeThreshold <= 0 || p.SpikeThreshold >= 1 {
		p.SpikeThreshold = def.SpikeThreshold
	}
	if p.SpikeRange < 0 {
		p.SpikeRange = def.SpikeRange
	}
	if p.MinPrice <= 0 {
		p.MinPrice = def.MinPrice
	}
	return p
}

// Process generates the next candle from the previous one using a biased random walk
// with occasional volatility spikes. It keeps no state besides its random source.
type Process struct {
	params Params
	rng    Source
	now    func() time.Time
}

// Option configures Process construction parameters.
type Option func(*Process)

// WithParams overrides the walk constants. Unset or out-of-range fields keep their defaults.
func WithParams(p Params) Option {
	return func(proc *Process) {
		proc.params = p.withDefaults()
	}
}

// WithClock replaces time.Now as the candle timestamp source.
func WithClock(now func() time.Time) Option {
	return func(proc *Process) {
		if now != nil {
			proc.now = now
		}
	}
}

// NewProcess builds a process drawing from rng. A nil rng falls back to a time-seeded generator.
func NewProcess(rng Source, opts ...Option) *Process {
	if rng == nil {
		rng = NewSource(0)
	}
	p := &Process{
		params: DefaultParams(),
		rng:    rng,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Params returns the constants in effect.
func (p *Process) Params() Params { return p.params }

// Next returns the candle following prev. Draws are consumed in a fixed order:
// volatility, trend strength, bias, spike trigger, spike size (only when the
// spike fires), close, wick scale, upper wick, lower wick.
func (p *Process) Next(prev Candle) Candle {
	volatility := p.params.BaseVolatility * (1 + p.rng.Float64()*0.5)
	trendStrength := p.rng.Float64()
	bias := (p.rng.Float64() - 0.5) * 4 * trendStrength

	spikeMultiplier := 1.0
	if p.rng.Float64() > p.params.SpikeThreshold {
		spikeMultiplier = 1 + p.rng.Float64()*p.params.SpikeRange
	}

	open := prev.Close
	if open < p.params.MinPrice || math.IsNaN(open) {
		open = p.params.MinPrice
	}
	close := math.Max(p.params.MinPrice, open+(p.rng.Float64()-0.5+bias)*volatility*spikeMultiplier)

	wickVolatility := volatility * (p.rng.Float64()*0.5 + 0.5)
	high := math.Max(open, close) + p.rng.Float64()*wickVolatility*spikeMultiplier
	low := math.Min(open, close) - p.rng.Float64()*wickVolatility*spikeMultiplier

	return Candle{
		Open:  open,
		High:  high,
		Low:   low,
		Close: close,
		Time:  p.now(),
	}
}
