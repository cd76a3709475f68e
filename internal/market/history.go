package market

// DefaultHistorySize is the number of candles kept for charting.
const DefaultHistorySize = 200

// History is a bounded, chronologically ordered window of candles. Appending
// beyond capacity drops the oldest entries. Not safe for concurrent use; the
// owning session serializes access.
type History struct {
	capacity int
	candles  []Candle
}

// NewHistory creates an empty window. Non-positive capacity uses DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{capacity: capacity, candles: make([]Candle, 0, capacity)}
}

// Append adds c as the newest candle, evicting from the front when full.
func (h *History) Append(c Candle) {
	h.candles = append(h.candles, c)
	if over := len(h.candles) - h.capacity; over > 0 {
		// shift down in place so the backing array does not grow without bound
		n := copy(h.candles, h.candles[over:])
		h.candles = h.candles[:n]
	}
}

// Last returns the newest candle and false when the window is empty.
func (h *History) Last() (Candle, bool) {
	if len(h.candles) == 0 {
		return Candle{}, false
	}
	return h.candles[len(h.candles)-1], true
}

// Len reports how many candles are held.
func (h *History) Len() int { return len(h.candles) }

// Cap reports the window capacity.
func (h *History) Cap() int { return h.capacity }

// Candles returns a copy of the window, oldest first.
func (h *History) Candles() []Candle {
	out := make([]Candle, len(h.candles))
	copy(out, h.candles)
	return out
}

// Reset empties the window.
func (h *History) Reset() {
	h.candles = h.candles[:0]
}

// Range returns the lowest low and highest high across candles, for chart scaling.
func Range(candles []Candle) (lo, hi float64, ok bool) {
	if len(candles) == 0 {
		return 0, 0, false
	}
	lo, hi = candles[0].Low, candles[0].High
	for _, c := range candles[1:] {
		if c.Low < lo {
			lo = c.Low
		}
		if c.High > hi {
			hi = c.High
		}
	}
	return lo, hi, true
}
