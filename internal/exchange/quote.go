package exchange

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Quote is one external price print shown on the ticker strip.
type Quote struct {
	Symbol string
	Price  float64
	Size   float64
	Side   int // +1 buy, -1 sell (aggressor)
	Ts     time.Time
}

// Line is a board row: the latest quote and its change against the previous one.
type Line struct {
	Quote
	ChangePct float64
}

// Board keeps the latest quote per symbol for display.
type Board struct {
	mu    sync.RWMutex
	lines map[string]Line
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{lines: make(map[string]Line)}
}

// Update stores q as the latest quote for its symbol.
func (b *Board) Update(q Quote) Line {
	b.mu.Lock()
	defer b.mu.Unlock()

	line := Line{Quote: q}
	if prev, ok := b.lines[q.Symbol]; ok && prev.Price > 0 {
		line.ChangePct = (q.Price - prev.Price) / prev.Price * 100
	}
	b.lines[q.Symbol] = line
	return line
}

// Get returns the latest line for symbol.
func (b *Board) Get(symbol string) (Line, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	line, ok := b.lines[symbol]
	return line, ok
}

// Lines returns every row sorted by symbol.
func (b *Board) Lines() []Line {
	b.mu.RLock()
	out := make([]Line, 0, len(b.lines))
	for _, line := range b.lines {
		out = append(out, line)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Consume drains in into the board until ctx ends or in is closed.
func (b *Board) Consume(ctx context.Context, in <-chan Quote) {
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-in:
			if !ok {
				return
			}
			b.Update(q)
		}
	}
}
