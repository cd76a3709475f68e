package paper

import (
	"sync"

	"github.com/bigbagadawgz/trenchsimulator/internal/execution"
)

// Ledger stores the session's trades in memory, oldest first.
type Ledger struct {
	mu     sync.Mutex
	trades []execution.Trade
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{trades: make([]execution.Trade, 0, capacity)}
}

// Record appends a copy of trade to the ledger.
func (l *Ledger) Record(trade execution.Trade) {
	l.mu.Lock()
	l.trades = append(l.trades, trade.Clone())
	l.mu.Unlock()
}

// Snapshot returns a deep copy of the recorded trades.
func (l *Ledger) Snapshot() []execution.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]execution.Trade, len(l.trades))
	for i, t := range l.trades {
		out[i] = t.Clone()
	}
	return out
}

// Len reports the number of recorded trades.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.trades)
}

// Reset clears all stored trades.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.trades = l.trades[:0]
	l.mu.Unlock()
}

// AverageEntryPrice recomputes the cost basis from a trade log: the
// amount-weighted mean price of the buys after the most recent full exit.
// It returns 0 when there are no such buys.
func AverageEntryPrice(trades []execution.Trade) float64 {
	start := 0
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].Side == execution.Sell && trades[i].FullExit {
			start = i + 1
			break
		}
	}

	var cost, amount float64
	for _, t := range trades[start:] {
		if t.Side != execution.Buy {
			continue
		}
		cost += t.Amount * t.Price
		amount += t.Amount
	}
	if amount <= 0 {
		return 0
	}
	return cost / amount
}

// RealizedPnLTotal sums the realized PnL recorded on sells.
func RealizedPnLTotal(trades []execution.Trade) float64 {
	var total float64
	for _, t := range trades {
		if pnl, ok := t.PnL(); ok {
			total += pnl
		}
	}
	return total
}
