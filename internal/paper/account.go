package paper

import (
	"sync"
	"time"

	"github.com/bigbagadawgz/trenchsimulator/internal/execution"
	"github.com/bigbagadawgz/trenchsimulator/internal/risk"
)

// TradeRecorder captures paper trades for later inspection.
type TradeRecorder interface {
	Record(execution.Trade)
}

// Account tracks virtual cash, the open position and the trade log of one session.
type Account struct {
	mu           sync.Mutex
	startingCash float64
	state        State
	ledger       *Ledger
	limits       risk.Limits
	recorder     TradeRecorder
	now          func() time.Time
}

// Snapshot represents a thread-safe view of the account state marked to a price.
type Snapshot struct {
	Cash              float64
	OpenQuantity      float64
	AverageEntryPrice float64
	UnrealizedPnL     float64
	RealizedPnL       float64
	Equity            float64
	Trades            int
}

// AccountOption configures Account construction parameters.
type AccountOption func(*Account)

// WithLimits applies a per-trade cap to buys before the cash clamp.
func WithLimits(limits risk.Limits) AccountOption {
	return func(a *Account) { a.limits = limits }
}

// WithRecorder mirrors every accepted trade to r.
func WithRecorder(r TradeRecorder) AccountOption {
	return func(a *Account) { a.recorder = r }
}

// WithClock replaces time.Now as the trade timestamp source.
func WithClock(now func() time.Time) AccountOption {
	return func(a *Account) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAccount constructs a flat account holding startingCash.
func NewAccount(startingCash float64, opts ...AccountOption) *Account {
	a := &Account{
		startingCash: startingCash,
		state:        NewState(startingCash),
		ledger:       NewLedger(64),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// StartingCash returns the initial bankroll.
func (a *Account) StartingCash() float64 { return a.startingCash }

// Buy spends amount (capped by the risk limits, then by cash) at price.
func (a *Account) Buy(amount, price float64) (execution.Trade, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, trade, err := a.state.Buy(a.limits.Cap(amount), price, a.now())
	if err != nil {
		return execution.Trade{}, err
	}
	return a.commitLocked(next, trade), nil
}

// Sell closes percentage of the open position at price.
func (a *Account) Sell(percentage, price float64) (execution.Trade, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, trade, err := a.state.Sell(percentage, price, a.now())
	if err != nil {
		return execution.Trade{}, err
	}
	return a.commitLocked(next, trade), nil
}

// Execute fills an order; it lets the account act as an execution.Book.
func (a *Account) Execute(order execution.Order) (execution.Trade, error) {
	switch order.Side {
	case execution.Buy:
		return a.Buy(order.Amount, order.Price)
	case execution.Sell:
		return a.Sell(order.Percentage, order.Price)
	default:
		return execution.Trade{}, execution.ErrUnknownSide
	}
}

// commitLocked stamps the trade ID, then applies and records the fill.
func (a *Account) commitLocked(next State, trade execution.Trade) execution.Trade {
	trade.ID = execution.NewTradeID(trade.Time)
	a.state = next
	a.ledger.Record(trade)
	if a.recorder != nil {
		a.recorder.Record(trade)
	}
	return trade
}

// State returns the current balances.
func (a *Account) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Trades returns a copy of the trade log, oldest first.
func (a *Account) Trades() []execution.Trade {
	return a.ledger.Snapshot()
}

// UnrealizedPnL marks the open position to price.
func (a *Account) UnrealizedPnL(price float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.UnrealizedPnL(price)
}

// RealizedPnL returns the PnL locked in by all sells this session.
func (a *Account) RealizedPnL() float64 {
	return RealizedPnLTotal(a.ledger.Snapshot())
}

// Snapshot returns a copy of balances marked to price.
func (a *Account) Snapshot(price float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	trades := a.ledger.Snapshot()
	return Snapshot{
		Cash:              a.state.Cash,
		OpenQuantity:      a.state.OpenQuantity,
		AverageEntryPrice: a.state.AverageEntryPrice,
		UnrealizedPnL:     a.state.UnrealizedPnL(price),
		RealizedPnL:       RealizedPnLTotal(trades),
		Equity:            a.state.Equity(price),
		Trades:            len(trades),
	}
}

// Reset returns the account to its starting cash with an empty log.
func (a *Account) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = NewState(a.startingCash)
	a.ledger.Reset()
}
