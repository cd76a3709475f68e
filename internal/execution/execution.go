// Package execution carries orders from the session to the paper ledger.
package execution

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/bigbagadawgz/trenchsimulator/internal/metrics"
)

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy opens or adds to the long position.
	Buy Side = "BUY"
	// Sell closes part or all of the long position.
	Sell Side = "SELL"
)

// ErrUnknownSide is returned for orders whose side is neither Buy nor Sell.
var ErrUnknownSide = errors.New("unknown order side")

// Order represents a placement request the executor can process.
// Buys size by Amount (cash units); sells size by Percentage of the open position.
type Order struct {
	Side       Side
	Amount     float64
	Percentage float64
	Price      float64
}

// Trade is an immutable record of an executed order.
type Trade struct {
	ID     string    `json:"id"`
	Side   Side      `json:"side"`
	Amount float64   `json:"amount"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"timestamp"`
	// RealizedPnL is nil for buys.
	RealizedPnL *float64 `json:"realizedPnl,omitempty"`
	FullExit    bool     `json:"isFullExit"`
}

// PnL returns the realized PnL and whether the trade carries one.
func (t Trade) PnL() (float64, bool) {
	if t.RealizedPnL == nil {
		return 0, false
	}
	return *t.RealizedPnL, true
}

// Clone returns a copy that shares no storage with t.
func (t Trade) Clone() Trade {
	if t.RealizedPnL != nil {
		pnl := *t.RealizedPnL
		t.RealizedPnL = &pnl
	}
	return t
}

// Book is the ledger an executor fills orders against.
type Book interface {
	Execute(Order) (Trade, error)
}

// Executor submits orders to a book, logging and counting each outcome.
type Executor struct {
	log  zerolog.Logger
	book Book
}

// NewExecutor wraps a zerolog logger and the book orders are filled against.
func NewExecutor(log zerolog.Logger, book Book) *Executor {
	return &Executor{log: log, book: book}
}

// Submit forwards the order to the book. Rejections are logged at warn level and returned unchanged.
func (executor *Executor) Submit(order Order) (Trade, error) {
	if order.Side != Buy && order.Side != Sell {
		metrics.OrdersTotal.WithLabelValues(string(order.Side), "rejected").Inc()
		return Trade{}, ErrUnknownSide
	}

	trade, err := executor.book.Execute(order)
	if err != nil {
		metrics.OrdersTotal.WithLabelValues(string(order.Side), "rejected").Inc()
		executor.log.Warn().Err(err).Str("side", string(order.Side)).Float64("amount", order.Amount).
			Float64("pct", order.Percentage).Float64("px", order.Price).Msg("order rejected")
		return Trade{}, err
	}

	metrics.OrdersTotal.WithLabelValues(string(order.Side), "filled").Inc()
	event := executor.log.Info().Str("id", trade.ID).Str("side", string(trade.Side)).
		Float64("amount", trade.Amount).Float64("px", trade.Price)
	if pnl, ok := trade.PnL(); ok {
		event = event.Float64("pnl", pnl).Bool("full_exit", trade.FullExit)
	}
	event.Msg("order filled")
	return trade, nil
}
