package paper

import (
	"errors"
	"math"
	"time"

	"github.com/bigbagadawgz/trenchsimulator/internal/execution"
)

var (
	// ErrInvalidAmount rejects buys that are NaN, infinite, zero or negative.
	ErrInvalidAmount = errors.New("amount must be a positive number")
	// ErrInvalidPrice rejects fills at a non-finite or non-positive price.
	ErrInvalidPrice = errors.New("price must be a positive number")
	// ErrInvalidPercentage rejects sells outside (0, 100].
	ErrInvalidPercentage = errors.New("sell percentage must be in (0, 100]")
	// ErrInsufficientFunds rejects buys when no cash is left to clamp to.
	ErrInsufficientFunds = errors.New("no cash available")
	// ErrNoOpenPosition rejects sells while flat.
	ErrNoOpenPosition = errors.New("no open position to sell")
)

// State is the ledger balance at one point in the session. Methods never
// mutate the receiver; Buy and Sell return the successor state and a trade
// without an ID, so the same inputs always produce the same result.
//
// The cost basis is kept as running sums over the buys since the last full
// exit, so AverageEntryPrice always equals AverageEntryPrice(log) bit for bit.
type State struct {
	Cash              float64 `json:"cash"`
	OpenQuantity      float64 `json:"openQuantity"`
	AverageEntryPrice float64 `json:"averageEntryPrice"`

	basisAmount float64
	basisCost   float64
}

// NewState starts flat with the given cash.
func NewState(cash float64) State {
	return State{Cash: cash}
}

// Open reports whether a position is held.
func (s State) Open() bool { return s.OpenQuantity > 0 }

// Buy spends up to amount of cash at price. Requests above the balance are
// clamped to the balance rather than rejected.
func (s State) Buy(amount, price float64, at time.Time) (State, execution.Trade, error) {
	if !positive(amount) {
		return s, execution.Trade{}, ErrInvalidAmount
	}
	if !positive(price) {
		return s, execution.Trade{}, ErrInvalidPrice
	}
	effective := math.Min(s.Cash, amount)
	if !(effective > 0) {
		return s, execution.Trade{}, ErrInsufficientFunds
	}

	next := s
	next.Cash -= effective
	next.OpenQuantity += effective
	next.basisCost += effective * price
	next.basisAmount += effective
	next.AverageEntryPrice = next.basisCost / next.basisAmount

	trade := execution.Trade{
		Side:   execution.Buy,
		Amount: effective,
		Price:  price,
		Time:   at,
	}
	return next, trade, nil
}

// Sell closes percentage of the open position at price. PnL is realized in
// proportion to the fraction closed against the average entry price; a 100%
// sell is a full exit and starts a fresh cost basis.
func (s State) Sell(percentage, price float64, at time.Time) (State, execution.Trade, error) {
	if !s.Open() {
		return s, execution.Trade{}, ErrNoOpenPosition
	}
	if !(percentage > 0 && percentage <= 100) {
		return s, execution.Trade{}, ErrInvalidPercentage
	}
	if !positive(price) {
		return s, execution.Trade{}, ErrInvalidPrice
	}

	sellAmount := s.OpenQuantity * percentage / 100
	realized := s.UnrealizedPnL(price) * percentage / 100
	fullExit := percentage == 100

	next := s
	next.Cash += sellAmount + realized
	if fullExit {
		next.OpenQuantity = 0
		next.AverageEntryPrice = 0
		next.basisAmount = 0
		next.basisCost = 0
	} else {
		next.OpenQuantity -= sellAmount
	}

	trade := execution.Trade{
		Side:        execution.Sell,
		Amount:      sellAmount,
		Price:       price,
		Time:        at,
		RealizedPnL: &realized,
		FullExit:    fullExit,
	}
	return next, trade, nil
}

// UnrealizedPnL marks the whole open position to price.
func (s State) UnrealizedPnL(price float64) float64 {
	if s.OpenQuantity <= 0 || s.AverageEntryPrice <= 0 {
		return 0
	}
	return s.OpenQuantity * (price - s.AverageEntryPrice) / s.AverageEntryPrice
}

// Equity is cash plus the marked value of the position. Quantities are
// denominated in cash units, so the position is worth its size plus its PnL.
func (s State) Equity(price float64) float64 {
	return s.Cash + s.OpenQuantity + s.UnrealizedPnL(price)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
