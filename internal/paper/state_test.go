package paper

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigbagadawgz/trenchsimulator/internal/execution"
)

func TestScenarioPartialAndFullExit(t *testing.T) {
	now := time.Now()
	s := NewState(200)

	s, buy1, err := s.Buy(50, 100, now)
	require.NoError(t, err)
	assert.Equal(t, 150.0, s.Cash)
	assert.Equal(t, 50.0, s.OpenQuantity)
	assert.Equal(t, 100.0, s.AverageEntryPrice)
	assert.Nil(t, buy1.RealizedPnL)
	assert.False(t, buy1.FullExit)

	s, _, err = s.Buy(30, 120, now)
	require.NoError(t, err)
	assert.Equal(t, 80.0, s.OpenQuantity)
	assert.InDelta(t, 107.5, s.AverageEntryPrice, 1e-12)

	s, sell1, err := s.Sell(50, 120, now)
	require.NoError(t, err)
	pnl, ok := sell1.PnL()
	require.True(t, ok)
	assert.InDelta(t, 4.651162790697675, pnl, 1e-9)
	assert.InDelta(t, 40, sell1.Amount, 1e-12)
	assert.InDelta(t, 120+40+4.651162790697675, s.Cash, 1e-9)
	assert.InDelta(t, 40, s.OpenQuantity, 1e-12)
	assert.InDelta(t, 107.5, s.AverageEntryPrice, 1e-12, "partial sell keeps the cost basis")
	assert.False(t, sell1.FullExit)

	s, sell2, err := s.Sell(100, 130, now)
	require.NoError(t, err)
	assert.True(t, sell2.FullExit)
	assert.Equal(t, 0.0, s.OpenQuantity)
	assert.Equal(t, 0.0, s.AverageEntryPrice)
	pnl2, _ := sell2.PnL()
	assert.InDelta(t, 40*(130-107.5)/107.5, pnl2, 1e-9)
	assert.InDelta(t, 200+4.651162790697675+pnl2, s.Cash, 1e-9)
}

func TestReducersAreDeterministic(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewState(200)

	next1, buy1, err := s.Buy(50, 100, at)
	require.NoError(t, err)
	next2, buy2, err := s.Buy(50, 100, at)
	require.NoError(t, err)
	assert.Equal(t, next1, next2)
	assert.Equal(t, buy1, buy2)
	assert.Empty(t, buy1.ID)

	_, sell1, err := next1.Sell(40, 110, at)
	require.NoError(t, err)
	_, sell2, err := next1.Sell(40, 110, at)
	require.NoError(t, err)
	assert.Equal(t, sell1, sell2)
}

func TestBuyClampsToAvailableCash(t *testing.T) {
	s := NewState(30)
	next, trade, err := s.Buy(50, 100, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 30.0, trade.Amount)
	assert.Equal(t, 0.0, next.Cash)
	assert.Equal(t, 30.0, next.OpenQuantity)

	_, _, err = next.Buy(10, 100, time.Now())
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestBuyRejectsInvalidInput(t *testing.T) {
	s := NewState(100)
	for _, amount := range []float64{0, -5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		next, trade, err := s.Buy(amount, 100, time.Now())
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %v", amount)
		assert.Equal(t, s, next)
		assert.Empty(t, trade.ID)
	}
	for _, price := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, _, err := s.Buy(10, price, time.Now())
		assert.ErrorIs(t, err, ErrInvalidPrice, "price %v", price)
	}
}

func TestSellRejections(t *testing.T) {
	flat := NewState(100)
	next, _, err := flat.Sell(100, 100, time.Now())
	assert.ErrorIs(t, err, ErrNoOpenPosition)
	assert.Equal(t, flat, next)

	open, _, err := flat.Buy(50, 100, time.Now())
	require.NoError(t, err)
	for _, pct := range []float64{0, -10, 100.5, math.NaN()} {
		next, _, err := open.Sell(pct, 100, time.Now())
		assert.ErrorIs(t, err, ErrInvalidPercentage, "pct %v", pct)
		assert.Equal(t, open, next)
	}
	_, _, err = open.Sell(50, math.NaN(), time.Now())
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestFullExitStartsFreshCostBasis(t *testing.T) {
	now := time.Now()
	var log []execution.Trade
	s := NewState(1000)

	step := func(next State, trade execution.Trade, err error) {
		t.Helper()
		require.NoError(t, err)
		s = next
		log = append(log, trade)
	}

	step(s.Buy(100, 50, now))
	step(s.Buy(100, 150, now))
	step(s.Sell(100, 90, now))
	require.Equal(t, 0.0, s.AverageEntryPrice)
	require.Equal(t, 0.0, AverageEntryPrice(log))

	step(s.Buy(40, 20, now))
	assert.Equal(t, 20.0, s.AverageEntryPrice, "pre-exit buys must not leak into the new basis")
	assert.Equal(t, 20.0, AverageEntryPrice(log))
}

func TestAverageAfterPartialSellFollowsBuysNotQuantity(t *testing.T) {
	now := time.Now()
	s := NewState(1000)
	s, _, _ = s.Buy(50, 100, now)
	s, _, _ = s.Sell(50, 100, now)
	s, _, _ = s.Buy(25, 200, now)

	// buys since the last full exit: 50@100 and 25@200
	assert.InDelta(t, (50*100.0+25*200.0)/75, s.AverageEntryPrice, 1e-12)
	assert.InDelta(t, 50, s.OpenQuantity, 1e-12)
}

func TestIncrementalBasisMatchesLogAcrossRandomSessions(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	percentages := []float64{25, 50, 75, 100, 10, 33}

	for session := 0; session < 50; session++ {
		s := NewState(200 + rng.Float64()*800)
		var log []execution.Trade
		var soldPnL float64
		price := 100.0

		for i := 0; i < 200; i++ {
			price = math.Max(1, price+(rng.Float64()-0.5)*10)
			var (
				next  State
				trade execution.Trade
				err   error
			)
			if rng.Float64() < 0.55 {
				next, trade, err = s.Buy(rng.Float64()*120, price, time.Now())
			} else {
				next, trade, err = s.Sell(percentages[rng.Intn(len(percentages))], price, time.Now())
			}
			if err != nil {
				require.Equal(t, s, next, "rejection must leave state untouched")
				continue
			}
			if pnl, ok := trade.PnL(); ok {
				soldPnL += pnl
			}
			s = next
			log = append(log, trade)

			if s.AverageEntryPrice != AverageEntryPrice(log) {
				t.Fatalf("session %d step %d: incremental %.17g != recomputed %.17g",
					session, i, s.AverageEntryPrice, AverageEntryPrice(log))
			}
			if s.Cash < -1e-9 || s.OpenQuantity < -1e-9 {
				t.Fatalf("session %d step %d: negative balance %+v", session, i, s)
			}
		}
		assert.Equal(t, soldPnL, RealizedPnLTotal(log))
	}
}

func TestUnrealizedAndEquity(t *testing.T) {
	s := NewState(200)
	assert.Equal(t, 0.0, s.UnrealizedPnL(150))
	assert.Equal(t, 200.0, s.Equity(150))

	s, _, _ = s.Buy(100, 100, time.Now())
	assert.InDelta(t, 50, s.UnrealizedPnL(150), 1e-12)
	assert.InDelta(t, 250, s.Equity(150), 1e-12)
	assert.InDelta(t, -50, s.UnrealizedPnL(50), 1e-12)
}
