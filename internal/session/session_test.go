package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigbagadawgz/trenchsimulator/internal/leaderboard"
	"github.com/bigbagadawgz/trenchsimulator/internal/paper"
)

// cycle replays the same draws forever.
type cycle struct {
	mu    sync.Mutex
	draws []float64
	i     int
}

func (c *cycle) Float64() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.draws[c.i%len(c.draws)]
	c.i++
	return v
}

// flat keeps every close equal to its open.
func flat() *cycle { return &cycle{draws: []float64{0.5}} }

// rising adds exactly 2.5 to the close each tick (volatility 10, no bias, no spike).
func rising() *cycle {
	return &cycle{draws: []float64{0.5, 1, 0.5, 0.5, 0.75, 0.5, 0, 0}}
}

type sinkStub struct {
	mu     sync.Mutex
	scores []leaderboard.Score
	err    error
}

func (s *sinkStub) Publish(_ context.Context, score leaderboard.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = append(s.scores, score)
	return s.err
}

func (s *sinkStub) all() []leaderboard.Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]leaderboard.Score(nil), s.scores...)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Username = "alice"
	opts.TickInterval = 5 * time.Millisecond
	return opts
}

func TestNewSeedsGenesis(t *testing.T) {
	s := New(testOptions(), WithSource(flat()))
	view := s.Snapshot()

	require.Len(t, view.History, 1)
	g := view.History[0]
	assert.Equal(t, 100.0, g.Open)
	assert.Equal(t, 100.0, g.High)
	assert.Equal(t, 100.0, g.Low)
	assert.Equal(t, 100.0, g.Close)
	assert.Equal(t, 100.0, view.CurrentPrice)
	assert.Equal(t, 200.0, view.State.Cash)
	assert.Equal(t, 100000.0, view.MarketCap)
	assert.Equal(t, 200.0, view.Equity)
	assert.NotEmpty(t, view.ID)
	assert.Empty(t, view.Trades)
}

func TestOnTickAppendsOneCandle(t *testing.T) {
	s := New(testOptions(), WithSource(rising()))

	c, err := s.OnTick()
	require.NoError(t, err)
	assert.Equal(t, 100.0, c.Open)
	assert.InDelta(t, 102.5, c.Close, 1e-9)
	assert.InDelta(t, 102.5, s.CurrentPrice(), 1e-9)

	view := s.Snapshot()
	require.Len(t, view.History, 2)
	assert.Equal(t, view.History[0].Close, view.History[1].Open)
}

func TestHistoryStaysBounded(t *testing.T) {
	opts := testOptions()
	opts.HistorySize = 10
	s := New(opts, WithSource(flat()))
	for i := 0; i < 25; i++ {
		_, err := s.OnTick()
		require.NoError(t, err)
	}
	assert.Len(t, s.Snapshot().History, 10)
}

func TestBuyTickSellPublishesScore(t *testing.T) {
	sink := &sinkStub{}
	s := New(testOptions(), WithSource(rising()), WithScoreSink(sink))

	buy, err := s.Buy(50)
	require.NoError(t, err)
	assert.Equal(t, 100.0, buy.Price)

	_, err = s.OnTick()
	require.NoError(t, err)

	sell, err := s.Sell(100)
	require.NoError(t, err)
	pnl, ok := sell.PnL()
	require.True(t, ok)
	assert.InDelta(t, 1.25, pnl, 1e-9)
	assert.True(t, sell.FullExit)

	view := s.Snapshot()
	assert.InDelta(t, 201.25, view.State.Cash, 1e-9)
	assert.Equal(t, 0.0, view.State.OpenQuantity)
	assert.Len(t, view.Trades, 2)

	scores := sink.all()
	require.Len(t, scores, 1)
	assert.Equal(t, "alice", scores[0].Username)
	assert.InDelta(t, 1.25, scores[0].CumulativeRealizedPnL, 1e-9)
}

func TestViewTradesAreDetachedFromLedger(t *testing.T) {
	sink := &sinkStub{}
	s := New(testOptions(), WithSource(rising()), WithScoreSink(sink))

	_, err := s.Buy(50)
	require.NoError(t, err)
	_, err = s.OnTick()
	require.NoError(t, err)
	_, err = s.Sell(50)
	require.NoError(t, err)

	view := s.Snapshot()
	require.InDelta(t, 0.625, view.RealizedPnL, 1e-9)
	for _, trade := range view.Trades {
		if trade.RealizedPnL != nil {
			*trade.RealizedPnL = 1e6
		}
	}
	assert.InDelta(t, 0.625, s.Snapshot().RealizedPnL, 1e-9)

	_, err = s.Sell(100)
	require.NoError(t, err)
	scores := sink.all()
	require.Len(t, scores, 2)
	assert.InDelta(t, 1.25, scores[1].CumulativeRealizedPnL, 1e-9)
}

func TestRejectedSellDoesNotPublish(t *testing.T) {
	sink := &sinkStub{}
	s := New(testOptions(), WithSource(flat()), WithScoreSink(sink))

	_, err := s.Sell(50)
	assert.ErrorIs(t, err, paper.ErrNoOpenPosition)
	assert.Empty(t, sink.all())
	assert.Empty(t, s.Snapshot().Trades)
}

func TestSinkErrorDoesNotFailSell(t *testing.T) {
	sink := &sinkStub{err: errors.New("db down")}
	s := New(testOptions(), WithSource(flat()), WithScoreSink(sink))

	_, err := s.Buy(20)
	require.NoError(t, err)
	_, err = s.Sell(50)
	require.NoError(t, err)
	assert.Len(t, sink.all(), 1)
}

func TestStopIsIdempotentAndFreezesState(t *testing.T) {
	s := New(testOptions(), WithSource(flat()))
	_, err := s.Buy(10)
	require.NoError(t, err)

	s.Stop()
	s.Stop()
	before := s.Snapshot()

	_, err = s.OnTick()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Buy(10)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Sell(100)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Reset(), ErrClosed)
	assert.ErrorIs(t, s.Run(context.Background()), ErrClosed)

	assert.Equal(t, before, s.Snapshot())
}

func TestRunTicksUntilStop(t *testing.T) {
	s := New(testOptions(), WithSource(flat()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return len(s.Snapshot().History) >= 4 }, time.Second, time.Millisecond)
	s.Stop()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.False(t, s.Running())

	frozen := len(s.Snapshot().History)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frozen, len(s.Snapshot().History))
}

func TestRunReturnsContextError(t *testing.T) {
	s := New(testOptions(), WithSource(flat()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
}

func TestRunRejectsSecondLoop(t *testing.T) {
	s := New(testOptions(), WithSource(flat()))
	go func() { _ = s.Run(context.Background()) }()
	require.Eventually(t, s.Running, time.Second, time.Millisecond)

	assert.ErrorIs(t, s.Run(context.Background()), ErrRunning)
	s.Stop()
}

func TestResetRestoresGenesisAndStaysUsable(t *testing.T) {
	s := New(testOptions(), WithSource(rising()))
	go func() { _ = s.Run(context.Background()) }()
	require.Eventually(t, func() bool { return len(s.Snapshot().History) >= 3 }, time.Second, time.Millisecond)
	_, err := s.Buy(60)
	require.NoError(t, err)

	require.NoError(t, s.Reset())
	assert.False(t, s.Running())

	view := s.Snapshot()
	require.Len(t, view.History, 1)
	assert.Equal(t, 100.0, view.CurrentPrice)
	assert.Equal(t, 200.0, view.State.Cash)
	assert.Equal(t, 0.0, view.State.OpenQuantity)
	assert.Empty(t, view.Trades)

	_, err = s.OnTick()
	require.NoError(t, err)
	_, err = s.Buy(10)
	require.NoError(t, err)
	s.Stop()
}

func TestRunRedrawsThroughRenderer(t *testing.T) {
	var draws atomic.Int32
	opts := testOptions()
	opts.TickInterval = time.Hour
	opts.RedrawInterval = 2 * time.Millisecond
	s := New(opts, WithSource(flat()), WithRenderer(RendererFunc(func(v View) {
		if len(v.History) > 0 {
			draws.Add(1)
		}
	})))

	go func() { _ = s.Run(context.Background()) }()
	require.Eventually(t, func() bool { return draws.Load() >= 2 }, time.Second, time.Millisecond)
	s.Stop()

	after := draws.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, draws.Load())
}

func TestBuyRespectsRiskCap(t *testing.T) {
	opts := testOptions()
	opts.Limits.MaxAmountPerTrade = 25
	s := New(opts, WithSource(flat()))

	trade, err := s.Buy(80)
	require.NoError(t, err)
	assert.Equal(t, 25.0, trade.Amount)
}
