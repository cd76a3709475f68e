// Package session runs one trading game: a ticking price process, the paper
// account the player trades against, and the loop that drives both.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bigbagadawgz/trenchsimulator/internal/execution"
	"github.com/bigbagadawgz/trenchsimulator/internal/leaderboard"
	"github.com/bigbagadawgz/trenchsimulator/internal/market"
	"github.com/bigbagadawgz/trenchsimulator/internal/metrics"
	"github.com/bigbagadawgz/trenchsimulator/internal/paper"
	"github.com/bigbagadawgz/trenchsimulator/internal/risk"
)

// MarketCapMultiplier converts a price into the displayed market cap.
const MarketCapMultiplier = 1000

var (
	// ErrClosed is returned by every mutating call once Stop has run.
	ErrClosed = errors.New("session closed")
	// ErrRunning is returned when Run is called while a loop is already active.
	ErrRunning = errors.New("session loop already running")
)

// Renderer draws a view of the session. It is called from the loop goroutine.
type Renderer interface {
	Render(View)
}

// RendererFunc adapts a plain function to Renderer.
type RendererFunc func(View)

// Render calls f(v).
func (f RendererFunc) Render(v View) { f(v) }

// ScoreSink receives the player's cumulative realized PnL after each sell.
type ScoreSink interface {
	Publish(ctx context.Context, score leaderboard.Score) error
}

// Options holds the game settings.
type Options struct {
	InitialPrice   float64
	StartingCash   float64
	HistorySize    int
	TickInterval   time.Duration
	RedrawInterval time.Duration
	Username       string
	Params         market.Params
	Limits         risk.Limits
}

// DefaultOptions returns the reference game: price 100, 200 cash, 500 ms ticks.
func DefaultOptions() Options {
	return Options{
		InitialPrice: 100,
		StartingCash: 200,
		HistorySize:  market.DefaultHistorySize,
		TickInterval: 500 * time.Millisecond,
		Params:       market.DefaultParams(),
	}
}

func (o Options) withDefaults() Options {
	if o.InitialPrice <= 0 {
		o.InitialPrice = 100
	}
	if o.HistorySize <= 0 {
		o.HistorySize = market.DefaultHistorySize
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 500 * time.Millisecond
	}
	return o
}

// View is a copy of everything a renderer needs.
type View struct {
	ID            string
	Username      string
	History       []market.Candle
	Trades        []execution.Trade
	CurrentPrice  float64
	State         paper.State
	UnrealizedPnL float64
	RealizedPnL   float64
	Equity        float64
	MarketCap     float64
	StartingCash  float64
}

// Option customises a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithSource replaces the random source of the price process.
func WithSource(src market.Source) Option {
	return func(s *Session) {
		if src != nil {
			s.source = src
		}
	}
}

// WithClock replaces time.Now for candles and trades.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithScoreSink publishes scores to sink after each sell.
func WithScoreSink(sink ScoreSink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithRenderer installs the renderer the redraw loop calls.
func WithRenderer(r Renderer) Option {
	return func(s *Session) { s.renderer = r }
}

// WithRecorder mirrors every accepted trade to r.
func WithRecorder(r paper.TradeRecorder) Option {
	return func(s *Session) { s.recorder = r }
}

// Session owns the price process, the candle window and the paper account.
type Session struct {
	id       string
	opts     Options
	log      zerolog.Logger
	source   market.Source
	now      func() time.Time
	sink     ScoreSink
	renderer Renderer
	recorder paper.TradeRecorder

	mu       sync.Mutex
	process  *market.Process
	history  *market.History
	account  *paper.Account
	executor *execution.Executor
	price    float64
	closed   bool

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a session seeded with the genesis candle.
func New(opts Options, options ...Option) *Session {
	s := &Session{
		id:   uuid.NewString(),
		opts: opts.withDefaults(),
		log:  zerolog.Nop(),
		now:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.source == nil {
		s.source = market.NewSource(0)
	}
	s.log = s.log.With().Str("session", s.id).Logger()

	s.process = market.NewProcess(s.source, market.WithParams(s.opts.Params), market.WithClock(s.now))
	s.history = market.NewHistory(s.opts.HistorySize)

	accountOpts := []paper.AccountOption{paper.WithLimits(s.opts.Limits), paper.WithClock(s.now)}
	if s.recorder != nil {
		accountOpts = append(accountOpts, paper.WithRecorder(s.recorder))
	}
	s.account = paper.NewAccount(s.opts.StartingCash, accountOpts...)
	s.executor = execution.NewExecutor(s.log, s.account)

	s.seedLocked()
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Options returns the effective settings.
func (s *Session) Options() Options { return s.opts }

func (s *Session) seedLocked() {
	genesis := market.Genesis(s.opts.InitialPrice, s.now())
	s.history.Reset()
	s.history.Append(genesis)
	s.price = genesis.Close
	metrics.LastPrice.Set(s.price)
	s.publishGaugesLocked()
}

// OnTick generates exactly one candle from the newest one and makes its close the current price.
func (s *Session) OnTick() (market.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return market.Candle{}, ErrClosed
	}

	prev, ok := s.history.Last()
	if !ok {
		prev = market.Genesis(s.opts.InitialPrice, s.now())
	}
	candle := s.process.Next(prev)
	s.history.Append(candle)
	s.price = candle.Close

	metrics.CandlesTotal.Inc()
	metrics.LastPrice.Set(candle.Close)
	return candle, nil
}

// CurrentPrice is the close of the newest candle.
func (s *Session) CurrentPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.price
}

// Buy spends amount of cash at the current price.
func (s *Session) Buy(amount float64) (execution.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return execution.Trade{}, ErrClosed
	}
	trade, err := s.executor.Submit(execution.Order{Side: execution.Buy, Amount: amount, Price: s.price})
	if err != nil {
		return execution.Trade{}, err
	}
	s.publishGaugesLocked()
	return trade, nil
}

// Sell closes percentage of the open position at the current price, then
// publishes the player's cumulative realized PnL.
func (s *Session) Sell(percentage float64) (execution.Trade, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return execution.Trade{}, ErrClosed
	}
	trade, err := s.executor.Submit(execution.Order{Side: execution.Sell, Percentage: percentage, Price: s.price})
	if err != nil {
		s.mu.Unlock()
		return execution.Trade{}, err
	}
	s.publishGaugesLocked()
	score := leaderboard.Score{Username: s.opts.Username, CumulativeRealizedPnL: s.account.RealizedPnL()}
	s.mu.Unlock()

	s.publishScore(score)
	return trade, nil
}

func (s *Session) publishScore(score leaderboard.Score) {
	if s.sink == nil || score.Username == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.sink.Publish(ctx, score); err != nil {
		s.log.Error().Err(err).Str("user", score.Username).Msg("publish score failed")
		return
	}
	s.log.Debug().Str("user", score.Username).Float64("pnl", score.CumulativeRealizedPnL).Msg("score published")
}

func (s *Session) publishGaugesLocked() {
	state := s.account.State()
	metrics.Cash.Set(state.Cash)
	metrics.OpenQuantity.Set(state.OpenQuantity)
	metrics.RealizedPnL.Set(s.account.RealizedPnL())
}

// Snapshot copies the current game state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.account.Snapshot(s.price)
	return View{
		ID:            s.id,
		Username:      s.opts.Username,
		History:       s.history.Candles(),
		Trades:        s.account.Trades(),
		CurrentPrice:  s.price,
		State:         s.account.State(),
		UnrealizedPnL: snap.UnrealizedPnL,
		RealizedPnL:   snap.RealizedPnL,
		Equity:        snap.Equity,
		MarketCap:     s.price * MarketCapMultiplier,
		StartingCash:  s.account.StartingCash(),
	}
}

// Run ticks the price process every TickInterval and, when a renderer is set
// and RedrawInterval is positive, redraws on its own cadence. It returns nil
// when halted by Stop or Reset and ctx.Err() when ctx ends.
func (s *Session) Run(ctx context.Context) error {
	s.loopMu.Lock()
	if s.isClosed() {
		s.loopMu.Unlock()
		return ErrClosed
	}
	if s.done != nil {
		s.loopMu.Unlock()
		return ErrRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.loopMu.Unlock()

	defer func() {
		s.loopMu.Lock()
		if s.done == done {
			s.cancel, s.done = nil, nil
		}
		s.loopMu.Unlock()
		close(done)
	}()
	defer cancel()

	tick := time.NewTicker(s.opts.TickInterval)
	defer tick.Stop()

	var redraw <-chan time.Time
	if s.renderer != nil && s.opts.RedrawInterval > 0 {
		redrawTicker := time.NewTicker(s.opts.RedrawInterval)
		defer redrawTicker.Stop()
		redraw = redrawTicker.C
	}

	s.log.Info().Dur("tick", s.opts.TickInterval).Dur("redraw", s.opts.RedrawInterval).Msg("session loop started")
	for {
		select {
		case <-loopCtx.Done():
			s.log.Info().Msg("session loop stopped")
			return ctx.Err()
		case <-tick.C:
			if _, err := s.OnTick(); err != nil {
				return nil
			}
		case <-redraw:
			s.renderer.Render(s.Snapshot())
		}
	}
}

// Running reports whether a loop is active.
func (s *Session) Running() bool {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	return s.done != nil
}

// halt cancels the active loop and waits until it has exited.
func (s *Session) halt() {
	s.loopMu.Lock()
	cancel, done := s.cancel, s.done
	s.loopMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stop ends the session. It is idempotent; once it returns no tick or redraw
// runs and every mutating call reports ErrClosed.
func (s *Session) Stop() {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()

	s.halt()
	if !already {
		s.log.Info().Msg("session stopped")
	}
}

// Reset halts the loop and restarts the game from the genesis candle with
// the starting cash and an empty trade log. The session stays usable.
func (s *Session) Reset() error {
	if s.isClosed() {
		return ErrClosed
	}
	s.halt()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.account.Reset()
	s.seedLocked()
	s.log.Info().Float64("cash", s.opts.StartingCash).Float64("price", s.price).Msg("session reset")
	return nil
}
