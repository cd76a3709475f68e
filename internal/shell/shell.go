// Package shell is the line-oriented game console: it parses player commands,
// forwards them to a session and prints the results.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bigbagadawgz/trenchsimulator/internal/exchange"
	"github.com/bigbagadawgz/trenchsimulator/internal/leaderboard"
	"github.com/bigbagadawgz/trenchsimulator/internal/session"
	"github.com/bigbagadawgz/trenchsimulator/internal/strategy"
	"github.com/bigbagadawgz/trenchsimulator/internal/util"
)

// ErrUnknownCommand is returned for input the shell does not understand.
var ErrUnknownCommand = errors.New("unknown command")

// maxCount bounds the n of tick, history and chart.
const maxCount = 10000

// Ranker serves the leaderboard.
type Ranker interface {
	Top(ctx context.Context, n int) ([]leaderboard.Entry, error)
}

// Config wires optional collaborators into a Shell.
type Config struct {
	DefaultBuy float64
	TopN       int
	ChartWidth int
	// AutoTick runs the session loop in the background while the shell reads input.
	AutoTick bool
	Ranker   Ranker
	Ticker   *exchange.Board
	Trend    *strategy.TrendFollower
	Log      zerolog.Logger
}

// Shell reads commands and drives one session.
type Shell struct {
	sess    *session.Session
	console *Console
	cfg     Config

	wg sync.WaitGroup
}

const help = `commands:
  buy [amount]     spend cash at the current price (default %s)
  sell [pct]       sell a percentage of the position (default 100)
  stats            account summary
  history [n]      trades, newest first
  chart [n]        sparkline of the last n closes
  tick [n]         advance the market n candles
  hint             trend read of the recent chart
  top              leaderboard
  ticker           external quotes
  reset            start over with fresh cash
  quit             leave the game
`

// New builds a shell around sess that prints to console.
func New(sess *session.Session, console *Console, cfg Config) *Shell {
	if cfg.DefaultBuy <= 0 {
		cfg.DefaultBuy = 50
	}
	if cfg.TopN <= 0 {
		cfg.TopN = leaderboard.DefaultTopN
	}
	if cfg.ChartWidth <= 0 {
		cfg.ChartWidth = 60
	}
	if cfg.Trend == nil {
		cfg.Trend = strategy.NewTrendFollower(0.05, 20, 0)
	}
	return &Shell{sess: sess, console: console, cfg: cfg}
}

// Run reads commands from in until quit, EOF or ctx ends, then stops the session.
func (sh *Shell) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer sh.wg.Wait()
	defer sh.sess.Stop()

	sh.startLoop(ctx)
	sh.console.Printf(help, util.FormatAmount(sh.cfg.DefaultBuy))
	sh.console.Stats(sh.sess.Snapshot())

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		sh.console.Printf("\n> ")
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			quit, err := sh.Exec(ctx, line)
			if err != nil {
				sh.console.Printf("! %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func (sh *Shell) startLoop(ctx context.Context) {
	if !sh.cfg.AutoTick {
		return
	}
	sh.wg.Add(1)
	go func() {
		defer sh.wg.Done()
		if err := sh.sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, session.ErrClosed) {
			sh.cfg.Log.Error().Err(err).Msg("session loop ended")
		}
	}()
}

// Exec runs a single command line. quit reports whether the player asked to leave.
func (sh *Shell) Exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "buy", "b":
		amount, err := numberArg(args, sh.cfg.DefaultBuy)
		if err != nil {
			return false, err
		}
		trade, err := sh.sess.Buy(amount)
		if err != nil {
			return false, fmt.Errorf("buy rejected: %w", err)
		}
		sh.console.Printf("BUY %s @ %s\n", util.FormatAmount(trade.Amount), util.FormatAmount(trade.Price))

	case "sell", "s":
		pct, err := numberArg(args, 100)
		if err != nil {
			return false, err
		}
		trade, err := sh.sess.Sell(pct)
		if err != nil {
			return false, fmt.Errorf("sell rejected: %w", err)
		}
		pnl, _ := trade.PnL()
		sh.console.Printf("SELL %s @ %s  pnl %s\n",
			util.FormatAmount(trade.Amount), util.FormatAmount(trade.Price), util.FormatPnL(pnl))

	case "stats", "status":
		sh.console.Stats(sh.sess.Snapshot())

	case "history", "h":
		n, err := countArg(args, 0)
		if err != nil {
			return false, err
		}
		sh.console.History(sh.sess.Snapshot(), n)

	case "chart", "c":
		n, err := countArg(args, sh.cfg.ChartWidth)
		if err != nil {
			return false, err
		}
		sh.console.Chart(sh.sess.Snapshot(), n)

	case "tick", "t":
		n, err := countArg(args, 1)
		if err != nil {
			return false, err
		}
		for i := 0; i < n; i++ {
			if _, err := sh.sess.OnTick(); err != nil {
				return false, err
			}
		}
		sh.console.Printf("%s\n", statusLine(sh.sess.Snapshot()))

	case "hint":
		sig := sh.cfg.Trend.Evaluate(sh.sess.Snapshot().History)
		if sig == nil {
			sh.console.Printf("no clear trend\n")
			break
		}
		bias := "SHORT"
		if sig.Long() {
			bias = "LONG"
		}
		sh.console.Printf("%s bias: %s\n", bias, sig.Reason)

	case "top", "leaderboard":
		if sh.cfg.Ranker == nil {
			return false, errors.New("leaderboard disabled")
		}
		entries, err := sh.cfg.Ranker.Top(ctx, sh.cfg.TopN)
		if err != nil {
			return false, err
		}
		sh.console.Leaderboard(entries)

	case "ticker":
		if sh.cfg.Ticker == nil {
			return false, errors.New("ticker disabled")
		}
		sh.console.Ticker(sh.cfg.Ticker.Lines())

	case "reset":
		if err := sh.sess.Reset(); err != nil {
			return false, err
		}
		sh.wg.Wait()
		sh.startLoop(ctx)
		sh.console.Printf("game reset\n")
		sh.console.Stats(sh.sess.Snapshot())

	case "help", "?":
		sh.console.Printf(help, util.FormatAmount(sh.cfg.DefaultBuy))

	case "quit", "exit", "q":
		return true, nil

	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
	return false, nil
}

// numberArg parses the first argument as a finite number, accepting a trailing "%".
func numberArg(args []string, fallback float64) (float64, error) {
	if len(args) == 0 {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "%"), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a number: %q", args[0])
	}
	return v, nil
}

// countArg parses the first argument as a whole count in [0, maxCount].
func countArg(args []string, fallback int) (int, error) {
	if len(args) == 0 {
		return fallback, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("not a count: %q", args[0])
	}
	if n < 0 || n > maxCount {
		return 0, fmt.Errorf("count %d out of range [0, %d]", n, maxCount)
	}
	return n, nil
}
