package shell

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/olekukonko/tablewriter"

	"github.com/bigbagadawgz/trenchsimulator/internal/exchange"
	"github.com/bigbagadawgz/trenchsimulator/internal/leaderboard"
	"github.com/bigbagadawgz/trenchsimulator/internal/market"
	"github.com/bigbagadawgz/trenchsimulator/internal/session"
	"github.com/bigbagadawgz/trenchsimulator/internal/util"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Console writes game views to a terminal. It implements session.Renderer.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole returns a console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Render prints a one-line status, overwriting the current terminal line.
func (c *Console) Render(v session.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "\r\033[K%s", statusLine(v))
}

func statusLine(v session.View) string {
	return fmt.Sprintf("px %s | mcap %s | cash %s | pos %s @ %s | uPnL %s | rPnL %s",
		util.FormatAmount(v.CurrentPrice),
		util.FormatMarketCap(v.CurrentPrice),
		util.FormatAmount(v.State.Cash),
		util.FormatAmount(v.State.OpenQuantity),
		util.FormatAmount(v.State.AverageEntryPrice),
		util.FormatPnL(v.UnrealizedPnL),
		util.FormatPnL(v.RealizedPnL),
	)
}

// Printf writes a plain message line.
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Stats prints the account summary table.
func (c *Console) Stats(v session.View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	table.Append("Price", util.FormatAmount(v.CurrentPrice))
	table.Append("Market cap", util.FormatMarketCap(v.CurrentPrice))
	table.Append("Cash", util.FormatAmount(v.State.Cash))
	table.Append("Position", util.FormatAmount(v.State.OpenQuantity))
	table.Append("Avg entry", util.FormatAmount(v.State.AverageEntryPrice))
	table.Append("Unrealized PnL", util.FormatPnL(v.UnrealizedPnL))
	table.Append("Realized PnL", util.FormatPnL(v.RealizedPnL))
	table.Append("Equity", util.FormatAmount(v.Equity))
	table.Append("Trades", fmt.Sprintf("%d", len(v.Trades)))
	table.Render()
}

// History prints up to limit trades, newest first.
func (c *Console) History(v session.View, limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(v.Trades) == 0 {
		fmt.Fprintln(c.out, "no trades yet")
		return
	}
	if limit <= 0 || limit > len(v.Trades) {
		limit = len(v.Trades)
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Side", "Amount", "Price", "PnL", "Exit")
	for i := len(v.Trades) - 1; i >= len(v.Trades)-limit; i-- {
		t := v.Trades[i]
		pnl := ""
		if p, ok := t.PnL(); ok {
			pnl = util.FormatPnL(p)
		}
		exit := ""
		if t.FullExit {
			exit = "full"
		}
		table.Append(
			t.Time.Format("15:04:05"),
			string(t.Side),
			util.FormatAmount(t.Amount),
			util.FormatAmount(t.Price),
			pnl,
			exit,
		)
	}
	table.Render()
}

// Chart prints a sparkline of the last width closes, then the wick range
// and direction of the newest candle.
func (c *Console) Chart(v session.View, width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, sparkline(v.History, width))
	if footer := chartFooter(tail(v.History, width)); footer != "" {
		fmt.Fprintln(c.out, footer)
	}
}

// tail returns the last width candles; non-positive width means all.
func tail(candles []market.Candle, width int) []market.Candle {
	if width <= 0 || width > len(candles) {
		width = len(candles)
	}
	return candles[len(candles)-width:]
}

func chartFooter(window []market.Candle) string {
	lo, hi, ok := market.Range(window)
	if !ok {
		return ""
	}
	last := window[len(window)-1]
	dir := "flat"
	switch {
	case last.Bullish():
		dir = "up"
	case last.Close < last.Open:
		dir = "down"
	}
	return fmt.Sprintf("wicks %s .. %s  last candle %s", util.FormatAmount(lo), util.FormatAmount(hi), dir)
}

func sparkline(candles []market.Candle, width int) string {
	window := tail(candles, width)
	if len(window) == 0 {
		return ""
	}
	lo, hi := window[0].Close, window[0].Close
	for _, k := range window {
		lo = min(lo, k.Close)
		hi = max(hi, k.Close)
	}

	var b strings.Builder
	for _, k := range window {
		idx := 0
		if hi > lo {
			idx = int((k.Close - lo) / (hi - lo) * float64(len(sparkBlocks)-1))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	fmt.Fprintf(&b, "  %s .. %s", util.FormatAmount(lo), util.FormatAmount(hi))
	return b.String()
}

// Leaderboard prints the ranked board.
func (c *Console) Leaderboard(entries []leaderboard.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(entries) == 0 {
		fmt.Fprintln(c.out, "leaderboard is empty")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Player", "Profit")
	for _, e := range entries {
		table.Append(fmt.Sprintf("%d", e.Rank), e.Username, util.FormatPnL(e.Profit))
	}
	table.Render()
}

// Ticker prints the external quote board.
func (c *Console) Ticker(lines []exchange.Line) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(lines) == 0 {
		fmt.Fprintln(c.out, "no quotes yet")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Price", "Change %")
	for _, l := range lines {
		table.Append(l.Symbol, fmt.Sprintf("%.6g", l.Price), util.FormatPnL(l.ChangePct))
	}
	table.Render()
}
