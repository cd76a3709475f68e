package paper

import (
	"testing"

	"github.com/bigbagadawgz/trenchsimulator/internal/execution"
)

func pnl(v float64) *float64 { return &v }

func TestLedgerRecordSnapshot(t *testing.T) {
	ledger := NewLedger(2)
	trade := execution.Trade{Side: execution.Buy, Amount: 1, Price: 100}
	ledger.Record(trade)

	snapshot := ledger.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(snapshot))
	}
	if snapshot[0].Side != trade.Side {
		t.Fatalf("unexpected trade side")
	}
	snapshot[0].Amount = 99
	if ledger.Snapshot()[0].Amount != 1 {
		t.Fatalf("snapshot must be a copy")
	}

	ledger.Reset()
	if ledger.Len() != 0 {
		t.Fatalf("expected ledger reset")
	}
}

func TestAverageEntryPriceFromLog(t *testing.T) {
	trades := []execution.Trade{
		{Side: execution.Buy, Amount: 10, Price: 1000},
		{Side: execution.Sell, Amount: 10, Price: 900, RealizedPnL: pnl(-1), FullExit: true},
		{Side: execution.Buy, Amount: 50, Price: 100},
		{Side: execution.Sell, Amount: 25, Price: 110, RealizedPnL: pnl(2.5)},
		{Side: execution.Buy, Amount: 30, Price: 120},
	}
	got := AverageEntryPrice(trades)
	want := (50*100.0 + 30*120.0) / 80
	if got != want {
		t.Fatalf("expected %.4f got %.4f", want, got)
	}

	if AverageEntryPrice(trades[:2]) != 0 {
		t.Fatalf("expected zero basis right after full exit")
	}
	if AverageEntryPrice(nil) != 0 {
		t.Fatalf("expected zero basis for empty log")
	}
	// idempotent
	if AverageEntryPrice(trades) != got {
		t.Fatalf("recomputation drifted")
	}
}

func TestRealizedPnLTotal(t *testing.T) {
	trades := []execution.Trade{
		{Side: execution.Buy, Amount: 10, Price: 10},
		{Side: execution.Sell, Amount: 5, Price: 12, RealizedPnL: pnl(1)},
		{Side: execution.Sell, Amount: 5, Price: 8, RealizedPnL: pnl(-2.5), FullExit: true},
	}
	if got := RealizedPnLTotal(trades); got != -1.5 {
		t.Fatalf("expected -1.5 got %.4f", got)
	}
}

func TestLedgerSnapshotDoesNotShareRealizedPnL(t *testing.T) {
	ledger := NewLedger(2)
	trade := execution.Trade{Side: execution.Sell, Amount: 5, Price: 12, RealizedPnL: pnl(1)}
	ledger.Record(trade)

	*trade.RealizedPnL = 50
	snap := ledger.Snapshot()
	if got, _ := snap[0].PnL(); got != 1 {
		t.Fatalf("recorded trade followed the caller's pointer: %.2f", got)
	}

	*snap[0].RealizedPnL = 1e6
	if got := RealizedPnLTotal(ledger.Snapshot()); got != 1 {
		t.Fatalf("snapshot write leaked into the ledger: %.2f", got)
	}
}
