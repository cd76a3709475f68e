package risk

import (
	"math"
	"testing"
)

func TestCap(t *testing.T) {
	limits := Limits{MaxAmountPerTrade: 50}
	if got := limits.Cap(80); got != 50 {
		t.Fatalf("expected cap to 50, got %.2f", got)
	}
	if got := limits.Cap(20); got != 20 {
		t.Fatalf("expected 20 untouched, got %.2f", got)
	}
	if got := (Limits{}).Cap(80); got != 80 {
		t.Fatalf("zero cap should not trim, got %.2f", got)
	}
	if got := limits.Cap(math.NaN()); !math.IsNaN(got) {
		t.Fatalf("NaN should pass through for the ledger to reject")
	}
}
