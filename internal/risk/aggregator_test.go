package risk_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelens/portfolio-engine/internal/risk"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func positions(pairs ...interface{}) map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal)
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i].(string)] = d(pairs[i+1].(float64))
	}
	return m
}

func TestRecompute_SinglePosition(t *testing.T) {
	// 15 MSFT at reference price 50 → exposure 750.00.
	agg := risk.NewAggregator()

	snap := agg.Recompute("user1", positions("MSFT", 15.0), d(50), time.Now().UTC())

	if !snap.TotalExposure.Equal(d(750)) {
		t.Errorf("expected exposure=750, got %s", snap.TotalExposure)
	}
	if !snap.Positions["MSFT"].Equal(d(15)) {
		t.Errorf("expected MSFT position 15, got %s", snap.Positions["MSFT"])
	}
}

func TestRecompute_UniformReferencePrice(t *testing.T) {
	// Every symbol is valued at the one triggering price, not per-symbol
	// market prices. Intentional behavior, not a bug.
	agg := risk.NewAggregator()

	snap := agg.Recompute("user1", positions("AAPL", 10.0, "MSFT", 15.0), d(50), time.Now().UTC())

	// (10 + 15) × 50, not 10×priceAAPL + 15×priceMSFT.
	if !snap.TotalExposure.Equal(d(1250)) {
		t.Errorf("expected exposure=1250, got %s", snap.TotalExposure)
	}
}

func TestRecompute_RoundsHalfUp(t *testing.T) {
	agg := risk.NewAggregator()

	// 3 × 33.335 = 100.005 → 100.01 with half-up rounding.
	snap := agg.Recompute("user1", positions("AAPL", 3.0), d(33.335), time.Now().UTC())

	if !snap.TotalExposure.Equal(d(100.01)) {
		t.Errorf("expected exposure=100.01, got %s", snap.TotalExposure)
	}
}

func TestRecompute_ZeroQuantityContributesNothing(t *testing.T) {
	agg := risk.NewAggregator()

	snap := agg.Recompute("user1", positions("AAPL", 0.0, "MSFT", 4.0), d(100), time.Now().UTC())

	if !snap.TotalExposure.Equal(d(400)) {
		t.Errorf("expected exposure=400, got %s", snap.TotalExposure)
	}
	// Liquidated symbols stay visible in the position map.
	if _, ok := snap.Positions["AAPL"]; !ok {
		t.Error("zero-quantity symbol should remain in positions")
	}
}

func TestRecompute_SnapshotImmutable(t *testing.T) {
	agg := risk.NewAggregator()
	pos := positions("AAPL", 10.0)

	snap := agg.Recompute("user1", pos, d(100), time.Now().UTC())
	pos["AAPL"] = d(999)

	if !snap.Positions["AAPL"].Equal(d(10)) {
		t.Errorf("snapshot positions must be detached from caller's map, got %s", snap.Positions["AAPL"])
	}
}

func TestLatest_UsesMostRecentExposure(t *testing.T) {
	agg := risk.NewAggregator()

	agg.Recompute("user1", positions("AAPL", 10.0), d(100), time.Now().UTC())
	agg.Recompute("user1", positions("AAPL", 12.0), d(110), time.Now().UTC())

	snap := agg.Latest("user1", positions("AAPL", 12.0))

	if !snap.TotalExposure.Equal(d(1320)) {
		t.Errorf("expected latest exposure 1320, got %s", snap.TotalExposure)
	}
	if !snap.Positions["AAPL"].Equal(d(12)) {
		t.Errorf("expected current position 12, got %s", snap.Positions["AAPL"])
	}
}

func TestLatest_UnknownUser(t *testing.T) {
	agg := risk.NewAggregator()

	snap := agg.Latest("nobody", positions())

	if !snap.TotalExposure.IsZero() {
		t.Errorf("expected zero exposure for unknown user, got %s", snap.TotalExposure)
	}
	if len(snap.Positions) != 0 {
		t.Errorf("expected empty positions, got %v", snap.Positions)
	}
}

func TestLatest_FreshAfterHistoryPruned(t *testing.T) {
	// Latest reconstructs from current state, not from history, so it stays
	// meaningful even when every stored snapshot has aged out.
	agg := risk.NewAggregator()

	old := time.Now().UTC().Add(-10 * 24 * time.Hour)
	agg.Recompute("user1", positions("AAPL", 10.0), d(100), old)
	// A later append prunes the stale snapshot.
	agg.Recompute("user1", positions("AAPL", 10.0), d(100), time.Now().UTC())

	snap := agg.Latest("user1", positions("AAPL", 10.0))
	if !snap.TotalExposure.Equal(d(1000)) {
		t.Errorf("expected exposure 1000, got %s", snap.TotalExposure)
	}
}

// --- History ---

func TestHistory_Empty(t *testing.T) {
	agg := risk.NewAggregator()

	if got := agg.History("nobody"); len(got) != 0 {
		t.Errorf("expected empty history, got %v", got)
	}
}

func TestHistory_IdleUserReturnsNothing(t *testing.T) {
	// A user whose only activity is 8 days old gets an empty trend even
	// though append-time pruning never ran again for them.
	agg := risk.NewAggregator()

	old := time.Now().Add(-8 * 24 * time.Hour)
	agg.Recompute("user1", positions("AAPL", 10.0), d(100), old)

	if got := agg.History("user1"); len(got) != 0 {
		t.Errorf("expected empty history for idle user, got %v", got)
	}
}

func TestHistory_PrunesOnAppend(t *testing.T) {
	agg := risk.NewAggregator()
	now := time.Now()

	agg.Recompute("user1", positions("AAPL", 1.0), d(100), now.Add(-9*24*time.Hour))
	agg.Recompute("user1", positions("AAPL", 2.0), d(100), now.Add(-2*24*time.Hour))
	agg.Recompute("user1", positions("AAPL", 3.0), d(100), now)

	got := agg.History("user1")
	if len(got) != 2 {
		t.Fatalf("expected 2 entries inside the window, got %d", len(got))
	}
	cutoff := now.Add(-7 * 24 * time.Hour).In(time.Local).Format("2006-01-02")
	for _, p := range got {
		if p.Date < cutoff {
			t.Errorf("entry %s is older than the 7-day window", p.Date)
		}
	}
}

func TestHistory_SortedByDate(t *testing.T) {
	agg := risk.NewAggregator()
	now := time.Now()

	// Append out of calendar order.
	agg.Recompute("user1", positions("AAPL", 1.0), d(10), now.Add(-24*time.Hour))
	agg.Recompute("user1", positions("AAPL", 1.0), d(20), now.Add(-3*24*time.Hour))
	agg.Recompute("user1", positions("AAPL", 1.0), d(30), now)

	got := agg.History("user1")
	for i := 1; i < len(got); i++ {
		if got[i-1].Date > got[i].Date {
			t.Errorf("history not sorted: %s before %s", got[i-1].Date, got[i].Date)
		}
	}
}

func TestHistory_TruncatesToFirstSevenEntries(t *testing.T) {
	// Known quirk kept for parity with the previous engine: the limit of 7
	// applies to entries after date-sorting, not to distinct days. Ten
	// same-window snapshots across three days yield the first 7 sorted
	// entries, so the latest day can be squeezed out entirely.
	agg := risk.NewAggregator()
	now := time.Now()

	dayMinus2 := now.Add(-2 * 24 * time.Hour)
	dayMinus1 := now.Add(-24 * time.Hour)
	for i := 0; i < 4; i++ {
		agg.Recompute("user1", positions("AAPL", 1.0), d(10), dayMinus2)
	}
	for i := 0; i < 4; i++ {
		agg.Recompute("user1", positions("AAPL", 1.0), d(20), dayMinus1)
	}
	agg.Recompute("user1", positions("AAPL", 1.0), d(30), now)
	agg.Recompute("user1", positions("AAPL", 1.0), d(40), now)

	got := agg.History("user1")
	if len(got) != 7 {
		t.Fatalf("expected exactly 7 entries, got %d", len(got))
	}

	today := now.In(time.Local).Format("2006-01-02")
	for _, p := range got {
		if p.Date == today {
			t.Errorf("today's snapshots should be truncated away, found %v", p)
		}
	}
}
