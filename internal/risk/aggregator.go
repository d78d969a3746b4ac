// Package risk derives per-user exposure snapshots from current holdings and
// maintains a time-bounded history of them.
//
// Exposure values every symbol the user holds at the single reference price
// carried on the triggering transaction, not at per-symbol market prices.
// That approximation is intended behavior inherited from the risk engine this
// replaces; do not change it without a new requirement.
package risk

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelens/portfolio-engine/internal/model"
)

// RetentionWindow is how long exposure snapshots are kept, relative to the
// time of the append that triggers pruning.
const RetentionWindow = 7 * 24 * time.Hour

// historyLimit caps the number of points History returns after date-sorting.
const historyLimit = 7

// Aggregator computes RiskSnapshots and keeps per-user exposure history.
// It is safe for concurrent use: an internal RWMutex guards the maps so
// queries may run alongside writers. Per-user write ordering is the caller's
// responsibility (see portfolio.Service).
type Aggregator struct {
	mu        sync.RWMutex
	exposures map[string]decimal.Decimal      // userID → latest exposure
	history   map[string][]model.RiskSnapshot // userID → time-ordered snapshots
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		exposures: make(map[string]decimal.Decimal),
		history:   make(map[string][]model.RiskSnapshot),
	}
}

// Recompute derives a snapshot for the user from the given position set and
// reference price, records it as the latest exposure, appends it to the
// user's history, and prunes history entries older than RetentionWindow
// relative to at.
//
// positions must be the user's current quantities per symbol; zero-quantity
// entries are included (they contribute nothing to exposure).
func (a *Aggregator) Recompute(userID string, positions map[string]decimal.Decimal, referencePrice decimal.Decimal, at time.Time) model.RiskSnapshot {
	total := decimal.Zero
	copied := make(map[string]decimal.Decimal, len(positions))
	for symbol, qty := range positions {
		copied[symbol] = qty
		total = total.Add(qty.Mul(referencePrice))
	}

	snapshot := model.RiskSnapshot{
		UserID:        userID,
		Positions:     copied,
		TotalExposure: total.Round(2),
		Timestamp:     at,
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.exposures[userID] = snapshot.TotalExposure
	a.history[userID] = append(a.history[userID], snapshot)
	a.pruneLocked(userID, at)

	return snapshot
}

// Latest reconstructs the freshest snapshot for the user from the
// caller-supplied current positions and the most recently computed exposure.
// It does not read from history, so it stays meaningful even after the
// history window has emptied.
func (a *Aggregator) Latest(userID string, positions map[string]decimal.Decimal) model.RiskSnapshot {
	a.mu.RLock()
	exposure := a.exposures[userID]
	a.mu.RUnlock()

	copied := make(map[string]decimal.Decimal, len(positions))
	for symbol, qty := range positions {
		copied[symbol] = qty
	}

	return model.RiskSnapshot{
		UserID:        userID,
		Positions:     copied,
		TotalExposure: exposure.Round(2),
		Timestamp:     time.Now().UTC(),
	}
}

// History returns the user's exposure trend as (local calendar date,
// exposure) points sorted ascending by date, truncated to the first
// historyLimit entries of the sorted sequence.
//
// Note the truncation applies after sorting, to entries rather than distinct
// days: a user with more than seven snapshots inside the retention window
// gets multiple points for early dates and none for later ones. Kept
// deliberately for parity with the previous engine.
func (a *Aggregator) History(userID string) []model.HistoryPoint {
	// Pruning runs on append, so an idle user may still carry stale
	// snapshots; the cutoff here keeps them out of query results.
	cutoff := time.Now().Add(-RetentionWindow)

	a.mu.RLock()
	snapshots := a.history[userID]
	points := make([]model.HistoryPoint, 0, len(snapshots))
	for _, s := range snapshots {
		if s.Timestamp.Before(cutoff) {
			continue
		}
		points = append(points, model.HistoryPoint{
			Date:     s.Timestamp.In(time.Local).Format("2006-01-02"),
			Exposure: s.TotalExposure,
		})
	}
	a.mu.RUnlock()

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})
	if len(points) > historyLimit {
		points = points[:historyLimit]
	}
	return points
}

// pruneLocked drops snapshots older than RetentionWindow. Caller holds a.mu.
func (a *Aggregator) pruneLocked(userID string, now time.Time) {
	cutoff := now.Add(-RetentionWindow)
	snapshots := a.history[userID]

	kept := snapshots[:0]
	for _, s := range snapshots {
		if !s.Timestamp.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	a.history[userID] = kept
}
