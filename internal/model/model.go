// Package model defines the core domain types shared across the portfolio engine.
// All quantities and monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Transaction is an immutable record of one buy/sell event.
// Once accepted, these are never modified or deleted.
type Transaction struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Symbol    string          `json:"symbol" db:"symbol"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"` // always > 0; direction comes from Side
	Price     decimal.Decimal `json:"price" db:"price"`
	Side      string          `json:"side" db:"side"` // "BUY" or "SELL"
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// Holding is a user's position in one instrument, maintained with
// weighted-average-cost accounting. One exists per (user, symbol) pair,
// created lazily on the first transaction and never deleted: a fully
// liquidated holding persists with Quantity=0, AvgCost=0.
type Holding struct {
	UserID   string          `json:"user_id" db:"user_id"`
	Symbol   string          `json:"symbol" db:"symbol"`
	Quantity decimal.Decimal `json:"quantity" db:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost" db:"avg_cost"`
}

// RiskSnapshot is an immutable point-in-time view of a user's positions and
// total exposure. Exposure values the whole position set at one reference
// price (the price carried on the triggering transaction), rounded to two
// decimal places.
type RiskSnapshot struct {
	UserID        string                     `json:"user_id"`
	Positions     map[string]decimal.Decimal `json:"positions"` // symbol → quantity
	TotalExposure decimal.Decimal            `json:"total_exposure"`
	Timestamp     time.Time                  `json:"timestamp"`
}

// HistoryPoint is one entry of a user's exposure trend.
type HistoryPoint struct {
	Date     string          `json:"date"` // local calendar date, YYYY-MM-DD
	Exposure decimal.Decimal `json:"exposure"`
}

// NormalizeSymbol returns the canonical form of an instrument symbol:
// surrounding whitespace stripped, uppercased.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
