// Package ledger applies buy/sell transactions to per-user, per-instrument
// holdings using weighted-average-cost accounting.
//
// Accounting rules:
//   - BUY: quantity adds; average cost becomes the quantity-weighted mean of
//     the old position and the new lot.
//   - SELL: quantity subtracts, clamped at zero (no short positions); average
//     cost is untouched unless the position reaches zero, at which point it
//     resets to zero. Realized gain/loss is not tracked.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradelens/portfolio-engine/internal/model"
	"github.com/tradelens/portfolio-engine/internal/store"
)

// Validation sentinels. A rejected transaction causes no state change.
var (
	ErrMissingUserID = errors.New("ledger: user_id is required")
	ErrMissingSymbol = errors.New("ledger: symbol is required")
	ErrInvalidQty    = errors.New("ledger: quantity must be positive")
	ErrNegativePrice = errors.New("ledger: price must not be negative")
	ErrInvalidSide   = errors.New("ledger: side must be BUY or SELL")
)

// IsValidation reports whether err is one of the ingest validation errors,
// as opposed to a store failure.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrMissingUserID),
		errors.Is(err, ErrMissingSymbol),
		errors.Is(err, ErrInvalidQty),
		errors.Is(err, ErrNegativePrice),
		errors.Is(err, ErrInvalidSide):
		return true
	}
	return false
}

// Ledger owns the authoritative quantity/cost state per (user, symbol),
// persisted through the store. It performs no locking of its own: the caller
// must serialize Apply calls for the same user (see portfolio.Service).
type Ledger struct {
	store store.Store
}

// New creates a ledger backed by the given store.
func New(st store.Store) *Ledger {
	return &Ledger{store: st}
}

// Validate checks a transaction against the ingest contract. The symbol is
// expected to already be in canonical form (model.NormalizeSymbol).
//
// An unrecognized side is rejected outright rather than silently ignored.
func Validate(tx *model.Transaction) error {
	if tx.UserID == "" {
		return ErrMissingUserID
	}
	if tx.Symbol == "" {
		return ErrMissingSymbol
	}
	if !tx.Quantity.IsPositive() {
		return ErrInvalidQty
	}
	if tx.Price.IsNegative() {
		return ErrNegativePrice
	}
	if tx.Side != model.SideBuy && tx.Side != model.SideSell {
		return ErrInvalidSide
	}
	return nil
}

// Apply validates tx, folds it into the holding for (tx.UserID, tx.Symbol),
// persists the updated holding, and appends tx to the transaction ledger.
// The holding is created lazily on the first transaction for the pair.
func (l *Ledger) Apply(ctx context.Context, tx *model.Transaction) (*model.Holding, error) {
	if err := Validate(tx); err != nil {
		return nil, err
	}

	h, err := l.store.GetHolding(ctx, tx.UserID, tx.Symbol)
	if errors.Is(err, store.ErrHoldingNotFound) {
		h = &model.Holding{
			UserID:   tx.UserID,
			Symbol:   tx.Symbol,
			Quantity: decimal.Zero,
			AvgCost:  decimal.Zero,
		}
	} else if err != nil {
		return nil, fmt.Errorf("load holding: %w", err)
	}

	switch tx.Side {
	case model.SideBuy:
		newQty := h.Quantity.Add(tx.Quantity)
		// newQty > 0 always holds here since tx.Quantity > 0.
		totalCost := h.AvgCost.Mul(h.Quantity).Add(tx.Price.Mul(tx.Quantity))
		h.AvgCost = totalCost.Div(newQty)
		h.Quantity = newQty

	case model.SideSell:
		newQty := h.Quantity.Sub(tx.Quantity)
		if newQty.IsNegative() {
			newQty = decimal.Zero
		}
		h.Quantity = newQty
		if newQty.IsZero() {
			h.AvgCost = decimal.Zero
		}
	}

	if err := l.store.UpsertHolding(ctx, h); err != nil {
		return nil, fmt.Errorf("persist holding: %w", err)
	}
	if err := l.store.InsertTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	return h, nil
}
