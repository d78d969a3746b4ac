// Package store defines the persistence interface for the portfolio engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/tradelens/portfolio-engine/internal/model"
)

// ErrHoldingNotFound is returned when no holding exists for a (user, symbol) pair.
var ErrHoldingNotFound = errors.New("store: holding not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Holdings ---

	// GetHolding retrieves the holding for one (user, symbol) pair.
	// Returns ErrHoldingNotFound when the pair has never traded.
	GetHolding(ctx context.Context, userID, symbol string) (*model.Holding, error)

	// GetHoldingsByUser returns every holding for a user, including
	// fully liquidated ones (quantity zero).
	GetHoldingsByUser(ctx context.Context, userID string) ([]model.Holding, error)

	// UpsertHolding creates or replaces the holding keyed by (user, symbol).
	UpsertHolding(ctx context.Context, h *model.Holding) error

	// --- Immutable transaction ledger ---

	// InsertTransaction appends an accepted transaction record.
	InsertTransaction(ctx context.Context, tx *model.Transaction) error

	// GetTransactionsByUser returns all transactions for a user in
	// timestamp order.
	GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error)
}
