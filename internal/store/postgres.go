package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradelens/portfolio-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All quantities and monetary values are stored as NUMERIC for exact
// decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetHolding(ctx context.Context, userID, symbol string) (*model.Holding, error) {
	var h model.Holding
	var qty, avgCost string

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, symbol, quantity::TEXT, avg_cost::TEXT
		 FROM holdings WHERE user_id = $1 AND symbol = $2`, userID, symbol).
		Scan(&h.UserID, &h.Symbol, &qty, &avgCost)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrHoldingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get holding %s/%s: %w", userID, symbol, err)
	}

	h.Quantity, _ = decimal.NewFromString(qty)
	h.AvgCost, _ = decimal.NewFromString(avgCost)

	return &h, nil
}

func (s *PostgresStore) GetHoldingsByUser(ctx context.Context, userID string) ([]model.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, symbol, quantity::TEXT, avg_cost::TEXT
		 FROM holdings WHERE user_id = $1 ORDER BY symbol`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		var h model.Holding
		var qty, avgCost string
		if err := rows.Scan(&h.UserID, &h.Symbol, &qty, &avgCost); err != nil {
			return nil, err
		}
		h.Quantity, _ = decimal.NewFromString(qty)
		h.AvgCost, _ = decimal.NewFromString(avgCost)
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (s *PostgresStore) UpsertHolding(ctx context.Context, h *model.Holding) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO holdings (user_id, symbol, quantity, avg_cost)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC)
		 ON CONFLICT (user_id, symbol)
		 DO UPDATE SET quantity = EXCLUDED.quantity, avg_cost = EXCLUDED.avg_cost`,
		h.UserID, h.Symbol, h.Quantity.String(), h.AvgCost.String(),
	)
	return err
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, user_id, symbol, quantity, price, side, timestamp)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7)`,
		tx.ID, tx.UserID, tx.Symbol,
		tx.Quantity.String(), tx.Price.String(),
		tx.Side, tx.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, symbol, quantity::TEXT, price::TEXT, side, timestamp
		 FROM transactions WHERE user_id = $1 ORDER BY timestamp`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		var qty, price string
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Symbol, &qty, &price, &tx.Side, &tx.Timestamp); err != nil {
			return nil, err
		}
		tx.Quantity, _ = decimal.NewFromString(qty)
		tx.Price, _ = decimal.NewFromString(price)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
