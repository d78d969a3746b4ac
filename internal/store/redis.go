package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradelens/portfolio-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for per-user holdings. Writes go to the primary store and invalidate
// the cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) UpsertHolding(ctx context.Context, h *model.Holding) error {
	if err := s.primary.UpsertHolding(ctx, h); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, holdingsKey(h.UserID), holdingKey(h.UserID, h.Symbol))
	return nil
}

func (s *CachedStore) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	return s.primary.InsertTransaction(ctx, tx)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetHolding(ctx context.Context, userID, symbol string) (*model.Holding, error) {
	data, err := s.rdb.Get(ctx, holdingKey(userID, symbol)).Bytes()
	if err == nil {
		var h model.Holding
		if json.Unmarshal(data, &h) == nil {
			return &h, nil
		}
	}

	// Cache miss: read from primary.
	h, err := s.primary.GetHolding(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(h); err == nil {
		s.rdb.Set(ctx, holdingKey(userID, symbol), data, s.ttl)
	}
	return h, nil
}

func (s *CachedStore) GetHoldingsByUser(ctx context.Context, userID string) ([]model.Holding, error) {
	data, err := s.rdb.Get(ctx, holdingsKey(userID)).Bytes()
	if err == nil {
		var holdings []model.Holding
		if json.Unmarshal(data, &holdings) == nil {
			return holdings, nil
		}
	}

	// Cache miss.
	holdings, err := s.primary.GetHoldingsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(holdings); err == nil {
		s.rdb.Set(ctx, holdingsKey(userID), data, s.ttl)
	}
	return holdings, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	return s.primary.GetTransactionsByUser(ctx, userID)
}

// --- Cache keys ---

func holdingKey(userID, symbol string) string { return fmt.Sprintf("holding:%s:%s", userID, symbol) }
func holdingsKey(userID string) string        { return fmt.Sprintf("holdings:%s", userID) }
