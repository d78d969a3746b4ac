package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelens/portfolio-engine/internal/model"
	"github.com/tradelens/portfolio-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestMemoryStore_HoldingNotFound(t *testing.T) {
	ms := store.NewMemoryStore()

	if _, err := ms.GetHolding(context.Background(), "user1", "AAPL"); !errors.Is(err, store.ErrHoldingNotFound) {
		t.Errorf("expected ErrHoldingNotFound, got %v", err)
	}
}

func TestMemoryStore_UpsertAndGet(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	h := &model.Holding{UserID: "user1", Symbol: "AAPL", Quantity: d(10), AvgCost: d(100)}
	if err := ms.UpsertHolding(ctx, h); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Replace in place.
	h.Quantity = d(15)
	h.AvgCost = d(110)
	if err := ms.UpsertHolding(ctx, h); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := ms.GetHolding(ctx, "user1", "AAPL")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Quantity.Equal(d(15)) || !got.AvgCost.Equal(d(110)) {
		t.Errorf("expected 15 @ 110, got %s @ %s", got.Quantity, got.AvgCost)
	}
}

func TestMemoryStore_CopiesOut(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	ms.UpsertHolding(ctx, &model.Holding{UserID: "user1", Symbol: "AAPL", Quantity: d(10), AvgCost: d(100)})

	got, _ := ms.GetHolding(ctx, "user1", "AAPL")
	got.Quantity = d(999)

	again, _ := ms.GetHolding(ctx, "user1", "AAPL")
	if !again.Quantity.Equal(d(10)) {
		t.Errorf("mutating a returned holding must not affect the store, got %s", again.Quantity)
	}
}

func TestMemoryStore_HoldingsByUserScoped(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	ms.UpsertHolding(ctx, &model.Holding{UserID: "user1", Symbol: "AAPL", Quantity: d(10)})
	ms.UpsertHolding(ctx, &model.Holding{UserID: "user1", Symbol: "MSFT", Quantity: d(5)})
	ms.UpsertHolding(ctx, &model.Holding{UserID: "user2", Symbol: "AAPL", Quantity: d(3)})

	holdings, err := ms.GetHoldingsByUser(ctx, "user1")
	if err != nil {
		t.Fatalf("get holdings: %v", err)
	}
	if len(holdings) != 2 {
		t.Errorf("expected 2 holdings for user1, got %d", len(holdings))
	}
}

func TestMemoryStore_TransactionsOrdered(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		ms.InsertTransaction(ctx, &model.Transaction{
			ID: string(rune('a' + i)), UserID: "user1", Symbol: "AAPL",
			Quantity: d(1), Price: d(10), Side: model.SideBuy,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}

	txs, err := ms.GetTransactionsByUser(ctx, "user1")
	if err != nil {
		t.Fatalf("get transactions: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].Timestamp.Before(txs[i-1].Timestamp) {
			t.Error("transactions out of insertion order")
		}
	}
}
