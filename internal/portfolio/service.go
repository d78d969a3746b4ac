// Package portfolio provides the HTTP handlers and orchestration for
// transaction ingest: ledger apply, exposure recompute, and best-effort
// fan-out of the resulting snapshot to live subscribers.
package portfolio

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradelens/portfolio-engine/internal/ledger"
	"github.com/tradelens/portfolio-engine/internal/metrics"
	"github.com/tradelens/portfolio-engine/internal/model"
	"github.com/tradelens/portfolio-engine/internal/risk"
	"github.com/tradelens/portfolio-engine/internal/store"
)

// lockShards is the size of the per-user mutex stripe set. Updates for users
// hashing to different stripes never block each other.
const lockShards = 64

// Publisher receives the snapshot produced by each successfully processed
// transaction. Implementations are best-effort: a returned error is logged
// by the service and otherwise ignored, and Publish is always called outside
// the user's lock.
type Publisher interface {
	Publish(snapshot model.RiskSnapshot) error
}

// Service coordinates the ledger and aggregator so that applying a
// transaction and producing the snapshot that reflects it appear indivisible
// to concurrent readers of the same user's state.
type Service struct {
	store      store.Store
	ledger     *ledger.Ledger
	aggregator *risk.Aggregator
	publishers []Publisher
	locks      [lockShards]sync.Mutex
}

// NewService creates a portfolio service. Publishers may be empty when live
// fan-out is not needed.
func NewService(st store.Store, lg *ledger.Ledger, agg *risk.Aggregator, publishers ...Publisher) *Service {
	return &Service{
		store:      st,
		ledger:     lg,
		aggregator: agg,
		publishers: publishers,
	}
}

func (s *Service) userLock(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &s.locks[h.Sum32()%lockShards]
}

// ProcessTransaction validates and applies tx, recomputes the user's risk
// snapshot, and fans the snapshot out to all publishers. Once a transaction
// has been accepted the ledger and aggregator commit together under the
// user's lock; only the publish step afterwards is fire-and-forget.
func (s *Service) ProcessTransaction(ctx context.Context, tx *model.Transaction) (*model.Holding, model.RiskSnapshot, error) {
	tx.Symbol = model.NormalizeSymbol(tx.Symbol)
	if err := ledger.Validate(tx); err != nil {
		metrics.TransactionsRejected.Inc()
		return nil, model.RiskSnapshot{}, err
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}

	lock := s.userLock(tx.UserID)
	lock.Lock()

	holding, err := s.ledger.Apply(ctx, tx)
	if err != nil {
		lock.Unlock()
		return nil, model.RiskSnapshot{}, err
	}

	positions, err := s.userPositions(ctx, tx.UserID)
	if err != nil {
		lock.Unlock()
		return nil, model.RiskSnapshot{}, err
	}
	snapshot := s.aggregator.Recompute(tx.UserID, positions, tx.Price, tx.Timestamp)

	lock.Unlock()

	metrics.TransactionsTotal.WithLabelValues(tx.Side).Inc()

	// Publish outside the lock: a slow subscriber must not stall ingestion.
	for _, p := range s.publishers {
		if err := p.Publish(snapshot); err != nil {
			metrics.PublishFailures.Inc()
			slog.Warn("snapshot publish failed", "user", tx.UserID, "err", err)
		}
	}

	slog.Info("transaction processed",
		"tx_id", tx.ID,
		"user", tx.UserID,
		"symbol", tx.Symbol,
		"side", tx.Side,
		"qty", tx.Quantity.String(),
		"price", tx.Price.String(),
		"exposure", snapshot.TotalExposure.String(),
	)

	return holding, snapshot, nil
}

// userPositions loads the user's current symbol → quantity map, including
// fully liquidated symbols.
func (s *Service) userPositions(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	holdings, err := s.store.GetHoldingsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	positions := make(map[string]decimal.Decimal, len(holdings))
	for _, h := range holdings {
		positions[h.Symbol] = h.Quantity
	}
	return positions, nil
}

// --- Request/Response types ---

// TransactionRequest is the JSON body for POST /api/v1/transactions.
type TransactionRequest struct {
	UserID   string          `json:"user_id"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Side     string          `json:"side"` // "BUY" or "SELL"
}

// TransactionResponse is returned from POST /api/v1/transactions.
type TransactionResponse struct {
	TransactionID string             `json:"transaction_id"`
	Holding       model.Holding      `json:"holding"`
	Snapshot      model.RiskSnapshot `json:"snapshot"`
}

// --- HTTP Handlers ---

// SubmitTransaction handles POST /api/v1/transactions.
func (s *Service) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tx := &model.Transaction{
		UserID:   req.UserID,
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
		Price:    req.Price,
		Side:     req.Side,
	}

	holding, snapshot, err := s.ProcessTransaction(r.Context(), tx)
	if err != nil {
		status := http.StatusBadRequest
		if !ledger.IsValidation(err) {
			status = http.StatusInternalServerError
		}
		writeError(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(TransactionResponse{
		TransactionID: tx.ID,
		Holding:       *holding,
		Snapshot:      snapshot,
	})
}

// GetHoldings handles GET /api/v1/portfolio/{userID}/holdings.
func (s *Service) GetHoldings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	lock := s.userLock(userID)
	lock.Lock()
	holdings, err := s.store.GetHoldingsByUser(r.Context(), userID)
	lock.Unlock()

	if err != nil {
		writeError(w, "failed to load holdings", http.StatusInternalServerError)
		return
	}
	if holdings == nil {
		holdings = []model.Holding{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(holdings)
}

// GetTransactions handles GET /api/v1/portfolio/{userID}/transactions.
func (s *Service) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	txs, err := s.store.GetTransactionsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txs)
}

// GetRisk handles GET /api/v1/risk/{userID}.
// Returns the latest snapshot, rebuilt from the current holding set so it is
// fresh even when the history window has emptied.
func (s *Service) GetRisk(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	// Same stripe as writers for this user: positions and exposure always
	// come from the same holding version.
	lock := s.userLock(userID)
	lock.Lock()
	positions, err := s.userPositions(r.Context(), userID)
	if err != nil {
		lock.Unlock()
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}
	snapshot := s.aggregator.Latest(userID, positions)
	lock.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// GetRiskHistory handles GET /api/v1/risk/{userID}/history.
func (s *Service) GetRiskHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	points := s.aggregator.History(userID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(points)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
