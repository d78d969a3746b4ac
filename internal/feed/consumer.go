// Package feed connects the portfolio engine to Kafka: consuming transaction
// events for asynchronous ingest and publishing risk snapshots for
// downstream services.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/tradelens/portfolio-engine/internal/metrics"
	"github.com/tradelens/portfolio-engine/internal/model"
	"github.com/tradelens/portfolio-engine/internal/portfolio"
)

// Defaults matching the upstream transaction producers.
const (
	TransactionTopic = "portfolio-transactions"
	ConsumerGroup    = "analytics-group"
)

// TransactionEvent is the wire format of a transaction on the feed.
// Unknown fields are ignored.
type TransactionEvent struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Side      string          `json:"side"`
	Timestamp time.Time       `json:"timestamp"`
}

// Consumer reads transaction events from Kafka and feeds them into the
// portfolio service. A malformed or invalid payload is logged and skipped;
// the consumption loop only stops when its context is cancelled.
type Consumer struct {
	reader *kafka.Reader
	svc    *portfolio.Service
}

// NewConsumer creates a consumer for the transaction topic.
func NewConsumer(brokers []string, svc *portfolio.Service) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   TransactionTopic,
		GroupID: ConsumerGroup,
	})
	return &Consumer{reader: reader, svc: svc}
}

// Run consumes until ctx is cancelled. Blocks; call in a goroutine.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			slog.Error("feed read failed", "err", err)
			continue
		}
		c.Process(ctx, msg.Value)
	}
}

// Process decodes and applies one feed payload. Exposed separately from Run
// so the decode path can be exercised without a broker.
func (c *Consumer) Process(ctx context.Context, payload []byte) {
	var event TransactionEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		metrics.FeedMessagesDropped.Inc()
		slog.Error("feed payload malformed, discarding", "err", err, "payload", string(payload))
		return
	}

	tx := &model.Transaction{
		ID:        event.ID,
		UserID:    event.UserID,
		Symbol:    event.Symbol,
		Quantity:  event.Quantity,
		Price:     event.Price,
		Side:      event.Side,
		Timestamp: event.Timestamp,
	}

	if _, _, err := c.svc.ProcessTransaction(ctx, tx); err != nil {
		metrics.FeedMessagesDropped.Inc()
		slog.Error("feed transaction rejected", "user", event.UserID, "symbol", event.Symbol, "err", err)
	}
}
