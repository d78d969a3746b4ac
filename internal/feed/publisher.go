package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tradelens/portfolio-engine/internal/model"
)

// RiskTopic carries risk snapshots for downstream consumers.
const RiskTopic = "risk-updates"

// publishTimeout bounds each snapshot write. The caller treats failures as
// best-effort, so a hung broker must not hold the publishing goroutine.
const publishTimeout = 2 * time.Second

// SnapshotPublisher writes risk snapshots to the risk topic. Implements
// portfolio.Publisher. Delivery is at-most-once: errors are returned to the
// caller, which logs and drops them.
type SnapshotPublisher struct {
	writer *kafka.Writer
}

// NewSnapshotPublisher creates a Kafka-backed snapshot publisher.
func NewSnapshotPublisher(brokers []string) *SnapshotPublisher {
	return &SnapshotPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        RiskTopic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: publishTimeout,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish marshals the snapshot, keyed by user so one user's updates stay
// ordered within a partition.
func (p *SnapshotPublisher) Publish(snapshot model.RiskSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(snapshot.UserID),
		Value: data,
	})
}

// Close releases the underlying writer.
func (p *SnapshotPublisher) Close() error {
	return p.writer.Close()
}
