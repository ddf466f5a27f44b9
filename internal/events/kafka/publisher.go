// internal/events/kafka/publisher.go
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/events"
)

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// batchTimeout caps how long Publish, which runs inside the transfer request,
// waits for its batch to fill.
const batchTimeout = 5 * time.Millisecond

// Publisher writes TransferCompleted events to a Kafka topic, keyed by transfer id
// so every event of a transfer lands on the same partition.
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a Publisher writing to topic on the given brokers.
func NewPublisher(brokers []string, topic string) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: batchTimeout,
	})
}

// NewPublisherWithWriter creates a Publisher on top of an existing writer.
func NewPublisherWithWriter(w messageWriter) *Publisher {
	return &Publisher{writer: w}
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(ctx context.Context, event domain.TransferCompleted) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish transfer %s: %w", event.TransferID, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func newMessage(event domain.TransferCompleted) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal transfer %s: %w", event.TransferID, err)
	}
	return kafka.Message{
		Key:   []byte(event.TransferID.String()),
		Value: data,
		Time:  event.OccurredAt,
	}, nil
}

var _ events.Publisher = (*Publisher)(nil)
