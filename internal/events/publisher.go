// internal/events/publisher.go
package events

import (
	"context"

	"finflow-ledger/internal/domain"
)

// Publisher delivers ledger events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event domain.TransferCompleted) error
	Close() error
}

// NoopPublisher drops every event. It is used when no broker is configured.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(ctx context.Context, event domain.TransferCompleted) error {
	return nil
}

// Close implements Publisher.
func (NoopPublisher) Close() error {
	return nil
}

var _ Publisher = NoopPublisher{}
