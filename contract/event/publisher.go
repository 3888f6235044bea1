package event

import "context"

// Publisher abstracts delivering events to some backend (in-memory, log,
// Kafka/Redpanda, NATS, RabbitMQ, ...). This is the complete capability
// surface every backend commits to; there is no dynamic forwarding.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Publisher interface {
	// Publish delivers a single event. It is atomic from the caller's view:
	// the backend either accepts the event for delivery or returns an error.
	Publish(ctx context.Context, evt Event) error

	// PublishBatch delivers an ordered sequence of events, preserving
	// submission order. Partial-failure policy is backend-specific and
	// documented per adapter; the common contract is that a non-nil error
	// means at least one event was not accepted.
	PublishBatch(ctx context.Context, evts []Event) error

	// Close releases backend resources. Publish calls after Close return
	// ErrPublisherClosed where the backend can detect it.
	Close() error
}
