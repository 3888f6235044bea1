package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/next-trace/scg-events/contract/event"
	berr "github.com/next-trace/scg-events/contract/errors"
)

const (
	defaultTopicPrefix  = "events."
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 100 * time.Millisecond
)

// Writer is a minimal Kafka-like writer interface.
// Users can adapt franz-go, segmentio/kafka-go or any other client to this.
type Writer interface {
	Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Publisher implements event.Publisher on top of an injected Writer.
//
// Each event is serialized to its JSON envelope and produced to
// TopicPrefix + event type, so ordering within a type is preserved by the
// broker's per-topic/partition guarantees. The partition key is the event's
// correlation ID when present, falling back to the event type.
//
// Transient write errors are retried with exponential backoff up to
// MaxAttempts; exhausting the attempts surfaces ErrPublishFailed to the
// caller rather than dropping the event. Serialization errors are not
// retried. PublishBatch stops at the first event that cannot be delivered.
type Publisher struct {
	writer       Writer
	topicPrefix  string
	maxAttempts  int
	retryBackoff time.Duration
	propagator   event.HeaderPropagator
}

var _ event.Publisher = (*Publisher)(nil)

// Option configures the Publisher.
type Option func(*Publisher)

// WithTopicPrefix overrides the topic prefix. Defaults to "events.".
func WithTopicPrefix(prefix string) Option {
	return func(p *Publisher) { p.topicPrefix = prefix }
}

// WithMaxAttempts bounds delivery attempts per event (including the first).
func WithMaxAttempts(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the initial backoff between attempts; it doubles per retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.retryBackoff = d
		}
	}
}

// WithPropagator injects tracing context into produced record headers.
func WithPropagator(hp event.HeaderPropagator) Option {
	return func(p *Publisher) {
		if hp != nil {
			p.propagator = hp
		}
	}
}

// New creates a Kafka publisher instance with the provided writer.
func New(w Writer, opts ...Option) *Publisher {
	p := &Publisher{
		writer:       w,
		topicPrefix:  defaultTopicPrefix,
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
		propagator:   event.NopHeaderPropagator{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Publisher) Publish(ctx context.Context, evt event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.writer == nil {
		return fmt.Errorf("kafka publish: %w", berr.ErrNotConnected)
	}

	val, err := event.Encode(evt)
	if err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}

	topic := p.topicFor(evt)
	key := partitionKey(evt)
	headers := p.headersFor(ctx, evt)

	return p.writeWithRetry(ctx, topic, key, val, headers)
}

func (p *Publisher) PublishBatch(ctx context.Context, evts []event.Event) error {
	for i, evt := range evts {
		if err := p.Publish(ctx, evt); err != nil {
			return fmt.Errorf("kafka publish batch event %d/%d: %w", i+1, len(evts), err)
		}
	}

	return nil
}

// Close is a no-op at this layer; the injected Writer owns the connection.
func (p *Publisher) Close() error { return nil }

func (p *Publisher) writeWithRetry(ctx context.Context, topic string, key, val []byte, headers map[string]string) error {
	backoff := p.retryBackoff

	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err := p.writer.Write(ctx, topic, key, val, headers)
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		lastErr = err

		if attempt == p.maxAttempts {
			break
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		backoff *= 2
	}

	return fmt.Errorf("kafka publish to %q after %d attempts: %w",
		topic, p.maxAttempts, errors.Join(berr.ErrPublishFailed, lastErr))
}

func (p *Publisher) topicFor(evt event.Event) string {
	return p.topicPrefix + evt.Type
}

// partitionKey keeps events of one workflow (or, lacking that, one type) on
// the same partition so relative order survives the broker.
func partitionKey(evt event.Event) []byte {
	if evt.CorrelationID != "" {
		return []byte(evt.CorrelationID)
	}

	return []byte(evt.Type)
}

func (p *Publisher) headersFor(ctx context.Context, evt event.Event) map[string]string {
	h := make(map[string]string, len(evt.Metadata)+1)
	for k, v := range evt.Metadata {
		h[k] = v
	}

	h["event-id"] = evt.ID
	p.propagator.Inject(ctx, h)

	return h
}
