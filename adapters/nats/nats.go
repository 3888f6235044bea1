package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/next-trace/scg-events/contract/event"
	berr "github.com/next-trace/scg-events/contract/errors"
)

const defaultSubjectPrefix = "events."

// Client is a minimal NATS-like publisher interface decoupled from any concrete library.
// Users can provide a wrapper around their NATS connection to satisfy this.
type Client interface {
	// Publish publishes a message to a subject with optional headers.
	Publish(subject string, data []byte, headers map[string]string) error
}

// Publisher implements event.Publisher using an injected NATS-like Client.
//
// Events go to SubjectPrefix + event type. NATS subjects have no partitions;
// ordering is whatever the connection provides (per-connection FIFO).
// PublishBatch stops at the first event that cannot be delivered.
type Publisher struct {
	client        Client
	subjectPrefix string
	propagator    event.HeaderPropagator
}

// Ensure Publisher implements the contract.
var _ event.Publisher = (*Publisher)(nil)

// Option configures the Publisher.
type Option func(*Publisher)

// WithSubjectPrefix overrides the subject prefix. Defaults to "events.".
func WithSubjectPrefix(prefix string) Option {
	return func(p *Publisher) { p.subjectPrefix = prefix }
}

// WithPropagator injects tracing context into published message headers.
func WithPropagator(hp event.HeaderPropagator) Option {
	return func(p *Publisher) {
		if hp != nil {
			p.propagator = hp
		}
	}
}

// New creates a NATS publisher instance with the provided client.
func New(c Client, opts ...Option) *Publisher {
	p := &Publisher{
		client:        c,
		subjectPrefix: defaultSubjectPrefix,
		propagator:    event.NopHeaderPropagator{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Publisher) Publish(ctx context.Context, evt event.Event) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	body, err := event.Encode(evt)
	if err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	subject := p.subjectPrefix + evt.Type
	headers := p.headersFor(ctx, evt)

	if err := p.client.Publish(subject, body, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("nats publish to %q: %w", subject, errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func (p *Publisher) PublishBatch(ctx context.Context, evts []event.Event) error {
	for i, evt := range evts {
		if err := p.Publish(ctx, evt); err != nil {
			return fmt.Errorf("nats publish batch event %d/%d: %w", i+1, len(evts), err)
		}
	}

	return nil
}

// Close is a no-op at this layer; the injected Client owns the connection.
func (p *Publisher) Close() error { return nil }

func (p *Publisher) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.client == nil {
		return fmt.Errorf("nats publish: %w", berr.ErrNotConnected)
	}

	return nil
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
