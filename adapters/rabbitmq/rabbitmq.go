package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	"github.com/next-trace/scg-events/contract/event"
	berr "github.com/next-trace/scg-events/contract/errors"
)

const defaultExchange = "events"

// Message is the outgoing AMQP publication.
type Message struct {
	Exchange   string
	RoutingKey string
	Body       []byte
	Headers    map[string]string
}

// Channel is a minimal AMQP-like publisher interface decoupled from any concrete library.
type Channel interface {
	Publish(ctx context.Context, m Message) error
}

// Publisher implements event.Publisher using an injected AMQP-like Channel.
//
// Events are published to a topic exchange with the event type as routing
// key, so consumers bind with patterns like "payment.*". PublishBatch stops
// at the first event that cannot be delivered.
type Publisher struct {
	channel    Channel
	exchange   string
	propagator event.HeaderPropagator
}

// Ensure Publisher implements the contract.
var _ event.Publisher = (*Publisher)(nil)

// Option configures the Publisher.
type Option func(*Publisher)

// WithExchange overrides the exchange name. Defaults to "events".
func WithExchange(name string) Option {
	return func(p *Publisher) {
		if name != "" {
			p.exchange = name
		}
	}
}

// WithPropagator injects tracing context into published message headers.
func WithPropagator(hp event.HeaderPropagator) Option {
	return func(p *Publisher) {
		if hp != nil {
			p.propagator = hp
		}
	}
}

// New creates a RabbitMQ publisher instance with the provided channel.
func New(ch Channel, opts ...Option) *Publisher {
	p := &Publisher{
		channel:    ch,
		exchange:   defaultExchange,
		propagator: event.NopHeaderPropagator{},
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

	if p.channel == nil {
		return fmt.Errorf("rabbitmq publish: %w", berr.ErrNotConnected)
	}

	body, err := event.Encode(evt)
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}

	headers := make(map[string]string, len(evt.Metadata)+1)
	for k, v := range evt.Metadata {
		headers[k] = v
	}

	headers["event-id"] = evt.ID
	p.propagator.Inject(ctx, headers)

	msg := Message{
		Exchange:   p.exchange,
		RoutingKey: evt.Type,
		Body:       body,
		Headers:    headers,
	}

	if err := p.channel.Publish(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq publish %q: %w", evt.Type, errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func (p *Publisher) PublishBatch(ctx context.Context, evts []event.Event) error {
	for i, evt := range evts {
		if err := p.Publish(ctx, evt); err != nil {
			return fmt.Errorf("rabbitmq publish batch event %d/%d: %w", i+1, len(evts), err)
		}
	}

	return nil
}

// Close is a no-op at this layer; the injected Channel owns the connection.
func (p *Publisher) Close() error { return nil }
