package events

import (
	"context"

	"github.com/next-trace/scg-events/contract/event"
	"github.com/next-trace/scg-events/registry"
)

// Emitter is a thin facade over a resolved publisher. It exists to unify
// call-site method names: some codebases say Publish, others PublishEvent.
// Both are explicit forwards to the same wrapped backend; there is no
// dynamic delegation, so the capability surface is exactly event.Publisher.
type Emitter struct {
	pub event.Publisher
}

// Emitter is itself a Publisher, so emitters can wrap emitters and middleware
// can wrap either.
var _ event.Publisher = (*Emitter)(nil)

// NewEmitter wraps a resolved publisher. Passing nil resolves the
// process-wide default at construction time; the emitter then keeps that
// instance even if the registry is swapped later.
func NewEmitter(p event.Publisher) *Emitter {
	if p == nil {
		p = registry.Default()
	}

	return &Emitter{pub: p}
}

// Default returns an emitter over the current process-wide publisher.
func Default() *Emitter { return NewEmitter(registry.Default()) }

// Publish delivers a single event via the wrapped backend.
func (e *Emitter) Publish(ctx context.Context, evt event.Event) error {
	return e.pub.Publish(ctx, evt)
}

// PublishEvent is an alias of Publish for call sites that prefer the longer name.
func (e *Emitter) PublishEvent(ctx context.Context, evt event.Event) error {
	return e.pub.Publish(ctx, evt)
}

// PublishBatch delivers an ordered sequence of events via the wrapped backend.
func (e *Emitter) PublishBatch(ctx context.Context, evts []event.Event) error {
	return e.pub.PublishBatch(ctx, evts)
}

// Close closes the wrapped backend.
func (e *Emitter) Close() error { return e.pub.Close() }

// Unwrap exposes the wrapped publisher, e.g. to reach an in-memory backend's
// recorded events in tests.
func (e *Emitter) Unwrap() event.Publisher { return e.pub }

// Emit constructs an event and publishes it in one call, returning the
// constructed event so callers can log or correlate on its ID.
func (e *Emitter) Emit(
	ctx context.Context,
	eventType string,
	payload map[string]any,
	opts ...event.Option,
) (event.Event, error) {
	evt := event.New(eventType, payload, opts...)

	return evt, e.pub.Publish(ctx, evt)
}

// Emit publishes through the process-wide publisher, resolving it at call
// time so a registry swap is picked up immediately.
func Emit(
	ctx context.Context,
	eventType string,
	payload map[string]any,
	opts ...event.Option,
) (event.Event, error) {
	evt := event.New(eventType, payload, opts...)

	return evt, registry.Default().Publish(ctx, evt)
}
