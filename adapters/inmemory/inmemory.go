package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/next-trace/scg-events/contract/event"
	berr "github.com/next-trace/scg-events/contract/errors"
)

// Publisher is a thread-safe in-memory implementation of event.Publisher.
// It records published events in submission order for tests and inspection.
//
// PublishBatch is all-or-nothing: the whole batch is appended inside a single
// critical section, so no concurrent publish can interleave with it.
type Publisher struct {
	mu     sync.Mutex
	events []event.Event
	closed bool
}

// Ensure Publisher implements the contract.
var _ event.Publisher = (*Publisher)(nil)

// New creates a new in-memory publisher instance.
func New() *Publisher { return &Publisher{} }

func (p *Publisher) Publish(ctx context.Context, evt event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("inmemory publish: %w", berr.ErrPublisherClosed)
	}

	p.events = append(p.events, evt)

	return nil
}

func (p *Publisher) PublishBatch(ctx context.Context, evts []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("inmemory publish batch: %w", berr.ErrPublisherClosed)
	}

	p.events = append(p.events, evts...)

	return nil
}

// Close marks the publisher closed; later publishes fail with
// ErrPublisherClosed. Recorded events remain inspectable.
func (p *Publisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	return nil
}

// Events returns a snapshot of the recorded events in submission order.
func (p *Publisher) Events() []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]event.Event, len(p.events))
	copy(out, p.events)

	return out
}

// Len returns the number of recorded events.
func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.events)
}

// Reset discards all recorded events. Useful between test cases.
func (p *Publisher) Reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}
