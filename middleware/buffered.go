package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/next-trace/scg-events/contract/event"
	berr "github.com/next-trace/scg-events/contract/errors"

	"golang.org/x/sync/errgroup"
)

const (
	defaultBufferCapacity = 10000
	defaultFlushInterval  = 250 * time.Millisecond
	defaultFlushBatchSize = 100
)

// ringBuffer is a bounded, thread-safe buffer for events.
// When full, the oldest events are dropped to make room for new ones.
type ringBuffer struct {
	mu       sync.Mutex
	events   []event.Event
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = defaultBufferCapacity
	}

	return &ringBuffer{
		events:   make([]event.Event, capacity),
		capacity: capacity,
	}
}

// enqueue adds an event, dropping the oldest if necessary.
func (b *ringBuffer) enqueue(evt event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		// Drop oldest
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
	}

	b.events[b.head] = evt
	b.head = (b.head + 1) % b.capacity
	b.count++
}

// dequeueBatch removes up to n events from the buffer.
func (b *ringBuffer) dequeueBatch(n int) []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	if n > b.count {
		n = b.count
	}

	result := make([]event.Event, n)
	for i := 0; i < n; i++ {
		result[i] = b.events[b.tail]
		b.tail = (b.tail + 1) % b.capacity
	}

	b.count -= n

	return result
}

func (b *ringBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

func (b *ringBuffer) droppedCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dropped
}

// Buffered decorates a publisher with a bounded in-process buffer and a
// background flush worker, so Publish returns as soon as the event is queued.
//
// This trades delivery guarantees for latency: acceptance into the buffer is
// not delivery, overflow drops the oldest events, and backend failures during
// a flush are logged rather than surfaced (the caller is long gone). Use it
// for observability-grade events, not for facts that must not be lost.
type Buffered struct {
	next   event.Publisher
	buf    *ringBuffer
	logger *slog.Logger

	flushInterval  time.Duration
	flushBatchSize int

	notify    chan struct{}
	cancel    context.CancelFunc
	g         *errgroup.Group
	closed    atomic.Bool
	closeOnce sync.Once
}

var _ event.Publisher = (*Buffered)(nil)

// BufferedOption configures a Buffered publisher.
type BufferedOption func(*Buffered)

// WithCapacity bounds the buffer. Defaults to 10000 events.
func WithCapacity(n int) BufferedOption {
	return func(b *Buffered) {
		if n > 0 {
			b.buf = newRingBuffer(n)
		}
	}
}

// WithFlushInterval sets how often the worker flushes without being nudged.
func WithFlushInterval(d time.Duration) BufferedOption {
	return func(b *Buffered) {
		if d > 0 {
			b.flushInterval = d
		}
	}
}

// WithFlushBatchSize caps how many events one flush hands to the backend.
func WithFlushBatchSize(n int) BufferedOption {
	return func(b *Buffered) {
		if n > 0 {
			b.flushBatchSize = n
		}
	}
}

// WithBufferedLogger sets the logger for flush failures. Defaults to slog.Default().
func WithBufferedLogger(l *slog.Logger) BufferedOption {
	return func(b *Buffered) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuffered wraps next with an async buffer and starts the flush worker.
func NewBuffered(next event.Publisher, opts ...BufferedOption) *Buffered {
	b := &Buffered{
		next:           next,
		buf:            newRingBuffer(defaultBufferCapacity),
		logger:         slog.Default(),
		flushInterval:  defaultFlushInterval,
		flushBatchSize: defaultFlushBatchSize,
		notify:         make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(b)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	g, ctx := errgroup.WithContext(ctx)
	b.g = g

	g.Go(func() error {
		b.run(ctx)
		return nil
	})

	return b
}

func (b *Buffered) Publish(ctx context.Context, evt event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if b.closed.Load() {
		return fmt.Errorf("buffered publish: %w", berr.ErrPublisherClosed)
	}

	b.buf.enqueue(evt)
	b.nudge()

	return nil
}

func (b *Buffered) PublishBatch(ctx context.Context, evts []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if b.closed.Load() {
		return fmt.Errorf("buffered publish batch: %w", berr.ErrPublisherClosed)
	}

	for _, evt := range evts {
		b.buf.enqueue(evt)
	}

	b.nudge()

	return nil
}

// Close stops intake, drains the buffer through the backend, and closes it.
func (b *Buffered) Close() error {
	var err error

	b.closeOnce.Do(func() {
		b.closed.Store(true)
		b.cancel()
		_ = b.g.Wait()

		// final drain happens here, after the worker has exited
		b.flush(context.Background())

		err = b.next.Close()
	})

	return err
}

// Dropped returns how many events were discarded due to buffer overflow.
func (b *Buffered) Dropped() int64 { return b.buf.droppedCount() }

// Pending returns how many events are queued and not yet flushed.
func (b *Buffered) Pending() int { return b.buf.len() }

func (b *Buffered) nudge() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *Buffered) run(ctx context.Context) {
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.notify:
			// nudges only force a flush once a full batch is waiting;
			// smaller backlogs ride the ticker
			if b.buf.len() >= b.flushBatchSize {
				b.flush(ctx)
			}
		case <-ticker.C:
			b.flush(ctx)
		}
	}
}

func (b *Buffered) flush(ctx context.Context) {
	for {
		batch := b.buf.dequeueBatch(b.flushBatchSize)
		if len(batch) == 0 {
			return
		}

		if err := b.next.PublishBatch(ctx, batch); err != nil {
			// events were already accepted from the caller; all we can do is shout
			b.logger.Error("buffered event flush failed",
				"error", err,
				"batch_size", len(batch),
				"first_event_type", batch[0].Type,
			)

			return
		}
	}
}
