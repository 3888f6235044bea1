package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/next-trace/scg-events/contract/event"
	berr "github.com/next-trace/scg-events/contract/errors"
)

const (
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = time.Minute
)

// CircuitBreaker prevents thundering herd on backend outages. When the
// backend is unhealthy, the circuit opens and publish attempts fail fast
// without touching the backend.
type CircuitBreaker struct {
	mu sync.RWMutex

	threshold int           // consecutive failures to trigger open
	cooldown  time.Duration // how long to stay open

	failures  int       // consecutive failures
	openUntil time.Time // when to transition from open to half-open
	isOpen    bool
}

// NewCircuitBreaker creates a circuit breaker.
// threshold: number of consecutive failures to open the circuit.
// cooldown: how long to stay open before letting a probe through.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = defaultBreakerThreshold
	}

	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}

	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow returns true if the circuit is closed (healthy) or half-open (testing).
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.RLock()
	if !cb.isOpen {
		cb.mu.RUnlock()
		return true
	}

	expired := time.Now().After(cb.openUntil)
	cb.mu.RUnlock()

	if expired {
		// Transition to half-open - allow one request through
		cb.mu.Lock()
		defer cb.mu.Unlock()

		// Double-check after acquiring write lock
		if cb.isOpen && time.Now().After(cb.openUntil) {
			cb.isOpen = false
			cb.failures = 0
		}

		return !cb.isOpen
	}

	return false
}

// RecordSuccess records a successful operation, closing the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.isOpen = false
}

// RecordFailure records a failed operation, potentially opening the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.failures >= cb.threshold {
		cb.isOpen = true
		cb.openUntil = time.Now().Add(cb.cooldown)
	}
}

// IsOpen returns true if the circuit is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return cb.isOpen
}

// Reset manually closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.isOpen = false
}

// Breaker decorates a publisher with a circuit breaker. While the circuit is
// open, Publish and PublishBatch fail fast with ErrCircuitOpen. Context
// cancellation does not count as a backend failure.
type Breaker struct {
	next event.Publisher
	cb   *CircuitBreaker
}

var _ event.Publisher = (*Breaker)(nil)

// NewBreaker wraps next with the given circuit breaker.
func NewBreaker(next event.Publisher, cb *CircuitBreaker) *Breaker {
	if cb == nil {
		cb = NewCircuitBreaker(0, 0)
	}

	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Publish(ctx context.Context, evt event.Event) error {
	if !b.cb.Allow() {
		return fmt.Errorf("publish %q: %w", evt.Type, berr.ErrCircuitOpen)
	}

	err := b.next.Publish(ctx, evt)
	b.record(err)

	return err
}

func (b *Breaker) PublishBatch(ctx context.Context, evts []event.Event) error {
	if !b.cb.Allow() {
		return fmt.Errorf("publish batch: %w", berr.ErrCircuitOpen)
	}

	err := b.next.PublishBatch(ctx, evts)
	b.record(err)

	return err
}

func (b *Breaker) Close() error { return b.next.Close() }

func (b *Breaker) record(err error) {
	switch {
	case err == nil:
		b.cb.RecordSuccess()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// caller went away; says nothing about backend health
	default:
		b.cb.RecordFailure()
	}
}
