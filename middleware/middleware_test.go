package middleware_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/next-trace/scg-events/adapters/inmemory"
	"github.com/next-trace/scg-events/contract/event"
	berr "github.com/next-trace/scg-events/contract/errors"
	"github.com/next-trace/scg-events/middleware"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingPublisher fails every call until healed.
type failingPublisher struct {
	mu      sync.Mutex
	healthy bool
	calls   int
}

func (f *failingPublisher) setHealthy(ok bool) {
	f.mu.Lock()
	f.healthy = ok
	f.mu.Unlock()
}

func (f *failingPublisher) Publish(context.Context, event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if !f.healthy {
		return errors.New("backend down")
	}

	return nil
}

func (f *failingPublisher) PublishBatch(ctx context.Context, evts []event.Event) error {
	for range evts {
		if err := f.Publish(ctx, event.Event{}); err != nil {
			return err
		}
	}

	return nil
}

func (f *failingPublisher) Close() error { return nil }

func (f *failingPublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func TestInstrumented_CountsPublished(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := middleware.NewMetrics(reg)
	pub := middleware.NewInstrumented(inmemory.New(), m)

	require.NoError(t, pub.Publish(t.Context(), event.New("payment.created", nil)))
	require.NoError(t, pub.Publish(t.Context(), event.New("payment.created", nil)))
	require.NoError(t, pub.Publish(t.Context(), event.New("org.updated", nil)))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Published.WithLabelValues("payment.created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Published.WithLabelValues("org.updated")))
}

func TestInstrumented_CountsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := middleware.NewMetrics(reg)

	backend := &failingPublisher{}
	pub := middleware.NewInstrumented(backend, m)

	err := pub.Publish(t.Context(), event.New("payment.created", nil))
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Failures.WithLabelValues("payment.created")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Published.WithLabelValues("payment.created")))
}

func TestInstrumented_BatchForwardsAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := middleware.NewMetrics(reg)

	backend := inmemory.New()
	pub := middleware.NewInstrumented(backend, m)

	batch := []event.Event{
		event.New("e.one", nil),
		event.New("e.two", nil),
	}
	require.NoError(t, pub.PublishBatch(t.Context(), batch))

	assert.Equal(t, 2, backend.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Published.WithLabelValues("e.one")))
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	backend := &failingPublisher{}
	cb := middleware.NewCircuitBreaker(3, time.Minute)
	pub := middleware.NewBreaker(backend, cb)

	for i := 0; i < 3; i++ {
		err := pub.Publish(t.Context(), event.New("e", nil))
		require.Error(t, err)
		assert.False(t, errors.Is(err, berr.ErrCircuitOpen))
	}

	require.True(t, cb.IsOpen())

	// circuit open: backend must not be touched
	before := backend.callCount()
	err := pub.Publish(t.Context(), event.New("e", nil))
	require.True(t, errors.Is(err, berr.ErrCircuitOpen))
	assert.Equal(t, before, backend.callCount())
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	backend := &failingPublisher{}
	cb := middleware.NewCircuitBreaker(1, 10*time.Millisecond)
	pub := middleware.NewBreaker(backend, cb)

	require.Error(t, pub.Publish(t.Context(), event.New("e", nil)))
	require.True(t, cb.IsOpen())

	backend.setHealthy(true)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, pub.Publish(t.Context(), event.New("e", nil)))
	assert.False(t, cb.IsOpen())
}

func TestBreaker_ContextCancelNotAFailure(t *testing.T) {
	backend := inmemory.New()
	cb := middleware.NewCircuitBreaker(1, time.Minute)
	pub := middleware.NewBreaker(backend, cb)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := pub.Publish(ctx, event.New("e", nil))
	require.True(t, errors.Is(err, context.Canceled))
	assert.False(t, cb.IsOpen())
}

func TestBuffered_FlushesToBackend(t *testing.T) {
	backend := inmemory.New()
	pub := middleware.NewBuffered(backend, middleware.WithFlushInterval(5*time.Millisecond))
	t.Cleanup(func() { _ = pub.Close() })

	require.NoError(t, pub.Publish(t.Context(), event.New("payment.created", map[string]any{"id": "p1"})))

	require.Eventually(t, func() bool { return backend.Len() == 1 },
		time.Second, 5*time.Millisecond)

	got := backend.Events()
	assert.Equal(t, "payment.created", got[0].Type)
	assert.Equal(t, "p1", got[0].Payload["id"])
}

func TestBuffered_DrainsOnClose(t *testing.T) {
	backend := inmemory.New()
	pub := middleware.NewBuffered(backend,
		middleware.WithFlushInterval(time.Hour), // only Close may drain
		middleware.WithCapacity(100),
	)

	var batch []event.Event
	for i := 0; i < 10; i++ {
		batch = append(batch, event.New("e", nil))
	}
	require.NoError(t, pub.PublishBatch(t.Context(), batch))

	require.NoError(t, pub.Close())
	assert.Equal(t, 10, backend.Len(), "all events should be drained on close")
}

func TestBuffered_PublishAfterClose(t *testing.T) {
	pub := middleware.NewBuffered(inmemory.New())
	require.NoError(t, pub.Close())

	err := pub.Publish(t.Context(), event.New("e", nil))
	require.True(t, errors.Is(err, berr.ErrPublisherClosed))
}

func TestBuffered_OverflowDropsOldest(t *testing.T) {
	backend := &failingPublisher{} // never accepts, so the buffer only grows
	pub := middleware.NewBuffered(backend,
		middleware.WithFlushInterval(time.Hour),
		middleware.WithCapacity(5),
	)
	t.Cleanup(func() { _ = pub.Close() })

	for i := 0; i < 12; i++ {
		require.NoError(t, pub.Publish(t.Context(), event.New("e", nil)))
	}

	assert.Equal(t, 5, pub.Pending())
	assert.Equal(t, int64(7), pub.Dropped())
}

func TestBuffered_PreservesOrder(t *testing.T) {
	backend := inmemory.New()
	pub := middleware.NewBuffered(backend, middleware.WithFlushInterval(time.Hour))

	batch := []event.Event{
		event.New("e.one", nil),
		event.New("e.two", nil),
		event.New("e.three", nil),
	}
	require.NoError(t, pub.PublishBatch(t.Context(), batch))
	require.NoError(t, pub.Close())

	got := backend.Events()
	require.Len(t, got, 3)

	for i, e := range batch {
		assert.Equal(t, e.ID, got[i].ID, "event %d out of order", i)
	}
}
