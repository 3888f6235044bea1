// Package middleware provides decorators that wrap any event.Publisher with
// cross-cutting behavior: prometheus instrumentation, a circuit breaker, and
// asynchronous buffering. Decorators implement event.Publisher themselves, so
// they compose in any order around a backend.
package middleware

import (
	"context"
	"time"

	"github.com/next-trace/scg-events/contract/event"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds prometheus metrics for event publishing.
type Metrics struct {
	Published       *prometheus.CounterVec
	Failures        *prometheus.CounterVec
	PublishDuration prometheus.Histogram
	BatchSize       prometheus.Histogram
}

// NewMetrics registers publishing metrics with the given registerer.
// Pass nil to use the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scgevents_published_total",
			Help: "Total number of events accepted by the backend",
		}, []string{"event_type"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scgevents_publish_failures_total",
			Help: "Total number of events the backend failed to accept",
		}, []string{"event_type"}),
		PublishDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scgevents_publish_duration_seconds",
			Help:    "Time spent in backend Publish calls",
			Buckets: prometheus.DefBuckets,
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scgevents_batch_size",
			Help:    "Number of events per PublishBatch call",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
	}
}

// Instrumented decorates a publisher with prometheus metrics.
type Instrumented struct {
	next    event.Publisher
	metrics *Metrics
}

var _ event.Publisher = (*Instrumented)(nil)

// NewInstrumented wraps next with the given metrics.
func NewInstrumented(next event.Publisher, m *Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

func (i *Instrumented) Publish(ctx context.Context, evt event.Event) error {
	start := time.Now()

	err := i.next.Publish(ctx, evt)

	i.metrics.PublishDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		i.metrics.Failures.WithLabelValues(evt.Type).Inc()
		return err
	}

	i.metrics.Published.WithLabelValues(evt.Type).Inc()

	return nil
}

func (i *Instrumented) PublishBatch(ctx context.Context, evts []event.Event) error {
	i.metrics.BatchSize.Observe(float64(len(evts)))

	start := time.Now()

	err := i.next.PublishBatch(ctx, evts)

	i.metrics.PublishDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		// the batch contract stops at the first failure; attribute it to the batch
		for _, evt := range evts {
			i.metrics.Failures.WithLabelValues(evt.Type).Inc()
		}

		return err
	}

	for _, evt := range evts {
		i.metrics.Published.WithLabelValues(evt.Type).Inc()
	}

	return nil
}

func (i *Instrumented) Close() error { return i.next.Close() }
