package logging

import (
	"context"
	"log/slog"

	"github.com/next-trace/scg-events/contract/event"
)

// Publisher writes one structured log record per event. It is meant for local
// development and observability; sink errors are swallowed by the slog handler
// and never surface to the caller.
//
// PublishBatch is best-effort per line: each event is logged independently.
type Publisher struct {
	logger *slog.Logger
	level  slog.Level
}

var _ event.Publisher = (*Publisher)(nil)

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets the logger used for event records. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithLevel sets the level event records are emitted at. Defaults to Info.
func WithLevel(level slog.Level) Option {
	return func(p *Publisher) { p.level = level }
}

// New creates a logging publisher.
func New(opts ...Option) *Publisher {
	p := &Publisher{
		logger: slog.Default(),
		level:  slog.LevelInfo,
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

	p.log(ctx, evt)

	return nil
}

func (p *Publisher) PublishBatch(ctx context.Context, evts []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, evt := range evts {
		p.log(ctx, evt)
	}

	return nil
}

// Close is a no-op; the underlying logger is owned by the caller.
func (p *Publisher) Close() error { return nil }

func (p *Publisher) log(ctx context.Context, evt event.Event) {
	attrs := []slog.Attr{
		slog.String("event_id", evt.ID),
		slog.String("event_type", evt.Type),
		slog.Time("occurred_at", evt.OccurredAt),
		slog.Any("payload", evt.Payload),
	}

	if evt.CorrelationID != "" {
		attrs = append(attrs, slog.String("correlation_id", evt.CorrelationID))
	}

	if evt.CausationID != "" {
		attrs = append(attrs, slog.String("causation_id", evt.CausationID))
	}

	p.logger.LogAttrs(ctx, p.level, "event published", attrs...)
}
