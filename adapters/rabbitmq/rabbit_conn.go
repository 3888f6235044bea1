package rabbitmq

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	berr "github.com/next-trace/scg-events/contract/errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Concrete AMQP connection-backed constructor and channel wrapper with auto-reconnect.

const exchangeType = "topic"

// Config describes the AMQP connection.
type Config struct {
	URL         string
	Exchange    string
	ConnTimeout time.Duration
}

type reconnectingChannel struct {
	cfg    Config
	mu     sync.RWMutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed chan struct{}
	ready  chan struct{} // closed when a channel is ready
}

func newReconnectingChannel(cfg Config) (*reconnectingChannel, func()) {
	rc := &reconnectingChannel{
		cfg:    cfg,
		closed: make(chan struct{}),
		ready:  make(chan struct{}),
	}
	go rc.run()

	cleanup := func() { rc.close() }

	return rc, cleanup
}

func (rc *reconnectingChannel) Publish(ctx context.Context, m Message) error {
	// Fast path: ensure channel available
	rc.mu.RLock()
	ch := rc.ch
	rc.mu.RUnlock()

	if ch == nil {
		// Wait for readiness or context cancellation
		select {
		case <-rc.ready:
			// proceed
		case <-ctx.Done():
			return ctx.Err()
		}

		rc.mu.RLock()
		ch = rc.ch
		rc.mu.RUnlock()

		if ch == nil {
			return fmt.Errorf("%w: rabbitmq not connected", berr.ErrNotConnected)
		}
	}

	var h amqp.Table
	if len(m.Headers) > 0 {
		h = amqp.Table{}
		for k, v := range m.Headers {
			h[k] = v
		}
	}

	return ch.PublishWithContext(
		ctx,
		m.Exchange,
		m.RoutingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			Headers:      h,
			ContentType:  "application/json",
			Body:         m.Body,
		},
	)
}

func (rc *reconnectingChannel) run() {
	backoff := time.Second

	const maxBackoff = 30 * time.Second
	// #nosec G404 -- non-crypto RNG is acceptable for backoff jitter
	rng := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // non-crypto RNG is acceptable for backoff jitter

	reconnect := func() (*amqp.Connection, *amqp.Channel, error) {
		conn, err := amqp.DialConfig(rc.cfg.URL, amqp.Config{
			Locale:     "en_US",
			Properties: amqp.Table{"product": "scg-events"},
			Dial:       amqp.DefaultDial(rc.cfg.ConnTimeout),
		})
		if err != nil {
			return nil, nil, err
		}

		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}

		if err := ch.ExchangeDeclare(
			rc.cfg.Exchange,
			exchangeType,
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			_ = ch.Close()
			_ = conn.Close()

			return nil, nil, err
		}

		return conn, ch, nil
	}

	for {
		select {
		case <-rc.closed:
			return
		default:
		}

		conn, ch, err := reconnect()
		if err != nil {
			// exponential backoff with jitter
			jitter := time.Duration(rng.Int63n(int64(backoff / 2)))

			sleep := backoff + jitter/2
			if sleep > maxBackoff {
				sleep = maxBackoff
			}

			t := time.NewTimer(sleep)
			select {
			case <-rc.closed:
				t.Stop()
				return
			case <-t.C:
			}

			if backoff < maxBackoff {
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}

			continue
		}

		// success
		backoff = time.Second

		rc.mu.Lock()
		rc.conn = conn
		rc.ch = ch
		// signal readiness (recreate channel each time)
		oldReady := rc.ready
		rc.ready = make(chan struct{})
		close(oldReady)
		// immediately mark new ready channel as closed since we are ready now
		close(rc.ready)
		rc.mu.Unlock()

		// Block on connection close notifications to trigger reconnect
		notify := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-rc.closed:
			_ = ch.Close()
			_ = conn.Close()

			return
		case <-notify:
			_ = ch.Close()
			_ = conn.Close()
			// loop to reconnect
		}
	}
}

func (rc *reconnectingChannel) close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	select {
	case <-rc.closed:
		// already closed
		return
	default:
		close(rc.closed)
	}

	if rc.ch != nil {
		_ = rc.ch.Close()
		rc.ch = nil
	}

	if rc.conn != nil {
		_ = rc.conn.Close()
		rc.conn = nil
	}
}

// NewWithAMQPConn dials RabbitMQ with auto-reconnect, ensures the topic
// exchange, and returns a Publisher and cleanup. Misconfiguration is reported
// here, not deferred to the first publish.
func NewWithAMQPConn(cfg Config, opts ...Option) (*Publisher, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("%w: rabbitmq url required", berr.ErrNotConnected)
	}

	if cfg.Exchange == "" {
		cfg.Exchange = defaultExchange
	}

	ch, cleanup := newReconnectingChannel(cfg)
	pub := New(ch, append([]Option{WithExchange(cfg.Exchange)}, opts...)...)

	return pub, cleanup, nil
}
