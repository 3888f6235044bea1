package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	berr "github.com/next-trace/scg-events/contract/errors"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

// Concrete franz-go based constructor and writer wrapper. Works against any
// Kafka-protocol broker, including Redpanda.

// SASLConfig carries SASL/PLAIN credentials.
type SASLConfig struct {
	Username string
	Password string
}

// Config describes the broker connection. Values are passed through opaquely;
// loading them from env/files is the caller's concern.
type Config struct {
	Brokers     []string
	ClientID    string
	TLS         *tls.Config
	SASL        *SASLConfig
	Acks        *kgo.Acks
	Idempotent  bool
	Compression []kgo.CompressionCodec
	DialTimeout time.Duration
}

type kgoWriter struct{ cl *kgo.Client }

func (w kgoWriter) Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	if len(headers) > 0 {
		rec.Headers = make([]kgo.RecordHeader, 0, len(headers))
		for k, v := range headers {
			rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
	}

	return w.cl.ProduceSync(ctx, rec).FirstErr()
}

// NewWithKgo builds a franz-go client backed Publisher. Misconfiguration is
// reported here, not deferred to the first publish. The returned cleanup
// should be called to close the client.
func NewWithKgo(cfg Config, opts ...Option) (*Publisher, func(), error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil, fmt.Errorf("%w: kafka brokers required", berr.ErrNotConnected)
	}

	kopts := []kgo.Opt{kgo.SeedBrokers(cfg.Brokers...)}
	if cfg.ClientID != "" {
		kopts = append(kopts, kgo.ClientID(cfg.ClientID))
	}

	if cfg.TLS != nil {
		kopts = append(kopts, kgo.DialTLSConfig(cfg.TLS))
	}

	if cfg.SASL != nil {
		auth := plain.Auth{User: cfg.SASL.Username, Pass: cfg.SASL.Password}
		kopts = append(kopts, kgo.SASL(auth.AsMechanism()))
	}

	if cfg.Idempotent {
		kopts = append(kopts, kgo.IdempotentProducer())
	}

	if len(cfg.Compression) > 0 {
		kopts = append(kopts, kgo.ProducerBatchCompression(cfg.Compression...))
	}

	if cfg.Acks != nil {
		kopts = append(kopts, kgo.RequiredAcks(*cfg.Acks))
	}

	if cfg.DialTimeout > 0 {
		kopts = append(kopts, kgo.DialTimeout(cfg.DialTimeout))
	}

	cl, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: kafka client init: %w", berr.ErrNotConnected, err)
	}

	pub := New(kgoWriter{cl: cl}, opts...)
	cleanup := func() { cl.Close() }

	return pub, cleanup, nil
}
