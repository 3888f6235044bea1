// Package events is the high-level entry point of scg-events.
//
// Application code constructs an Emitter around a backend (or around the
// process-wide default from the registry package) and calls Publish after a
// state-changing operation completes:
//
//	pub, cleanup, err := kafka.NewWithKgo(kafka.Config{Brokers: brokers})
//	if err != nil { ... }
//	defer cleanup()
//
//	emitter := events.NewEmitter(pub)
//	_, err = emitter.Emit(ctx, "payment.created", map[string]any{"id": paymentID})
//
// Backends are interchangeable without call-site changes: in-memory for
// tests, logging for local development, Kafka/Redpanda, NATS or RabbitMQ for
// real fan-out. Middleware (metrics, circuit breaker, buffering) wraps any
// backend and the emitter wraps the result.
package events
