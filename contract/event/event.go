package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	berr "github.com/next-trace/scg-events/contract/errors"

	"github.com/google/uuid"
)

// Event is an immutable record of something that happened in the system.
// Construct it with New; treat the value as read-only afterwards. The
// constructor copies the payload and metadata maps so later mutation at the
// call site does not leak into an event already handed to a publisher.
type Event struct {
	// ID uniquely identifies this event instance. Consumers needing
	// exactly-once semantics de-duplicate on it downstream.
	ID string `json:"id"`
	// Type is the logical event name (e.g., "payment.created").
	// Backends route on it, so keep it stable per event shape.
	Type string `json:"type"`
	// Payload carries the structured facts of the event.
	Payload map[string]any `json:"payload"`
	// OccurredAt is stamped at construction, UTC.
	OccurredAt time.Time `json:"occurred_at"`
	// CorrelationID ties the event to the request or workflow that caused it.
	CorrelationID string `json:"correlation_id,omitempty"`
	// CausationID references the event that directly caused this one.
	CausationID string `json:"causation_id,omitempty"`
	// Metadata is a bag for headers/tracing/tenancy and the like.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Option configures optional Event fields at construction.
type Option func(*Event)

// WithCorrelationID sets the correlation identifier.
func WithCorrelationID(id string) Option { return func(e *Event) { e.CorrelationID = id } }

// WithCausationID sets the causation identifier.
func WithCausationID(id string) Option { return func(e *Event) { e.CausationID = id } }

// WithID overrides the generated event ID. Useful for replay and dedup tests.
func WithID(id string) Option { return func(e *Event) { e.ID = id } }

// WithOccurredAt overrides the construction timestamp. Useful in tests.
func WithOccurredAt(t time.Time) Option { return func(e *Event) { e.OccurredAt = t.UTC() } }

// WithMetadata merges the given headers into the event metadata.
func WithMetadata(md map[string]string) Option {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, len(md))
		}

		for k, v := range md {
			e.Metadata[k] = v
		}
	}
}

// New constructs an Event of the given type, stamping ID and OccurredAt.
// The payload map is copied shallowly; nested values are shared.
func New(eventType string, payload map[string]any, opts ...Option) Event {
	e := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}

	if len(payload) > 0 {
		e.Payload = make(map[string]any, len(payload))
		for k, v := range payload {
			e.Payload[k] = v
		}
	}

	for _, opt := range opts {
		opt(&e)
	}

	return e
}

// Encode serializes the event to its JSON wire envelope.
// Failures are non-retryable and wrap ErrSerializationFailed.
func Encode(e Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %q: %w", e.Type, errors.Join(berr.ErrSerializationFailed, err))
	}

	return b, nil
}

// Decode parses a JSON wire envelope back into an Event.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	return e, nil
}
