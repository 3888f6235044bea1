package events_test

import (
	"testing"

	"github.com/next-trace/scg-events/adapters/inmemory"
	"github.com/next-trace/scg-events/contract/event"
	"github.com/next-trace/scg-events/events"
	"github.com/next-trace/scg-events/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_PublishAndAliasEquivalent(t *testing.T) {
	backend := inmemory.New()
	em := events.NewEmitter(backend)

	evt := event.New("payment.created", map[string]any{"id": "p1"})

	require.NoError(t, em.Publish(t.Context(), evt))
	require.NoError(t, em.PublishEvent(t.Context(), evt))

	got := backend.Events()
	require.Len(t, got, 2)
	assert.Equal(t, got[0], got[1], "Publish and PublishEvent must have identical effects")
	assert.Equal(t, "payment.created", got[0].Type)
	assert.Equal(t, "p1", got[0].Payload["id"])
}

func TestEmitter_PublishBatchForwards(t *testing.T) {
	backend := inmemory.New()
	em := events.NewEmitter(backend)

	batch := []event.Event{
		event.New("e.one", nil),
		event.New("e.two", nil),
		event.New("e.three", nil),
	}

	require.NoError(t, em.PublishBatch(t.Context(), batch))

	got := backend.Events()
	require.Len(t, got, 3)

	for i, e := range batch {
		assert.Equal(t, e.ID, got[i].ID)
	}
}

func TestEmitter_Emit(t *testing.T) {
	backend := inmemory.New()
	em := events.NewEmitter(backend)

	evt, err := em.Emit(t.Context(), "org.updated", map[string]any{"org": "o1"})
	require.NoError(t, err)
	require.NotEmpty(t, evt.ID)

	got := backend.Events()
	require.Len(t, got, 1)
	assert.Equal(t, evt.ID, got[0].ID)
}

func TestEmitter_Unwrap(t *testing.T) {
	backend := inmemory.New()
	em := events.NewEmitter(backend)

	assert.Same(t, backend, em.Unwrap())
}

func TestEmitter_NilResolvesRegistry(t *testing.T) {
	backend := inmemory.New()
	registry.SetDefault(backend)

	em := events.NewEmitter(nil)
	_, err := em.Emit(t.Context(), "payment.created", map[string]any{"id": "p1"})
	require.NoError(t, err)

	require.Equal(t, 1, backend.Len())
}

func TestEmit_ResolvesRegistryAtCallTime(t *testing.T) {
	first := inmemory.New()
	second := inmemory.New()

	registry.SetDefault(first)

	_, err := events.Emit(t.Context(), "e", nil)
	require.NoError(t, err)

	registry.SetDefault(second)

	_, err = events.Emit(t.Context(), "e", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Len())
	assert.Equal(t, 1, second.Len())
}

func TestEmitter_CapturedInstanceGoesStale(t *testing.T) {
	old := inmemory.New()
	registry.SetDefault(old)

	em := events.Default()

	replacement := inmemory.New()
	registry.SetDefault(replacement)

	// the emitter captured the old instance before the swap
	_, err := em.Emit(t.Context(), "e", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, old.Len())
	assert.Equal(t, 0, replacement.Len())
}
