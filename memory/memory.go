package memory

import (
	"github.com/next-trace/scg-events/adapters/inmemory"
	"github.com/next-trace/scg-events/events"
	"github.com/next-trace/scg-events/registry"
)

// New constructs an emitter backed by a fresh in-memory publisher and returns
// both, so tests publish through the emitter and assert on the recording.
func New() (*events.Emitter, *inmemory.Publisher) {
	pub := inmemory.New()

	return events.NewEmitter(pub), pub
}

// Install sets a fresh in-memory publisher as the process-wide default and
// returns it for inspection. Typical test setup:
//
//	recorded := memory.Install()
//	... exercise code that publishes via events.Emit or registry.Default ...
//	require.Len(t, recorded.Events(), 1)
func Install() *inmemory.Publisher {
	pub := inmemory.New()
	registry.SetDefault(pub)

	return pub
}
