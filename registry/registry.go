// Package registry holds the process-wide default event publisher.
//
// Prefer passing a publisher (or an events.Emitter) explicitly; the registry
// exists for call sites that cannot thread one through, and for swapping in
// the in-memory backend from tests. Note the staleness hazard: code that
// captured the previous instance before SetDefault keeps publishing to it.
package registry

import (
	"sync/atomic"

	"github.com/next-trace/scg-events/adapters/logging"
	"github.com/next-trace/scg-events/contract/event"
)

// holder wraps the interface value so the pointer swap is a single word.
type holder struct{ pub event.Publisher }

var current atomic.Pointer[holder]

// Default returns the process-wide publisher, lazily installing a logging
// backend on first use if none was set. Reads are lock-free; repeated calls
// before any SetDefault return the same instance.
func Default() event.Publisher {
	if h := current.Load(); h != nil {
		return h.pub
	}

	// first caller wins; losers adopt the winner's instance
	fallback := &holder{pub: logging.New()}
	if current.CompareAndSwap(nil, fallback) {
		return fallback.pub
	}

	return current.Load().pub
}

// SetDefault replaces the process-wide publisher. It is safe to call
// concurrently with Default and may be called repeatedly (e.g., the in-memory
// backend in tests, a broker-backed one in production). A nil publisher is
// ignored.
func SetDefault(p event.Publisher) {
	if p == nil {
		return
	}

	current.Store(&holder{pub: p})
}
