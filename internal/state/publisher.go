// Package state holds the latest published snapshot. The engine is
// the only writer; renderers and the HTTP layer read concurrently.
package state

import (
	"sync/atomic"

	"github.com/linkpulsehq/linkpulse/pkg/types"
)

// Publisher retains exactly one snapshot, the latest. Publish swaps it
// atomically so readers never observe fields from two different
// cycles.
type Publisher struct {
	current atomic.Pointer[types.Snapshot]
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish replaces the retained snapshot. The snapshot must not be
// mutated after it is handed over.
func (p *Publisher) Publish(snap *types.Snapshot) {
	if snap == nil {
		return
	}
	p.current.Store(snap)
}

// Current returns the latest snapshot, or nil before the first
// publish. Never blocks the writer.
func (p *Publisher) Current() *types.Snapshot {
	return p.current.Load()
}
