package timeline

import "sync/atomic"

// BatchID groups the stops inserted atomically by one causal event.
// Opaque; only equality is meaningful.
type BatchID uint64

// Registry hands out batch ids.
//
// Every batch-tagged insertion draws from the injected Registry before
// inserting its stops, and all stops of one causal event share that draw.
// Implemented by Counter (production) and testutil.DeterministicRegistry.
type Registry interface {
	Next() BatchID
}

// Counter is the process-wide monotonically increasing batch id generator.
//
// Thread-safety: safe for concurrent use (atomic). Any external system may
// draw ids while the engine evaluates.
//
// There is no Reset: ids are never reused.
type Counter struct {
	seq atomic.Uint64
}

// NewCounter creates a counter whose first id is 1.
func NewCounter() *Counter {
	return &Counter{}
}

// Next returns the next batch id.
// Calls are linearizable; each call returns a unique, increasing value.
func (c *Counter) Next() BatchID {
	return BatchID(c.seq.Add(1))
}

// Current returns the last id handed out without drawing a new one.
func (c *Counter) Current() BatchID {
	return BatchID(c.seq.Load())
}

var _ Registry = (*Counter)(nil)
