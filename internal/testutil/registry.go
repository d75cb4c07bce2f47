package testutil

import (
	"sync"

	"github.com/roach88/rewind/internal/timeline"
)

// DeterministicRegistry hands out batch ids for tests.
//
// Unlike timeline.Counter, DeterministicRegistry can be reset, so the same
// scenario can run several times with identical batch ids.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicRegistry struct {
	mu   sync.Mutex
	next timeline.BatchID
}

// NewDeterministicRegistry creates a registry whose first id is 1.
func NewDeterministicRegistry() *DeterministicRegistry {
	return &DeterministicRegistry{}
}

// Next returns the next batch id.
func (r *DeterministicRegistry) Next() timeline.BatchID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	return r.next
}

// Current returns the last id handed out without drawing a new one.
func (r *DeterministicRegistry) Current() timeline.BatchID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// Reset rewinds the registry. After Reset, Next returns 1.
func (r *DeterministicRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = 0
}

var _ timeline.Registry = (*DeterministicRegistry)(nil)
