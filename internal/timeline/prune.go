package timeline

import "slices"

// pruneNonDeterministic deletes every causal batch whose stops all lie
// strictly after t. A batch with any stop at or before t is kept whole.
// Deterministic stops are never pruned. Returns the removed batches in
// ascending order.
func (d *Discrete[T]) pruneNonDeterministic(t float64) []BatchID {
	if len(d.stops) == 0 {
		return nil
	}

	// Earliest stop per batch. Stops are sorted, so the first sighting is
	// the earliest.
	earliest := make(map[BatchID]float64)
	for _, s := range d.stops {
		if s.Batch == Deterministic {
			continue
		}
		if _, seen := earliest[s.Batch]; !seen {
			earliest[s.Batch] = s.T
		}
	}

	doomed := make(map[BatchID]bool)
	for batch, first := range earliest {
		if first > t {
			doomed[batch] = true
		}
	}
	if len(doomed) == 0 {
		return nil
	}

	d.stops = slices.DeleteFunc(d.stops, func(s DiscreteStop[T]) bool {
		return doomed[s.Batch]
	})

	pruned := make([]BatchID, 0, len(doomed))
	for batch := range doomed {
		pruned = append(pruned, batch)
	}
	slices.Sort(pruned)
	return pruned
}

// Batches returns the distinct batches present in the ledger, ascending.
func (d *Discrete[T]) Batches() []BatchID {
	d.normalize()
	seen := make(map[BatchID]bool)
	var out []BatchID
	for _, s := range d.stops {
		if !seen[s.Batch] {
			seen[s.Batch] = true
			out = append(out, s.Batch)
		}
	}
	slices.Sort(out)
	return out
}

// TakePruned returns LastPruned and clears it, so each pruning is reported
// once even when the ledger is not animated on the next frame.
func (d *Discrete[T]) TakePruned() []BatchID {
	p := d.pruned
	d.pruned = nil
	return p
}

// Ledger is the type-erased view of a Discrete ledger used by the engine's
// ledger registry and command application.
type Ledger interface {
	InsertValue(t float64, v any, batch BatchID, disabled bool)
	LastPruned() []BatchID
	TakePruned() []BatchID
	Batches() []BatchID
	Len() int
}

var _ Ledger = (*Discrete[float64])(nil)
