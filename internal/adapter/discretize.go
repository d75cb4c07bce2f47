package adapter

import (
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/timeline"
)

// Discretize samples src at each of times and materialises the results as a
// new ledger, every stop tagged with batch.
//
// src must be continuous: a pure function of time that does not keep ledger
// bookkeeping of its own.
func Discretize[T any](a *Arena, src Handle[T], times []float64, batch timeline.BatchID) *timeline.Discrete[T] {
	ledger := timeline.NewDiscrete[T]()
	for _, t := range times {
		ledger.Insert(t, Eval(a, src, timeline.At(t, t, true)), batch)
	}
	return ledger
}

// DiscretizeNode samples src into a ledger and adds an Animate node replaying
// it. Returns the node handle and the ledger so callers can register it.
func DiscretizeNode[T any](a *Arena, src Handle[T], times []float64, batch timeline.BatchID) (Handle[ir.Option[T]], *timeline.Discrete[T]) {
	ledger := Discretize(a, src, times, batch)
	return Add[ir.Option[T]](a, &Animate[T]{Ledger: ledger}), ledger
}
