package adapter

import (
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/timeline"
)

// Before yields Input while t < At and None afterwards.
// Input is evaluated on every frame so ledgers below keep their bookkeeping.
type Before[T any] struct {
	Input Handle[T]
	At    float64
}

// Evaluate implements Node.
func (n *Before[T]) Evaluate(a *Arena, e timeline.EvaluationTime) ir.Option[T] {
	v := Eval(a, n.Input, e)
	if e.T < n.At {
		return ir.Some(v)
	}
	return ir.None[T]()
}

// After yields Input once t >= At and None before.
type After[T any] struct {
	Input Handle[T]
	At    float64
}

// Evaluate implements Node.
func (n *After[T]) Evaluate(a *Arena, e timeline.EvaluationTime) ir.Option[T] {
	v := Eval(a, n.Input, e)
	if e.T >= n.At {
		return ir.Some(v)
	}
	return ir.None[T]()
}

// Flatten collapses one level of optionality.
type Flatten[T any] struct {
	Input Handle[ir.Option[ir.Option[T]]]
}

// Evaluate implements Node.
func (n *Flatten[T]) Evaluate(a *Arena, e timeline.EvaluationTime) ir.Option[T] {
	outer := Eval(a, n.Input, e)
	if inner, ok := outer.Get(); ok {
		return inner
	}
	return ir.None[T]()
}
