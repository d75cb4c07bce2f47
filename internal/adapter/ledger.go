package adapter

import (
	"math"

	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/timeline"
)

// Animate replays a ledger. The result is None when no stop was crossed.
type Animate[T any] struct {
	Ledger *timeline.Discrete[T]
}

// Evaluate implements Node.
func (n *Animate[T]) Evaluate(_ *Arena, e timeline.EvaluationTime) ir.Option[T] {
	if n.Ledger == nil {
		timeline.Fatal(timeline.ErrCodeMissingLedger, "", "animate node has no ledger")
	}
	if v, ok := n.Ledger.Animate(e); ok {
		return ir.Some(v)
	}
	return ir.None[T]()
}

// Interpolate lerps between the ledger stops around the current time.
//
// With Clamp the factor is limited to [0, 1] and the result holds at the
// boundary stops; without it the boundary pair is extrapolated.
// An empty ledger yields the zero value.
type Interpolate[T any] struct {
	Ledger *timeline.Discrete[T]
	Lerp   func(from, to T, f float64) T
	Clamp  bool

	enabled []timeline.DiscreteStop[T]
}

// NewInterpolate creates an Interpolate over ledger using T's Lerp method.
func NewInterpolate[T ir.Lerper[T]](ledger *timeline.Discrete[T], clamp bool) *Interpolate[T] {
	return &Interpolate[T]{
		Ledger: ledger,
		Lerp:   func(from, to T, f float64) T { return from.Lerp(to, f) },
		Clamp:  clamp,
	}
}

// Evaluate implements Node.
func (n *Interpolate[T]) Evaluate(_ *Arena, e timeline.EvaluationTime) T {
	var zero T
	if n.Ledger == nil {
		timeline.Fatal(timeline.ErrCodeMissingLedger, "", "interpolate node has no ledger")
	}

	// Runs bookkeeping and pruning; the crossed value itself is unused.
	n.Ledger.Animate(e)

	stops := n.enabledStops()
	switch len(stops) {
	case 0:
		return zero
	case 1:
		return stops[0].Value
	}

	from, to := interpolationPair(stops, e.T)
	span := to.T - from.T
	f := 0.0
	if span != 0 {
		f = (e.T - from.T) / span
	}
	if n.Clamp {
		f = min(max(f, 0), 1)
	}
	return n.Lerp(from.Value, to.Value, f)
}

func (n *Interpolate[T]) enabledStops() []timeline.DiscreteStop[T] {
	n.enabled = n.enabled[:0]
	for _, s := range n.Ledger.Stops() {
		if !s.Disabled {
			n.enabled = append(n.enabled, s)
		}
	}
	return n.enabled
}

// interpolationPair picks the stop closest to t and pairs it with its
// successor when it lies at or before t, or its predecessor when it lies
// after. Boundary stops pair with their only neighbour. len(stops) >= 2.
func interpolationPair[T any](stops []timeline.DiscreteStop[T], t float64) (from, to timeline.DiscreteStop[T]) {
	closest := 0
	best := math.Abs(stops[0].T - t)
	for i := 1; i < len(stops); i++ {
		d := math.Abs(stops[i].T - t)
		if d < best {
			closest, best = i, d
		}
	}

	i := closest
	if stops[closest].T > t {
		i = closest - 1
	}
	i = min(max(i, 0), len(stops)-2)
	return stops[i], stops[i+1]
}
