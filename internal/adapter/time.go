package adapter

import (
	"math"
	"slices"

	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/timeline"
)

// TimeSource yields the frame time.
type TimeSource struct{}

// Evaluate implements Node.
func (TimeSource) Evaluate(_ *Arena, e timeline.EvaluationTime) ir.Scalar {
	return ir.Scalar(e.T)
}

// Constant yields Value on every frame.
type Constant[T any] struct {
	Value T
}

// Evaluate implements Node.
func (n *Constant[T]) Evaluate(*Arena, timeline.EvaluationTime) T {
	return n.Value
}

// Offset evaluates Input at local time t-By.
type Offset[T any] struct {
	Input Handle[T]
	By    float64
}

// Evaluate implements Node.
func (n *Offset[T]) Evaluate(a *Arena, e timeline.EvaluationTime) T {
	return Eval(a, n.Input, e.Shift(n.By))
}

// Dilate evaluates Input at time t*Rate.
type Dilate[T any] struct {
	Input Handle[T]
	Rate  float64
}

// Evaluate implements Node.
func (n *Dilate[T]) Evaluate(a *Arena, e timeline.EvaluationTime) T {
	return Eval(a, n.Input, e.Scale(n.Rate))
}

// Repeat evaluates Input with time wrapped into [0, Period).
type Repeat[T any] struct {
	Input  Handle[T]
	Period float64
}

// Evaluate implements Node.
//
// Playing forward across a period boundary is not a rewind: the child first
// plays out the previous cycle, then steps back to the new local time under a
// paused time so its ledgers restore without pruning causal stops.
func (n *Repeat[T]) Evaluate(a *Arena, e timeline.EvaluationTime) T {
	local := e.Wrap(n.Period)
	if n.Period <= 0 || e.Paused || e.Resumed() || !e.Forward() || local.PrevT >= 0 {
		return Eval(a, n.Input, local)
	}

	tail := timeline.At(math.Nextafter(n.Period, 0), math.Mod(local.PrevT, n.Period)+n.Period, false)
	Eval(a, n.Input, tail)

	restart := timeline.At(local.T, tail.T, true)
	return Eval(a, n.Input, restart)
}

// Segment is one entry of a Sequence.
type Segment[T any] struct {
	Start float64
	Node  Handle[T]
}

// Sequence plays segments back to back. The active segment is the last one
// whose Start is at or before t (the first one before any start) and is
// evaluated in its local time t-Start.
type Sequence[T any] struct {
	Segments []Segment[T]
}

// NewSequence creates a Sequence with segments ordered by start time.
func NewSequence[T any](segments ...Segment[T]) *Sequence[T] {
	segs := slices.Clone(segments)
	slices.SortStableFunc(segs, func(a, b Segment[T]) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})
	return &Sequence[T]{Segments: segs}
}

// Evaluate implements Node.
func (n *Sequence[T]) Evaluate(a *Arena, e timeline.EvaluationTime) T {
	if len(n.Segments) == 0 {
		timeline.Fatal(timeline.ErrCodeMissingNode, "", "sequence has no segments")
	}
	active := n.Segments[0]
	for _, seg := range n.Segments[1:] {
		if seg.Start > e.T {
			break
		}
		active = seg
	}
	return Eval(a, active.Node, e.Shift(active.Start))
}
