package timeline

import (
	"cmp"
	"slices"
)

// Deterministic is the batch of stops that are pure functions of time, such
// as keyframes declared up front. It is never pruned and never handed out by
// a Registry.
const Deterministic BatchID = 0

// DiscreteStop is one recorded (time, value) pair of a ledger.
type DiscreteStop[T any] struct {
	T        float64
	Value    T
	Batch    BatchID
	Disabled bool
}

// Discrete is the stop ledger of one animated discrete property.
//
// Stops are appended at any point in a frame and normalised lazily: the next
// Animate sorts them ascending by time and keeps only the most recently
// inserted stop per timestamp.
//
// t and prevT record where evaluation last left off. They are private and
// only move through Animate.
type Discrete[T any] struct {
	t     float64
	prevT float64
	stops []DiscreteStop[T]
	dirty bool

	pruned []BatchID
}

// NewDiscrete creates an empty ledger.
func NewDiscrete[T any]() *Discrete[T] {
	return &Discrete[T]{}
}

// Insert appends an enabled stop.
func (d *Discrete[T]) Insert(t float64, v T, batch BatchID) {
	d.InsertStop(DiscreteStop[T]{T: t, Value: v, Batch: batch})
}

// InsertDisabled appends a disabled stop. Disabled stops occupy their
// timestamp (coalescing earlier stops there) but never fire.
func (d *Discrete[T]) InsertDisabled(t float64, v T, batch BatchID) {
	d.InsertStop(DiscreteStop[T]{T: t, Value: v, Batch: batch, Disabled: true})
}

// InsertStop appends s.
func (d *Discrete[T]) InsertStop(s DiscreteStop[T]) {
	d.stops = append(d.stops, s)
	d.dirty = true
}

// InsertValue appends a stop whose value arrives type-erased, as it does from
// engine commands. A value of the wrong type is fatal.
func (d *Discrete[T]) InsertValue(t float64, v any, batch BatchID, disabled bool) {
	tv, ok := v.(T)
	if !ok {
		var zero T
		Fatal(ErrCodeTypeMismatch, "", "stop value %T is not %T", v, zero)
	}
	d.InsertStop(DiscreteStop[T]{T: t, Value: tv, Batch: batch, Disabled: disabled})
}

// Stops returns the normalised stops. The slice is owned by the ledger.
func (d *Discrete[T]) Stops() []DiscreteStop[T] {
	d.normalize()
	return d.stops
}

// Len returns the number of normalised stops.
func (d *Discrete[T]) Len() int {
	d.normalize()
	return len(d.stops)
}

// Time returns the ledger's bookkeeping (t, prev_t).
func (d *Discrete[T]) Time() (t, prevT float64) {
	return d.t, d.prevT
}

// LastPruned returns the batches removed by the most recent Animate, in
// ascending order. Nil when nothing was pruned.
func (d *Discrete[T]) LastPruned() []BatchID {
	return d.pruned
}

// Animate evaluates the ledger at time and returns the value of the stop
// that takes effect, or ok=false when no stop was crossed.
//
// A ledger holding exactly one enabled stop returns it on every call.
func (d *Discrete[T]) Animate(time EvaluationTime) (T, bool) {
	var zero T

	d.normalize()

	prev := d.t
	d.prevT = prev
	d.t = time.T

	d.pruned = nil
	if time.Resumed() || (!time.Paused && d.t < prev) {
		d.pruned = d.pruneNonDeterministic(time.T)
	}

	if len(d.stops) == 1 && !d.stops[0].Disabled {
		return d.stops[0].Value, true
	}

	switch {
	case d.t > prev:
		return d.fireForward(prev, d.t)
	case d.t < prev:
		return d.fireBackward(d.t, prev)
	}
	return zero, false
}

// fireForward visits stops in (from, to] ascending. The last enabled one wins.
func (d *Discrete[T]) fireForward(from, to float64) (T, bool) {
	var (
		out   T
		fired bool
	)
	start := d.firstAfter(from)
	for i := start; i < len(d.stops) && d.stops[i].T <= to; i++ {
		if d.stops[i].Disabled {
			continue
		}
		out, fired = d.stops[i].Value, true
	}
	return out, fired
}

// fireBackward visits stops in [to, from) descending, then restores the
// nearest enabled stop at or before to if anything fired.
func (d *Discrete[T]) fireBackward(to, from float64) (T, bool) {
	var (
		out   T
		fired bool
	)
	lo := d.firstAtOrAfter(to)
	hi := d.firstAtOrAfter(from)
	for i := hi - 1; i >= lo; i-- {
		if d.stops[i].Disabled {
			continue
		}
		out, fired = d.stops[i].Value, true
	}
	if !fired {
		return out, false
	}

	for i := d.firstAfter(to) - 1; i >= 0; i-- {
		if !d.stops[i].Disabled {
			return d.stops[i].Value, true
		}
	}
	return out, true
}

// firstAfter returns the index of the first stop with T > t.
func (d *Discrete[T]) firstAfter(t float64) int {
	i, _ := slices.BinarySearchFunc(d.stops, t, func(s DiscreteStop[T], t float64) int {
		if s.T <= t {
			return -1
		}
		return 1
	})
	return i
}

// firstAtOrAfter returns the index of the first stop with T >= t.
func (d *Discrete[T]) firstAtOrAfter(t float64) int {
	i, _ := slices.BinarySearchFunc(d.stops, t, func(s DiscreteStop[T], t float64) int {
		if s.T < t {
			return -1
		}
		return 1
	})
	return i
}

// normalize sorts stops by time and coalesces equal timestamps, keeping the
// latest insertion. Normalised stops always precede newer appends, so a
// stable sort leaves the latest insertion last within each run.
func (d *Discrete[T]) normalize() {
	if !d.dirty {
		return
	}
	d.dirty = false

	slices.SortStableFunc(d.stops, func(a, b DiscreteStop[T]) int {
		return cmp.Compare(a.T, b.T)
	})

	out := d.stops[:0]
	for i, s := range d.stops {
		if i+1 < len(d.stops) && d.stops[i+1].T == s.T {
			continue
		}
		out = append(out, s)
	}
	clear(d.stops[len(out):])
	d.stops = out
}
