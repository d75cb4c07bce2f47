package timeline

import "math"

// EvaluationTime is the per-frame time value threaded through every
// evaluation call. It is transient and never stored on a node.
type EvaluationTime struct {
	T          float64
	PrevT      float64
	Paused     bool
	PrevPaused bool
}

// At returns an EvaluationTime for a ledger or node evaluated at t, coming
// from prevT, with a constant pause state.
func At(t, prevT float64, paused bool) EvaluationTime {
	return EvaluationTime{T: t, PrevT: prevT, Paused: paused, PrevPaused: paused}
}

// Forward reports whether time moved forward this frame.
func (e EvaluationTime) Forward() bool {
	return e.T > e.PrevT
}

// Backward reports whether time moved backward this frame.
func (e EvaluationTime) Backward() bool {
	return e.T < e.PrevT
}

// Resumed reports whether the timeline was unpaused this frame.
func (e EvaluationTime) Resumed() bool {
	return e.PrevPaused && !e.Paused
}

// Playing reports whether the timeline is advancing forward unpaused, the
// only state in which live systems may produce new causal stops.
func (e EvaluationTime) Playing() bool {
	return !e.Paused && e.Forward()
}

// Shift returns e with both timestamps moved by -offset, so a child sees
// local time t-offset.
func (e EvaluationTime) Shift(offset float64) EvaluationTime {
	e.T -= offset
	e.PrevT -= offset
	return e
}

// Scale returns e with both timestamps multiplied by rate.
func (e EvaluationTime) Scale(rate float64) EvaluationTime {
	e.T *= rate
	e.PrevT *= rate
	return e
}

// Wrap maps e into one period [0, period) of a repeating child. PrevT is
// shifted by the same cycle count as T, so after a forward step across a
// period boundary PrevT is negative. Ledgers compare against their own last
// time, not PrevT, so callers must split such a step themselves.
func (e EvaluationTime) Wrap(period float64) EvaluationTime {
	if period <= 0 {
		return e
	}
	cycle := math.Floor(e.T / period)
	shift := cycle * period
	e.T -= shift
	e.PrevT -= shift
	return e
}
