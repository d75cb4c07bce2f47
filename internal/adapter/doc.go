// Package adapter implements the adapter graph: composable evaluation nodes
// that turn ledgers and clocks into per-frame values.
//
// Nodes live in an Arena and reference each other by typed Handle. A root is
// evaluated by pulling it with Eval; each node recursively pulls its children,
// bottoming out at stop ledgers and the frame's EvaluationTime. Evaluation is
// an ordinary synchronous call.
//
// Node kinds:
//
//	Animate      ledger stops crossed this frame, as Option[T]
//	Interpolate  lerp between the stops around t (clamped or extrapolating)
//	TimeSource   the frame time as a Scalar
//	Constant     a fixed value
//	Offset       child under local time t-offset
//	Dilate       child under time scaled by rate
//	Repeat       child under time wrapped to a period
//	Sequence     the segment active at t, in segment-local time
//	Curve        eased scalar in [0,1]
//	Multiply     value scaled by a scalar factor
//	Before/After value present only before/after a time
//	Flatten      Option[Option[T]] to Option[T]
//
// Discretize samples a continuous node at explicit timestamps into a new
// ledger, which an Animate node then replays.
//
// A bad handle or a handle of the wrong value type is a programmer error and
// panics with *timeline.FatalError.
package adapter
