package game

import (
	"github.com/roach88/rewind/internal/adapter"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/timeline"
)

// Motion is straight-line travel from Origin at time Start, wrapped to the
// screen. Position is a pure function of time, so rewinding needs no
// ledger.
type Motion struct {
	Origin   ir.Vec2
	Velocity ir.Vec2
	Start    float64
	Screen   Screen
}

var _ adapter.Node[ir.Vec2] = (*Motion)(nil)

// At returns the position at t.
func (m *Motion) At(t float64) ir.Vec2 {
	return m.Screen.Wrap(m.Origin.Add(m.Velocity.Scale(t - m.Start)))
}

// Evaluate implements adapter.Node.
func (m *Motion) Evaluate(_ *adapter.Arena, e timeline.EvaluationTime) ir.Vec2 {
	return m.At(e.T)
}
