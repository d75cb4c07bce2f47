package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/timeline"
)

func TestScreen_Wrap(t *testing.T) {
	s := Screen{Width: 10, Height: 5}
	assert.Equal(t, ir.Vec2{X: 2, Y: 4}, s.Wrap(ir.Vec2{X: 12, Y: -1}))
	assert.Equal(t, ir.Vec2{X: 0, Y: 0}, s.Wrap(ir.Vec2{X: 10, Y: 5}))
	assert.Equal(t, ir.Vec2{X: 3, Y: 3}, Screen{}.Wrap(ir.Vec2{X: 3, Y: 3}))
}

func TestCirclesOverlap(t *testing.T) {
	a := ir.Vec2{X: 0, Y: 0}
	assert.True(t, CirclesOverlap(a, 1, ir.Vec2{X: 1.5, Y: 0}, 1))
	assert.False(t, CirclesOverlap(a, 1, ir.Vec2{X: 2, Y: 0}, 1), "touching is not overlapping")
	assert.Equal(t, 25.0, DistanceSquared(a, ir.Vec2{X: 3, Y: 4}))
}

func TestMotion(t *testing.T) {
	m := &Motion{
		Origin:   ir.Vec2{X: 8, Y: 1},
		Velocity: Heading(0).Scale(2),
		Start:    1,
		Screen:   Screen{Width: 10, Height: 5},
	}
	assert.Equal(t, ir.Vec2{X: 8, Y: 1}, m.At(1))
	assert.Equal(t, ir.Vec2{X: 2, Y: 1}, m.At(3), "wraps past the right edge")
	assert.Equal(t, m.At(2.5), m.Evaluate(nil, timeline.At(2.5, 2, false)))

	up := Heading(math.Pi / 2)
	assert.InDelta(t, 0, up.X, 1e-12)
	assert.InDelta(t, 1, up.Y, 1e-12)
}
