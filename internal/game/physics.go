package game

import (
	"math"

	"github.com/roach88/rewind/internal/ir"
)

// Screen is the wrapping play area.
type Screen struct {
	Width, Height float64
}

// Wrap folds p back into the screen, Asteroids-style.
func (s Screen) Wrap(p ir.Vec2) ir.Vec2 {
	if s.Width > 0 {
		p.X = math.Mod(p.X, s.Width)
		if p.X < 0 {
			p.X += s.Width
		}
	}
	if s.Height > 0 {
		p.Y = math.Mod(p.Y, s.Height)
		if p.Y < 0 {
			p.Y += s.Height
		}
	}
	return p
}

// Center returns the middle of the screen.
func (s Screen) Center() ir.Vec2 {
	return ir.Vec2{X: s.Width / 2, Y: s.Height / 2}
}

// DistanceSquared is the squared distance between a and b.
func DistanceSquared(a, b ir.Vec2) float64 {
	d := b.Sub(a)
	return d.X*d.X + d.Y*d.Y
}

// CirclesOverlap reports whether two circles intersect.
func CirclesOverlap(a ir.Vec2, ra float64, b ir.Vec2, rb float64) bool {
	minDist := ra + rb
	return DistanceSquared(a, b) < minDist*minDist
}

// Heading returns the unit vector for angle (radians).
func Heading(angle float64) ir.Vec2 {
	return ir.Vec2{X: math.Cos(angle), Y: math.Sin(angle)}
}
