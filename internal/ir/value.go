package ir

import (
	"fmt"
	"math"
)

// Kind names a value type the graph compiler can instantiate.
type Kind string

const (
	KindBool   Kind = "bool"
	KindScalar Kind = "scalar"
	KindVec2   Kind = "vec2"
	KindEnum   Kind = "enum"
)

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindBool, KindScalar, KindVec2, KindEnum:
		return true
	}
	return false
}

// Lerpable reports whether values of kind k can be interpolated.
func (k Kind) Lerpable() bool {
	return k == KindScalar || k == KindVec2
}

// Lerper is satisfied by values that can be linearly interpolated.
type Lerper[T any] interface {
	Lerp(to T, f float64) T
}

// Scaler is satisfied by values that can be multiplied by a scalar factor.
type Scaler[T any] interface {
	Scale(f float64) T
}

// Scalar is a lerpable float64.
type Scalar float64

// Lerp returns s + (to-s)*f. f is not clamped.
func (s Scalar) Lerp(to Scalar, f float64) Scalar {
	return s + (to-s)*Scalar(f)
}

// Scale returns s*f.
func (s Scalar) Scale(f float64) Scalar {
	return s * Scalar(f)
}

// Vec2 is a 2D vector in world units.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Lerp interpolates component-wise. f is not clamped.
func (v Vec2) Lerp(to Vec2, f float64) Vec2 {
	return Vec2{
		X: v.X + (to.X-v.X)*f,
		Y: v.Y + (to.Y-v.Y)*f,
	}
}

// Scale multiplies both components by f.
func (v Vec2) Scale(f float64) Vec2 {
	return Vec2{X: v.X * f, Y: v.Y * f}
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Enum is a discrete state-machine value (e.g. "docked", "undocking").
type Enum string

// Option holds a value that may be absent.
// The zero Option is None.
type Option[T any] struct {
	Value T
	Valid bool
}

// Some returns a present Option.
func Some[T any](v T) Option[T] {
	return Option[T]{Value: v, Valid: true}
}

// None returns an absent Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

// OrElse returns the value if present, otherwise fallback.
func (o Option[T]) OrElse(fallback T) T {
	if o.Valid {
		return o.Value
	}
	return fallback
}

// String implements fmt.Stringer for debug output.
func (o Option[T]) String() string {
	if !o.Valid {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o.Value)
}
