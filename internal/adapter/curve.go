package adapter

import (
	"fmt"

	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/timeline"
)

// Ease names an easing function over [0, 1].
type Ease string

const (
	EaseLinear     Ease = "linear"
	EaseIn         Ease = "ease_in"
	EaseOut        Ease = "ease_out"
	EaseSmoothstep Ease = "smoothstep"
)

// ParseEase validates an easing name. The empty string means linear.
func ParseEase(s string) (Ease, error) {
	switch e := Ease(s); e {
	case "":
		return EaseLinear, nil
	case EaseLinear, EaseIn, EaseOut, EaseSmoothstep:
		return e, nil
	}
	return "", fmt.Errorf("unknown ease %q", s)
}

// Apply eases x, clamped to [0, 1] first.
func (e Ease) Apply(x float64) float64 {
	x = min(max(x, 0), 1)
	switch e {
	case EaseIn:
		return x * x
	case EaseOut:
		return 1 - (1-x)*(1-x)
	case EaseSmoothstep:
		return x * x * (3 - 2*x)
	}
	return x
}

// Curve eases a scalar child.
type Curve struct {
	Input Handle[ir.Scalar]
	Ease  Ease
}

// Evaluate implements Node.
func (n *Curve) Evaluate(a *Arena, e timeline.EvaluationTime) ir.Scalar {
	return ir.Scalar(n.Ease.Apply(float64(Eval(a, n.Input, e))))
}

// Multiply scales Input by the scalar Factor.
type Multiply[T any] struct {
	Input  Handle[T]
	Factor Handle[ir.Scalar]
	Scale  func(v T, f float64) T
}

// NewMultiply creates a Multiply using T's Scale method.
func NewMultiply[T ir.Scaler[T]](input Handle[T], factor Handle[ir.Scalar]) *Multiply[T] {
	return &Multiply[T]{
		Input:  input,
		Factor: factor,
		Scale:  func(v T, f float64) T { return v.Scale(f) },
	}
}

// Evaluate implements Node.
func (n *Multiply[T]) Evaluate(a *Arena, e timeline.EvaluationTime) T {
	v := Eval(a, n.Input, e)
	f := Eval(a, n.Factor, e)
	return n.Scale(v, float64(f))
}
