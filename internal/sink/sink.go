// Package sink writes evaluated adapter outputs into external state.
//
// The external store is opaque: a sink only needs to read the current field
// value, write it, and remove it. Every write is skipped when the new value
// equals the current one, so unchanged frames cause no downstream
// invalidation.
package sink

import (
	"fmt"

	"github.com/roach88/rewind/internal/adapter"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/timeline"
)

// Target is one field of an external record.
type Target[T comparable] interface {
	// Get returns the current value and whether the field is present.
	Get() (T, bool)
	Set(v T)
	Remove()
}

// Op is what a sink did to its target on one frame.
type Op string

const (
	OpNone   Op = "none"
	OpSet    Op = "set"
	OpRemove Op = "remove"
)

// Write describes one sink run. Value is set for OpSet only.
type Write struct {
	Op    Op
	Value any
}

// Changed reports whether the target was modified.
func (w Write) Changed() bool {
	return w.Op != OpNone
}

// Sink pulls one node and applies its result.
type Sink interface {
	Run(a *adapter.Arena, e timeline.EvaluationTime) Write
}

// Mode selects how TryApply treats a missing result.
type Mode string

const (
	// ModeUpdate writes present results and leaves the field alone otherwise.
	ModeUpdate Mode = ir.ModeUpdate

	// ModeDirect mirrors presence: a present result inserts the field, a
	// missing one removes it.
	ModeDirect Mode = ir.ModeDirect
)

// ParseMode validates a try_apply mode. The empty string means update.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeUpdate, nil
	case ModeUpdate, ModeDirect:
		return m, nil
	}
	return "", fmt.Errorf("unknown try_apply mode %q", s)
}

// Apply always writes the node's value.
type Apply[T comparable] struct {
	Node   adapter.Handle[T]
	Target Target[T]
}

// Run implements Sink.
func (s *Apply[T]) Run(a *adapter.Arena, e timeline.EvaluationTime) Write {
	return set(s.Target, adapter.Eval(a, s.Node, e))
}

// TryApply writes an optional result according to Mode.
type TryApply[T comparable] struct {
	Node   adapter.Handle[ir.Option[T]]
	Target Target[T]
	Mode   Mode
}

// Run implements Sink.
func (s *TryApply[T]) Run(a *adapter.Arena, e timeline.EvaluationTime) Write {
	v, ok := adapter.Eval(a, s.Node, e).Get()
	if ok {
		return set(s.Target, v)
	}
	if s.Mode == ModeDirect {
		return remove(s.Target)
	}
	return Write{Op: OpNone}
}

// TryReplace applies a nested optional: outer None leaves the field alone,
// Some(None) removes it and Some(Some(v)) sets it to v.
type TryReplace[T comparable] struct {
	Node   adapter.Handle[ir.Option[ir.Option[T]]]
	Target Target[T]
}

// Run implements Sink.
func (s *TryReplace[T]) Run(a *adapter.Arena, e timeline.EvaluationTime) Write {
	outer, ok := adapter.Eval(a, s.Node, e).Get()
	if !ok {
		return Write{Op: OpNone}
	}
	if v, ok := outer.Get(); ok {
		return set(s.Target, v)
	}
	return remove(s.Target)
}

func set[T comparable](t Target[T], v T) Write {
	if cur, ok := t.Get(); ok && cur == v {
		return Write{Op: OpNone}
	}
	t.Set(v)
	return Write{Op: OpSet, Value: v}
}

func remove[T comparable](t Target[T]) Write {
	if _, ok := t.Get(); !ok {
		return Write{Op: OpNone}
	}
	t.Remove()
	return Write{Op: OpRemove}
}
