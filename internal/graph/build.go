package graph

import (
	"fmt"

	"github.com/roach88/rewind/internal/adapter"
	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/sink"
	"github.com/roach88/rewind/internal/timeline"
	"github.com/roach88/rewind/internal/world"
)

// addLedger creates the typed ledger for l, seeds it and registers it.
func (p *Program) addLedger(l ir.LedgerSpec) error {
	switch l.Kind {
	case ir.KindBool:
		return addKindLedger[bool](p, l)
	case ir.KindScalar:
		return addKindLedger[ir.Scalar](p, l)
	case ir.KindVec2:
		return addKindLedger[ir.Vec2](p, l)
	case ir.KindEnum:
		return addKindLedger[ir.Enum](p, l)
	}
	return fmt.Errorf("unsupported kind %q", l.Kind)
}

func addKindLedger[T any](p *Program, l ir.LedgerSpec) error {
	if l.Optional {
		return registerLedger(p, l, func(v any) ir.Option[T] {
			if v == nil {
				return ir.None[T]()
			}
			return ir.Some(v.(T))
		})
	}
	return registerLedger(p, l, func(v any) T { return v.(T) })
}

// registerLedger seeds a Discrete[L] with l's stops under the deterministic
// batch and registers it for InsertCommands.
func registerLedger[L any](p *Program, l ir.LedgerSpec, conv func(any) L) error {
	d := timeline.NewDiscrete[L]()
	for _, s := range l.Stops {
		d.InsertStop(timeline.DiscreteStop[L]{
			T:        s.T,
			Value:    conv(s.Value),
			Batch:    timeline.Deterministic,
			Disabled: s.Disabled,
		})
	}
	p.ledgers[l.Name] = d
	p.wrap[l.Name] = func(v any) any { return conv(v) }
	return p.Engine.RegisterLedger(engine.LedgerID(l.Name), engine.TimelineID(l.Timeline), d)
}

// addNode adds n to the arena. Inputs are already built.
func (p *Program) addNode(n ir.NodeSpec) error {
	vt, ok := p.types[n.Name]
	if !ok {
		return fmt.Errorf("no inferred type")
	}

	// Nodes whose value type needs Lerp or Scale dispatch on the concrete kind.
	switch n.Type {
	case ir.NodeInterpolate:
		switch vt.Kind {
		case ir.KindScalar:
			return addInterpolate[ir.Scalar](p, n)
		case ir.KindVec2:
			return addInterpolate[ir.Vec2](p, n)
		}
		return fmt.Errorf("cannot interpolate %s", vt)
	case ir.NodeMultiply:
		switch vt.Kind {
		case ir.KindScalar:
			return addMultiply[ir.Scalar](p, n)
		case ir.KindVec2:
			return addMultiply[ir.Vec2](p, n)
		}
		return fmt.Errorf("cannot multiply %s", vt)
	}

	switch vt.Kind {
	case ir.KindBool:
		return addKindNode[bool](p, n, vt.Depth)
	case ir.KindScalar:
		return addKindNode[ir.Scalar](p, n, vt.Depth)
	case ir.KindVec2:
		return addKindNode[ir.Vec2](p, n, vt.Depth)
	case ir.KindEnum:
		return addKindNode[ir.Enum](p, n, vt.Depth)
	}
	return fmt.Errorf("unsupported kind %q", vt.Kind)
}

// addKindNode picks the Go output type from the option depth.
func addKindNode[T any](p *Program, n ir.NodeSpec, depth int) error {
	switch depth {
	case 0:
		return addPlain[T](p, n)
	case 1:
		return addWrapped[T](p, n)
	case 2:
		return addWrapped[ir.Option[T]](p, n)
	}
	return fmt.Errorf("unsupported option depth %d", depth)
}

// addWarp handles the nodes that exist at every depth. Reports false if n
// is not one of them.
func addWarp[V any](p *Program, n ir.NodeSpec) bool {
	a := p.Engine.Arena()
	var h adapter.Handle[V]

	switch n.Type {
	case ir.NodeOffset:
		h = adapter.Add[V](a, &adapter.Offset[V]{Input: Handle[V](p, n.Input), By: n.Offset})
	case ir.NodeDilate:
		h = adapter.Add[V](a, &adapter.Dilate[V]{Input: Handle[V](p, n.Input), Rate: n.Rate})
	case ir.NodeRepeat:
		h = adapter.Add[V](a, &adapter.Repeat[V]{Input: Handle[V](p, n.Input), Period: n.Period})
	case ir.NodeSequence:
		segments := make([]adapter.Segment[V], len(n.Segments))
		for i, seg := range n.Segments {
			segments[i] = adapter.Segment[V]{Start: seg.Start, Node: Handle[V](p, seg.Node)}
		}
		h = adapter.Add[V](a, adapter.NewSequence(segments...))
	default:
		return false
	}

	p.handles[n.Name] = h
	return true
}

// addPlain builds nodes producing a non-optional T.
func addPlain[T any](p *Program, n ir.NodeSpec) error {
	if addWarp[T](p, n) {
		return nil
	}
	a := p.Engine.Arena()

	switch n.Type {
	case ir.NodeTime:
		p.handles[n.Name] = adapter.Add[ir.Scalar](a, adapter.TimeSource{})
	case ir.NodeConstant:
		v, ok := n.Value.(T)
		if !ok {
			return fmt.Errorf("constant value %T is not %s", n.Value, n.Kind)
		}
		p.handles[n.Name] = adapter.Add[T](a, &adapter.Constant[T]{Value: v})
	case ir.NodeCurve:
		ease, err := adapter.ParseEase(n.Ease)
		if err != nil {
			return err
		}
		p.handles[n.Name] = adapter.Add[ir.Scalar](a, &adapter.Curve{Input: Handle[ir.Scalar](p, n.Input), Ease: ease})
	default:
		return fmt.Errorf("node type %q cannot produce a plain value", n.Type)
	}
	return nil
}

// addWrapped builds nodes producing ir.Option[U].
func addWrapped[U any](p *Program, n ir.NodeSpec) error {
	if addWarp[ir.Option[U]](p, n) {
		return nil
	}
	a := p.Engine.Arena()

	switch n.Type {
	case ir.NodeAnimate:
		d, ok := p.ledgers[n.Ledger].(*timeline.Discrete[U])
		if !ok {
			return fmt.Errorf("ledger %q has another element type", n.Ledger)
		}
		p.handles[n.Name] = adapter.Add[ir.Option[U]](a, &adapter.Animate[U]{Ledger: d})
	case ir.NodeBefore:
		p.handles[n.Name] = adapter.Add[ir.Option[U]](a, &adapter.Before[U]{Input: Handle[U](p, n.Input), At: n.At})
	case ir.NodeAfter:
		p.handles[n.Name] = adapter.Add[ir.Option[U]](a, &adapter.After[U]{Input: Handle[U](p, n.Input), At: n.At})
	case ir.NodeFlatten:
		p.handles[n.Name] = adapter.Add[ir.Option[U]](a, &adapter.Flatten[U]{Input: Handle[ir.Option[ir.Option[U]]](p, n.Input)})
	case ir.NodeDiscretize:
		// Graph-declared sampling is a pure function of time, so its stops
		// are deterministic and survive every rewind.
		h, d := adapter.DiscretizeNode(a, Handle[U](p, n.Input), n.Times, timeline.Deterministic)
		p.handles[n.Name] = h
		p.sampled[n.Name] = d
	default:
		return fmt.Errorf("node type %q cannot produce an option", n.Type)
	}
	return nil
}

func addInterpolate[T ir.Lerper[T]](p *Program, n ir.NodeSpec) error {
	d, ok := p.ledgers[n.Ledger].(*timeline.Discrete[T])
	if !ok {
		return fmt.Errorf("ledger %q has another element type", n.Ledger)
	}
	p.handles[n.Name] = adapter.Add[T](p.Engine.Arena(), adapter.NewInterpolate(d, n.Clamp))
	return nil
}

func addMultiply[T ir.Scaler[T]](p *Program, n ir.NodeSpec) error {
	node := adapter.NewMultiply(Handle[T](p, n.Input), Handle[ir.Scalar](p, n.Factor))
	p.handles[n.Name] = adapter.Add[T](p.Engine.Arena(), node)
	return nil
}

// addSink binds s to its record field.
func (p *Program) addSink(s ir.SinkSpec) error {
	vt, ok := p.types[s.Node]
	if !ok {
		return fmt.Errorf("node %q has no inferred type", s.Node)
	}
	switch vt.Kind {
	case ir.KindBool:
		return addKindSink[bool](p, s)
	case ir.KindScalar:
		return addKindSink[ir.Scalar](p, s)
	case ir.KindVec2:
		return addKindSink[ir.Vec2](p, s)
	case ir.KindEnum:
		return addKindSink[ir.Enum](p, s)
	}
	return fmt.Errorf("unsupported kind %q", vt.Kind)
}

func addKindSink[T comparable](p *Program, s ir.SinkSpec) error {
	target := world.Field[T](p.World, world.RecordID(s.Record), s.Field)

	var sk sink.Sink
	switch s.Type {
	case ir.SinkApply:
		sk = &sink.Apply[T]{Node: Handle[T](p, s.Node), Target: target}
	case ir.SinkTryApply:
		mode, err := sink.ParseMode(s.Mode)
		if err != nil {
			return err
		}
		sk = &sink.TryApply[T]{Node: Handle[ir.Option[T]](p, s.Node), Target: target, Mode: mode}
	case ir.SinkTryReplace:
		sk = &sink.TryReplace[T]{Node: Handle[ir.Option[ir.Option[T]]](p, s.Node), Target: target}
	default:
		return fmt.Errorf("unsupported sink type %q", s.Type)
	}

	return p.Engine.AddSink(engine.SinkBinding{
		Name:     s.Name,
		Timeline: engine.TimelineID(s.Timeline),
		Record:   s.Record,
		Field:    s.Field,
		Sink:     sk,
	})
}
