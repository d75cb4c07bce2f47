// Package graph instantiates a compiled timeline graph on an engine.
//
// Build turns an ir.GraphSpec into live objects: a clock per timeline, a
// typed ledger per ledger declaration, adapter nodes in the engine arena and
// sinks bound to world record fields. The generic adapter types are chosen
// from each node's inferred kind and option depth.
package graph

import (
	"fmt"

	"github.com/roach88/rewind/internal/adapter"
	"github.com/roach88/rewind/internal/compiler"
	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/timeline"
	"github.com/roach88/rewind/internal/world"
)

// Program is a graph built on an engine.
type Program struct {
	Spec   *ir.GraphSpec
	Hash   string
	Engine *engine.Engine
	World  *world.World

	types   map[string]compiler.ValueType
	handles map[string]any
	ledgers map[string]timeline.Ledger
	wrap    map[string]func(v any) any
	sampled map[string]timeline.Ledger
}

// Build validates spec and instantiates it on e, writing into w.
// Every record a sink targets is inserted into w.
func Build(spec *ir.GraphSpec, e *engine.Engine, w *world.World) (p *Program, err error) {
	if err := compiler.Check(spec); err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	hash, err := ir.GraphHash(spec)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	types, typeErrs := compiler.InferTypes(spec)
	if len(typeErrs) > 0 {
		return nil, fmt.Errorf("build graph: %w", typeErrs[0])
	}

	p = &Program{
		Spec:    spec,
		Hash:    hash,
		Engine:  e,
		World:   w,
		types:   types,
		handles: make(map[string]any, len(spec.Nodes)),
		ledgers: make(map[string]timeline.Ledger, len(spec.Ledgers)),
		wrap:    make(map[string]func(any) any, len(spec.Ledgers)),
		sampled: make(map[string]timeline.Ledger),
	}

	defer func() {
		if err != nil {
			p = nil
		}
	}()
	defer timeline.Recover(&err)

	for _, tl := range spec.Timelines {
		clock := timeline.NewClock(tl.TickRate)
		clock.Seek(tl.Start)
		clock.Paused = tl.Paused
		if err := e.AddTimeline(engine.TimelineID(tl.Name), clock); err != nil {
			return nil, fmt.Errorf("build graph: %w", err)
		}
	}

	for _, r := range spec.Records() {
		w.Insert(world.RecordID(r))
	}

	for _, l := range spec.Ledgers {
		if err := p.addLedger(l); err != nil {
			return nil, fmt.Errorf("build graph: ledger %q: %w", l.Name, err)
		}
	}

	for _, name := range topoOrder(spec) {
		n, _ := spec.Node(name)
		if err := p.addNode(n); err != nil {
			return nil, fmt.Errorf("build graph: node %q: %w", name, err)
		}
	}

	for _, s := range spec.Sinks {
		if err := p.addSink(s); err != nil {
			return nil, fmt.Errorf("build graph: sink %q: %w", s.Name, err)
		}
	}

	return p, nil
}

// Ledger returns the ledger declared as name, or the ledger sampled by the
// discretize node name. A missing ledger is fatal.
func (p *Program) Ledger(name string) timeline.Ledger {
	if l, ok := p.ledgers[name]; ok {
		return l
	}
	if l, ok := p.sampled[name]; ok {
		return l
	}
	timeline.Fatal(timeline.ErrCodeMissingLedger, name, "ledger not declared")
	return nil
}

// Type returns the inferred output type of node name.
func (p *Program) Type(name string) (compiler.ValueType, bool) {
	t, ok := p.types[name]
	return t, ok
}

// Records returns the records targeted by sinks, in first-use order.
func (p *Program) Records() []world.RecordID {
	names := p.Spec.Records()
	out := make([]world.RecordID, len(names))
	for i, n := range names {
		out[i] = world.RecordID(n)
	}
	return out
}

// StopValue coerces a loosely typed value (from YAML, JSON or CUE) into the
// element type of ledger: T for plain ledgers, ir.Option[T] for optional
// ones, where nil is None.
func (p *Program) StopValue(ledger string, raw any) (any, error) {
	l, ok := p.Spec.Ledger(ledger)
	if !ok {
		return nil, fmt.Errorf("unknown ledger %q", ledger)
	}

	var v any
	if l.Optional {
		value, none, err := ir.CoerceOptional(l.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("ledger %q: %w", ledger, err)
		}
		if !none {
			v = value
		}
	} else {
		if raw == nil {
			return nil, fmt.Errorf("ledger %q: null value on non-optional ledger", ledger)
		}
		value, err := ir.Coerce(l.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("ledger %q: %w", ledger, err)
		}
		v = value
	}
	return p.wrap[ledger](v), nil
}

// Handle returns the typed handle of node name.
// A missing node is fatal (MISSING_NODE); a node producing another type is
// fatal (TYPE_MISMATCH).
func Handle[V any](p *Program, name string) adapter.Handle[V] {
	raw, ok := p.handles[name]
	if !ok {
		timeline.Fatal(timeline.ErrCodeMissingNode, name, "node not built")
	}
	h, ok := raw.(adapter.Handle[V])
	if !ok {
		var want V
		timeline.Fatal(timeline.ErrCodeTypeMismatch, name, "node is %s, requested %T", p.types[name], want)
	}
	return h
}

// topoOrder returns node names so that every node follows its inputs,
// keeping declaration order otherwise.
func topoOrder(spec *ir.GraphSpec) []string {
	done := make(map[string]bool, len(spec.Nodes))
	order := make([]string, 0, len(spec.Nodes))

	var visit func(name string)
	visit = func(name string) {
		if done[name] {
			return
		}
		n, ok := spec.Node(name)
		if !ok {
			return
		}
		done[name] = true
		for _, ref := range n.Refs() {
			visit(ref)
		}
		order = append(order, name)
	}
	for _, n := range spec.Nodes {
		visit(n.Name)
	}
	return order
}
