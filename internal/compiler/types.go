package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/rewind/internal/ir"
)

// MaxDepth is the deepest option nesting a node may produce.
// TryReplace consumes depth 2.
const MaxDepth = 2

// ValueType is the shape a node produces: a value kind wrapped in Depth
// options. {scalar, 0} is ir.Scalar, {enum, 2} is Option[Option[Enum]].
type ValueType struct {
	Kind  ir.Kind `json:"kind"`
	Depth int     `json:"depth"`
}

func (t ValueType) String() string {
	return strings.Repeat("option<", t.Depth) + string(t.Kind) + strings.Repeat(">", t.Depth)
}

// InferTypes computes the output type of every node.
//
// Nodes on a reference cycle or with an ill-typed input are left out of
// the result; their errors are returned alongside. Cycles themselves are
// reported by AnalyzeCycles.
func InferTypes(spec *ir.GraphSpec) (map[string]ValueType, []ValidationError) {
	inf := &inferrer{
		spec:     spec,
		nodes:    make(map[string]ir.NodeSpec, len(spec.Nodes)),
		types:    make(map[string]ValueType, len(spec.Nodes)),
		done:     make(map[string]bool, len(spec.Nodes)),
		visiting: make(map[string]bool),
	}
	for _, n := range spec.Nodes {
		if _, dup := inf.nodes[n.Name]; !dup {
			inf.nodes[n.Name] = n
		}
	}
	for _, n := range spec.Nodes {
		inf.infer(n.Name)
	}
	return inf.types, inf.errs
}

type inferrer struct {
	spec     *ir.GraphSpec
	nodes    map[string]ir.NodeSpec
	types    map[string]ValueType
	done     map[string]bool
	visiting map[string]bool
	errs     []ValidationError
}

func (inf *inferrer) infer(name string) (ValueType, bool) {
	if inf.done[name] {
		t, ok := inf.types[name]
		return t, ok
	}
	if inf.visiting[name] {
		return ValueType{}, false
	}
	n, ok := inf.nodes[name]
	if !ok {
		return ValueType{}, false
	}

	inf.visiting[name] = true
	t, ok := inf.inferNode(n)
	delete(inf.visiting, name)
	inf.done[name] = true

	if ok && t.Depth > MaxDepth {
		inf.fail(n, "", ErrDepthExceeded, fmt.Sprintf("output %s nests deeper than %d options", t, MaxDepth))
		ok = false
	}
	if ok {
		inf.types[name] = t
	}
	return t, ok
}

func (inf *inferrer) inferNode(n ir.NodeSpec) (ValueType, bool) {
	switch n.Type {
	case ir.NodeAnimate:
		l, ok := inf.ledger(n)
		if !ok {
			return ValueType{}, false
		}
		depth := 1
		if l.Optional {
			depth = 2
		}
		return ValueType{Kind: l.Kind, Depth: depth}, true

	case ir.NodeInterpolate:
		l, ok := inf.ledger(n)
		if !ok {
			return ValueType{}, false
		}
		if !l.Kind.Lerpable() || l.Optional {
			inf.fail(n, "ledger", ErrTypeMismatch, fmt.Sprintf("ledger %q (%s, optional=%v) cannot be interpolated", l.Name, l.Kind, l.Optional))
			return ValueType{}, false
		}
		return ValueType{Kind: l.Kind}, true

	case ir.NodeTime:
		return ValueType{Kind: ir.KindScalar}, true

	case ir.NodeConstant:
		if !n.Kind.Valid() {
			inf.fail(n, "kind", ErrInvalidKind, fmt.Sprintf("unsupported kind %q", n.Kind))
			return ValueType{}, false
		}
		return ValueType{Kind: n.Kind}, true

	case ir.NodeOffset, ir.NodeDilate, ir.NodeRepeat:
		return inf.input(n, "input", n.Input)

	case ir.NodeSequence:
		var out ValueType
		for i, seg := range n.Segments {
			t, ok := inf.input(n, fmt.Sprintf("segments[%d].node", i), seg.Node)
			if !ok {
				return ValueType{}, false
			}
			if i > 0 && t != out {
				inf.fail(n, fmt.Sprintf("segments[%d].node", i), ErrTypeMismatch, fmt.Sprintf("segment %q is %s, expected %s", seg.Node, t, out))
				return ValueType{}, false
			}
			out = t
		}
		if len(n.Segments) == 0 {
			return ValueType{}, false
		}
		return out, true

	case ir.NodeCurve:
		t, ok := inf.input(n, "input", n.Input)
		if !ok {
			return ValueType{}, false
		}
		if t != (ValueType{Kind: ir.KindScalar}) {
			inf.fail(n, "input", ErrTypeMismatch, fmt.Sprintf("curve input is %s, expected scalar", t))
			return ValueType{}, false
		}
		return t, true

	case ir.NodeMultiply:
		t, ok := inf.input(n, "input", n.Input)
		if !ok {
			return ValueType{}, false
		}
		f, ok := inf.input(n, "factor", n.Factor)
		if !ok {
			return ValueType{}, false
		}
		if t.Depth != 0 || !t.Kind.Lerpable() {
			inf.fail(n, "input", ErrTypeMismatch, fmt.Sprintf("multiply input is %s, expected scalar or vec2", t))
			return ValueType{}, false
		}
		if f != (ValueType{Kind: ir.KindScalar}) {
			inf.fail(n, "factor", ErrTypeMismatch, fmt.Sprintf("multiply factor is %s, expected scalar", f))
			return ValueType{}, false
		}
		return t, true

	case ir.NodeBefore, ir.NodeAfter, ir.NodeDiscretize:
		t, ok := inf.input(n, "input", n.Input)
		if !ok {
			return ValueType{}, false
		}
		return ValueType{Kind: t.Kind, Depth: t.Depth + 1}, true

	case ir.NodeFlatten:
		t, ok := inf.input(n, "input", n.Input)
		if !ok {
			return ValueType{}, false
		}
		if t.Depth < 2 {
			inf.fail(n, "input", ErrTypeMismatch, fmt.Sprintf("flatten input is %s, expected a nested option", t))
			return ValueType{}, false
		}
		return ValueType{Kind: t.Kind, Depth: t.Depth - 1}, true

	default:
		inf.fail(n, "type", ErrUnsupportedNode, fmt.Sprintf("unsupported node type %q", n.Type))
		return ValueType{}, false
	}
}

func (inf *inferrer) ledger(n ir.NodeSpec) (ir.LedgerSpec, bool) {
	if n.Ledger == "" {
		inf.fail(n, "ledger", ErrMissingField, "ledger is required")
		return ir.LedgerSpec{}, false
	}
	l, ok := inf.spec.Ledger(n.Ledger)
	if !ok {
		inf.fail(n, "ledger", ErrUnknownReference, fmt.Sprintf("unknown ledger %q", n.Ledger))
		return ir.LedgerSpec{}, false
	}
	if !l.Kind.Valid() {
		return ir.LedgerSpec{}, false
	}
	return l, true
}

func (inf *inferrer) input(n ir.NodeSpec, field, ref string) (ValueType, bool) {
	if ref == "" {
		inf.fail(n, field, ErrMissingField, field+" is required")
		return ValueType{}, false
	}
	if _, ok := inf.nodes[ref]; !ok {
		inf.fail(n, field, ErrUnknownReference, fmt.Sprintf("unknown node %q", ref))
		return ValueType{}, false
	}
	return inf.infer(ref)
}

func (inf *inferrer) fail(n ir.NodeSpec, field, code, msg string) {
	path := "node." + n.Name
	if field != "" {
		path += "." + field
	}
	inf.errs = append(inf.errs, ValidationError{Field: path, Message: msg, Code: code})
}
