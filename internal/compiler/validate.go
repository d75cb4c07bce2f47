package compiler

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/rewind/internal/adapter"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/sink"
)

// Validation error codes (E200-E299)
const (
	ErrDuplicateName    = "E200" // duplicate timeline/ledger/node/sink name
	ErrMissingField     = "E201" // required field is empty
	ErrUnknownReference = "E202" // reference to an undeclared timeline, ledger or node
	ErrInvalidKind      = "E203" // unsupported value kind
	ErrTypeMismatch     = "E204" // node or sink input has the wrong type
	ErrUnsupportedNode  = "E205" // unknown node type
	ErrUnsupportedSink  = "E206" // unknown sink type
	ErrInvalidParameter = "E207" // out-of-range or malformed node parameter
	ErrDepthExceeded    = "E208" // option nesting deeper than MaxDepth
	ErrInvalidStop      = "E209" // seed stop value does not match the ledger kind
	ErrLedgerShared     = "E210" // ledger read by more than one node
	ErrSharedReader     = "E211" // ledger-reading node pulled more than once per frame
	ErrImpureDiscretize = "E212" // discretize source reads a ledger
	ErrNodeCycle        = "E213" // node reference cycle
)

// ValidationError represents a graph validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled graph.
// Returns all errors found (does not fail-fast). Cycles are reported by
// AnalyzeCycles.
func Validate(spec *ir.GraphSpec) []ValidationError {
	v := &validator{spec: spec}
	v.timelines()
	v.ledgers()
	v.nodes()
	v.sinks()
	v.ledgerReaders()

	types, typeErrs := InferTypes(spec)
	v.errs = append(v.errs, typeErrs...)
	v.sinkTypes(types)

	return v.errs
}

// Check runs Validate and AnalyzeCycles and joins every finding into one
// error. Returns nil for a buildable graph.
func Check(spec *ir.GraphSpec) error {
	var errs []error
	for _, e := range Validate(spec) {
		errs = append(errs, e)
	}
	for _, c := range AnalyzeCycles(spec) {
		errs = append(errs, c)
	}
	return errors.Join(errs...)
}

type validator struct {
	spec *ir.GraphSpec
	errs []ValidationError
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
}

func (v *validator) timelines() {
	seen := make(map[string]bool)
	for i, tl := range v.spec.Timelines {
		field := fmt.Sprintf("timelines[%d]", i)
		v.name(field, tl.Name, seen)
		if !finite(tl.TickRate) {
			v.add(field+".tick_rate", ErrInvalidParameter, "tick_rate must be finite")
		}
		if !finite(tl.Start) || tl.Start < 0 {
			v.add(field+".start", ErrInvalidParameter, "start must be a finite time >= 0")
		}
	}
}

func (v *validator) ledgers() {
	seen := make(map[string]bool)
	for i, l := range v.spec.Ledgers {
		field := fmt.Sprintf("ledgers[%d]", i)
		v.name(field, l.Name, seen)
		v.timelineRef(field+".timeline", l.Timeline)
		if !l.Kind.Valid() {
			v.add(field+".kind", ErrInvalidKind, "unsupported kind %q", l.Kind)
			continue
		}
		for j, s := range l.Stops {
			sf := fmt.Sprintf("%s.stops[%d]", field, j)
			if !finite(s.T) {
				v.add(sf+".t", ErrInvalidStop, "stop time must be finite")
			}
			if s.Value == nil {
				if !l.Optional {
					v.add(sf+".value", ErrInvalidStop, "null value on non-optional ledger %q", l.Name)
				}
				continue
			}
			if !kindOf(l.Kind, s.Value) {
				v.add(sf+".value", ErrInvalidStop, "value %T does not match kind %s", s.Value, l.Kind)
			}
		}
	}
}

func (v *validator) nodes() {
	seen := make(map[string]bool)
	for i, n := range v.spec.Nodes {
		field := "node." + n.Name
		v.name(fmt.Sprintf("nodes[%d]", i), n.Name, seen)

		switch n.Type {
		case ir.NodeConstant:
			if n.Value == nil {
				v.add(field+".value", ErrMissingField, "constant value is required")
			} else if n.Kind.Valid() && !kindOf(n.Kind, n.Value) {
				v.add(field+".value", ErrTypeMismatch, "value %T does not match kind %s", n.Value, n.Kind)
			}
		case ir.NodeDilate:
			if !finite(n.Rate) {
				v.add(field+".rate", ErrInvalidParameter, "rate must be finite")
			}
		case ir.NodeOffset:
			if !finite(n.Offset) {
				v.add(field+".offset", ErrInvalidParameter, "offset must be finite")
			}
		case ir.NodeRepeat:
			if !finite(n.Period) || n.Period <= 0 {
				v.add(field+".period", ErrInvalidParameter, "period must be > 0")
			}
		case ir.NodeBefore, ir.NodeAfter:
			if !finite(n.At) {
				v.add(field+".at", ErrInvalidParameter, "at must be finite")
			}
		case ir.NodeCurve:
			if _, err := adapter.ParseEase(n.Ease); err != nil {
				v.add(field+".ease", ErrInvalidParameter, "%v", err)
			}
		case ir.NodeSequence:
			if len(n.Segments) == 0 {
				v.add(field+".segments", ErrInvalidParameter, "sequence needs at least one segment")
			}
		case ir.NodeDiscretize:
			if len(n.Times) == 0 {
				v.add(field+".times", ErrInvalidParameter, "discretize needs at least one sample time")
			}
			for j, t := range n.Times {
				if !finite(t) {
					v.add(fmt.Sprintf("%s.times[%d]", field, j), ErrInvalidParameter, "sample time must be finite")
				}
			}
		}
	}
}

func (v *validator) sinks() {
	seen := make(map[string]bool)
	for i, s := range v.spec.Sinks {
		field := fmt.Sprintf("sinks[%d]", i)
		v.name(field, s.Name, seen)
		v.timelineRef(field+".timeline", s.Timeline)

		switch s.Type {
		case ir.SinkApply, ir.SinkTryApply, ir.SinkTryReplace:
		default:
			v.add(field+".type", ErrUnsupportedSink, "unsupported sink type %q", s.Type)
		}

		if s.Node == "" {
			v.add(field+".node", ErrMissingField, "node is required")
		} else if _, ok := v.spec.Node(s.Node); !ok {
			v.add(field+".node", ErrUnknownReference, "unknown node %q", s.Node)
		}
		if strings.TrimSpace(s.Record) == "" {
			v.add(field+".record", ErrMissingField, "record is required")
		}
		if strings.TrimSpace(s.Field) == "" {
			v.add(field+".field", ErrMissingField, "field is required")
		}

		if s.Mode != "" && s.Type != ir.SinkTryApply {
			v.add(field+".mode", ErrInvalidParameter, "mode applies to try_apply sinks only")
		} else if _, err := sink.ParseMode(s.Mode); err != nil {
			v.add(field+".mode", ErrInvalidParameter, "%v", err)
		}
	}
}

// ledgerReaders enforces the single-reader rules: a ledger's bookkeeping
// advances once per frame, so exactly one node may read it and that node's
// output may be pulled along one path only.
func (v *validator) ledgerReaders() {
	readers := make(map[string][]string)
	for _, n := range v.spec.Nodes {
		if n.Ledger != "" && (n.Type == ir.NodeAnimate || n.Type == ir.NodeInterpolate) {
			readers[n.Ledger] = append(readers[n.Ledger], n.Name)
		}
	}
	for _, l := range v.spec.Ledgers {
		if r := readers[l.Name]; len(r) > 1 {
			v.add("ledger."+l.Name, ErrLedgerShared, "ledger read by %d nodes: %s", len(r), strings.Join(r, ", "))
		}
	}

	refs := make(map[string]int)
	for _, n := range v.spec.Nodes {
		for _, r := range n.Refs() {
			refs[r]++
		}
	}
	for _, s := range v.spec.Sinks {
		refs[s.Node]++
	}

	state := statefulNodes(v.spec)
	for _, n := range v.spec.Nodes {
		if state[n.Name] && refs[n.Name] > 1 {
			v.add("node."+n.Name, ErrSharedReader, "node reads a ledger and is referenced %d times", refs[n.Name])
		}
		if n.Type == ir.NodeDiscretize && state[n.Input] {
			v.add("node."+n.Name+".input", ErrImpureDiscretize, "discretize source %q reads a ledger", n.Input)
		}
	}
}

// sinkTypes checks each sink's node output against the sink's input shape.
func (v *validator) sinkTypes(types map[string]ValueType) {
	for i, s := range v.spec.Sinks {
		t, ok := types[s.Node]
		if !ok {
			continue
		}
		want := -1
		switch s.Type {
		case ir.SinkApply:
			want = 0
		case ir.SinkTryApply:
			want = 1
		case ir.SinkTryReplace:
			want = 2
		}
		if want >= 0 && t.Depth != want {
			v.add(fmt.Sprintf("sinks[%d].node", i), ErrTypeMismatch,
				"%s sink needs option depth %d, node %q is %s", s.Type, want, s.Node, t)
		}
	}
}

func (v *validator) name(field, name string, seen map[string]bool) {
	if strings.TrimSpace(name) == "" {
		v.add(field+".name", ErrMissingField, "name is required")
		return
	}
	if seen[name] {
		v.add(field+".name", ErrDuplicateName, "duplicate name: %q", name)
	}
	seen[name] = true
}

func (v *validator) timelineRef(field, name string) {
	if name == "" {
		v.add(field, ErrMissingField, "timeline is required")
		return
	}
	for _, tl := range v.spec.Timelines {
		if tl.Name == name {
			return
		}
	}
	v.add(field, ErrUnknownReference, "unknown timeline %q", name)
}

// statefulNodes marks nodes that read a ledger directly or through an input.
func statefulNodes(spec *ir.GraphSpec) map[string]bool {
	byName := make(map[string]ir.NodeSpec, len(spec.Nodes))
	for _, n := range spec.Nodes {
		byName[n.Name] = n
	}
	out := make(map[string]bool)
	visiting := make(map[string]bool)

	var visit func(name string) bool
	visit = func(name string) bool {
		if s, done := out[name]; done {
			return s
		}
		if visiting[name] {
			return false
		}
		n, ok := byName[name]
		if !ok {
			return false
		}
		visiting[name] = true
		s := n.Type == ir.NodeAnimate || n.Type == ir.NodeInterpolate
		for _, r := range n.Refs() {
			if visit(r) {
				s = true
			}
		}
		delete(visiting, name)
		out[name] = s
		return s
	}
	for _, n := range spec.Nodes {
		visit(n.Name)
	}
	return out
}

// kindOf reports whether v is the Go type used for kind k.
func kindOf(k ir.Kind, v any) bool {
	switch v.(type) {
	case bool:
		return k == ir.KindBool
	case ir.Scalar:
		return k == ir.KindScalar
	case ir.Vec2:
		return k == ir.KindVec2
	case ir.Enum:
		return k == ir.KindEnum
	}
	return false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
