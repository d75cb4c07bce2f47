package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rewind/internal/ir"
)

// CompileGraph parses a CUE value into a GraphSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value is the root of a graph declaration, e.g.:
//
//	timeline: main: { tick_rate: 1 }
//	ledger: hp: { kind: "scalar", timeline: "main", stops: [{t: 0, value: 100}] }
//	node: hp_now: { type: "interpolate", ledger: "hp", clamp: true }
//	sink: ship_hp: { type: "apply", node: "hp_now", record: "ship", field: "hp" }
//
// Declarations keep their CUE field order. A sink without a timeline is
// bound to the sole declared timeline.
func CompileGraph(v cue.Value) (*ir.GraphSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.GraphSpec{}
	var err error

	spec.Timelines, err = parseTimelines(v)
	if err != nil {
		return nil, err
	}
	if len(spec.Timelines) == 0 {
		return nil, &CompileError{
			Field:   "timeline",
			Message: "at least one timeline is required",
			Pos:     v.Pos(),
		}
	}

	spec.Ledgers, err = parseLedgers(v)
	if err != nil {
		return nil, err
	}

	spec.Nodes, err = parseNodes(v)
	if err != nil {
		return nil, err
	}

	spec.Sinks, err = parseSinks(v)
	if err != nil {
		return nil, err
	}
	if len(spec.Timelines) == 1 {
		for i := range spec.Sinks {
			if spec.Sinks[i].Timeline == "" {
				spec.Sinks[i].Timeline = spec.Timelines[0].Name
			}
		}
	}

	return spec, nil
}

// parseTimelines extracts timeline declarations.
func parseTimelines(v cue.Value) ([]ir.TimelineSpec, error) {
	var timelines []ir.TimelineSpec
	err := eachField(v, "timeline", func(name string, tv cue.Value) error {
		tl := ir.TimelineSpec{Name: name, TickRate: 1}
		field := "timeline." + name

		if f, ok, err := lookupFloat(tv, field, "tick_rate"); err != nil {
			return err
		} else if ok {
			tl.TickRate = f
		}
		if f, ok, err := lookupFloat(tv, field, "start"); err != nil {
			return err
		} else if ok {
			tl.Start = f
		}
		if b, ok, err := lookupBool(tv, field, "paused"); err != nil {
			return err
		} else if ok {
			tl.Paused = b
		}

		timelines = append(timelines, tl)
		return nil
	})
	return timelines, err
}

// parseLedgers extracts ledger declarations and coerces their seed stops to
// the declared kind.
func parseLedgers(v cue.Value) ([]ir.LedgerSpec, error) {
	var ledgers []ir.LedgerSpec
	err := eachField(v, "ledger", func(name string, lv cue.Value) error {
		field := "ledger." + name
		l := ir.LedgerSpec{Name: name}

		kind, err := requireString(lv, field, "kind")
		if err != nil {
			return err
		}
		l.Kind = ir.Kind(kind)
		if !l.Kind.Valid() {
			return &CompileError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("unsupported kind %q", kind),
				Pos:     lv.LookupPath(cue.ParsePath("kind")).Pos(),
			}
		}

		if l.Timeline, err = requireString(lv, field, "timeline"); err != nil {
			return err
		}
		if b, ok, err := lookupBool(lv, field, "optional"); err != nil {
			return err
		} else if ok {
			l.Optional = b
		}

		l.Stops, err = parseStops(lv, field, l.Kind, l.Optional)
		if err != nil {
			return err
		}

		ledgers = append(ledgers, l)
		return nil
	})
	return ledgers, err
}

// parseStops extracts the seed stops of one ledger.
func parseStops(lv cue.Value, field string, kind ir.Kind, optional bool) ([]ir.StopSpec, error) {
	stopsVal := lv.LookupPath(cue.ParsePath("stops"))
	if !stopsVal.Exists() {
		return nil, nil
	}

	iter, err := stopsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var stops []ir.StopSpec
	for i := 0; iter.Next(); i++ {
		sv := iter.Value()
		sf := fmt.Sprintf("%s.stops[%d]", field, i)

		t, ok, err := lookupFloat(sv, sf, "t")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &CompileError{Field: sf + ".t", Message: "stop time is required", Pos: sv.Pos()}
		}

		stop := ir.StopSpec{T: t}
		if b, ok, err := lookupBool(sv, sf, "disabled"); err != nil {
			return nil, err
		} else if ok {
			stop.Disabled = b
		}

		valueVal := sv.LookupPath(cue.ParsePath("value"))
		if !valueVal.Exists() {
			return nil, &CompileError{Field: sf + ".value", Message: "stop value is required", Pos: sv.Pos()}
		}
		raw, err := toAny(valueVal)
		if err != nil {
			return nil, err
		}

		if optional {
			value, none, err := ir.CoerceOptional(kind, raw)
			if err != nil {
				return nil, &CompileError{Field: sf + ".value", Message: err.Error(), Pos: valueVal.Pos()}
			}
			if !none {
				stop.Value = value
			}
		} else {
			value, err := ir.Coerce(kind, raw)
			if err != nil {
				return nil, &CompileError{Field: sf + ".value", Message: err.Error(), Pos: valueVal.Pos()}
			}
			stop.Value = value
		}

		stops = append(stops, stop)
	}
	return stops, nil
}

// parseNodes extracts adapter node declarations.
func parseNodes(v cue.Value) ([]ir.NodeSpec, error) {
	var nodes []ir.NodeSpec
	err := eachField(v, "node", func(name string, nv cue.Value) error {
		field := "node." + name
		n := ir.NodeSpec{Name: name}

		typ, err := requireString(nv, field, "type")
		if err != nil {
			return err
		}
		n.Type = ir.NodeType(typ)

		for _, ref := range []struct {
			name string
			dst  *string
		}{
			{"ledger", &n.Ledger},
			{"input", &n.Input},
			{"factor", &n.Factor},
			{"ease", &n.Ease},
		} {
			s, ok, err := lookupString(nv, field, ref.name)
			if err != nil {
				return err
			}
			if ok {
				*ref.dst = s
			}
		}

		for _, num := range []struct {
			name string
			dst  *float64
		}{
			{"offset", &n.Offset},
			{"rate", &n.Rate},
			{"period", &n.Period},
			{"at", &n.At},
		} {
			f, ok, err := lookupFloat(nv, field, num.name)
			if err != nil {
				return err
			}
			if ok {
				*num.dst = f
			}
		}

		if b, ok, err := lookupBool(nv, field, "clamp"); err != nil {
			return err
		} else if ok {
			n.Clamp = b
		}

		if kind, ok, err := lookupString(nv, field, "kind"); err != nil {
			return err
		} else if ok {
			n.Kind = ir.Kind(kind)
		}
		if valueVal := nv.LookupPath(cue.ParsePath("value")); valueVal.Exists() {
			raw, err := toAny(valueVal)
			if err != nil {
				return err
			}
			value, err := ir.Coerce(n.Kind, raw)
			if err != nil {
				return &CompileError{Field: field + ".value", Message: err.Error(), Pos: valueVal.Pos()}
			}
			n.Value = value
		}

		if n.Times, err = parseTimes(nv, field); err != nil {
			return err
		}
		if n.Segments, err = parseSegments(nv, field); err != nil {
			return err
		}

		nodes = append(nodes, n)
		return nil
	})
	return nodes, err
}

func parseTimes(nv cue.Value, field string) ([]float64, error) {
	timesVal := nv.LookupPath(cue.ParsePath("times"))
	if !timesVal.Exists() {
		return nil, nil
	}
	iter, err := timesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var times []float64
	for iter.Next() {
		f, err := iter.Value().Float64()
		if err != nil {
			return nil, &CompileError{Field: field + ".times", Message: "times must be numbers", Pos: iter.Value().Pos()}
		}
		times = append(times, f)
	}
	return times, nil
}

func parseSegments(nv cue.Value, field string) ([]ir.SegmentSpec, error) {
	segVal := nv.LookupPath(cue.ParsePath("segments"))
	if !segVal.Exists() {
		return nil, nil
	}
	iter, err := segVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var segments []ir.SegmentSpec
	for i := 0; iter.Next(); i++ {
		sv := iter.Value()
		sf := fmt.Sprintf("%s.segments[%d]", field, i)

		seg := ir.SegmentSpec{}
		if f, ok, err := lookupFloat(sv, sf, "start"); err != nil {
			return nil, err
		} else if ok {
			seg.Start = f
		}
		if seg.Node, err = requireString(sv, sf, "node"); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// parseSinks extracts sink declarations.
func parseSinks(v cue.Value) ([]ir.SinkSpec, error) {
	var sinks []ir.SinkSpec
	err := eachField(v, "sink", func(name string, sv cue.Value) error {
		field := "sink." + name
		s := ir.SinkSpec{Name: name}

		typ, err := requireString(sv, field, "type")
		if err != nil {
			return err
		}
		s.Type = ir.SinkType(typ)

		for _, req := range []struct {
			name string
			dst  *string
		}{
			{"node", &s.Node},
			{"record", &s.Record},
			{"field", &s.Field},
		} {
			if *req.dst, err = requireString(sv, field, req.name); err != nil {
				return err
			}
		}

		if tl, ok, err := lookupString(sv, field, "timeline"); err != nil {
			return err
		} else if ok {
			s.Timeline = tl
		}
		if mode, ok, err := lookupString(sv, field, "mode"); err != nil {
			return err
		} else if ok {
			s.Mode = mode
		}

		sinks = append(sinks, s)
		return nil
	})
	return sinks, err
}

// eachField calls fn for every field of the struct at path, in order.
// A missing struct is not an error.
func eachField(v cue.Value, path string, fn func(name string, fv cue.Value) error) error {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fn(iter.Label(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func lookupString(v cue.Value, field, name string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, &CompileError{Field: field + "." + name, Message: "must be a string", Pos: fv.Pos()}
	}
	return s, true, nil
}

func requireString(v cue.Value, field, name string) (string, error) {
	s, ok, err := lookupString(v, field, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	return s, nil
}

func lookupFloat(v cue.Value, field, name string) (float64, bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return 0, false, nil
	}
	f, err := fv.Float64()
	if err != nil {
		return 0, false, &CompileError{Field: field + "." + name, Message: "must be a number", Pos: fv.Pos()}
	}
	return f, true, nil
}

func lookupBool(v cue.Value, field, name string) (bool, bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return false, false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, false, &CompileError{Field: field + "." + name, Message: "must be a bool", Pos: fv.Pos()}
	}
	return b, true, nil
}

// toAny converts a concrete CUE value to the loose form ir.Coerce accepts:
// numbers become float64, structs map[string]any, lists []any.
func toAny(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return f, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	case cue.StructKind:
		obj := make(map[string]any)
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			fv, err := toAny(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = fv
		}
		return obj, nil
	case cue.ListKind:
		var arr []any
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			ev, err := toAny(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, ev)
		}
		return arr, nil
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
