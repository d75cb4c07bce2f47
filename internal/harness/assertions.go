package harness

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/roach88/rewind/internal/ir"
)

// DefaultTolerance bounds scalar and vec2 comparisons.
const DefaultTolerance = 1e-9

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			for _, w := range ev.Writes {
				fmt.Fprintf(&buf, "  [%d] %s %s %s.%s %v\n", ev.Frame, w.Sink, w.Op, w.Record, w.Field, w.Value)
			}
			for _, p := range ev.Pruned {
				fmt.Fprintf(&buf, "  [%d] pruned %s from %s\n", ev.Frame, p.Batch, p.Ledger)
			}
		}
	}
	return buf.String()
}

// assertTraceContains checks for a write to record.field, narrowed by op
// and value when given.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		for _, w := range ev.Writes {
			if w.Record != a.Record || w.Field != a.Field {
				continue
			}
			if a.Op != "" && w.Op != a.Op {
				continue
			}
			if a.Value != nil && !matchValue(w.Value, a.Value, DefaultTolerance) {
				continue
			}
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeWrite(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func describeWrite(a Assertion) string {
	s := fmt.Sprintf("write to %s.%s", a.Record, a.Field)
	if a.Op != "" {
		s += " op " + a.Op
	}
	if a.Value != nil {
		s += fmt.Sprintf(" value %v", a.Value)
	}
	return s
}

// assertTraceOrder checks that sinks first wrote in the given order.
// Writes need not be consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	// Position of each sink's first write, 1-indexed for readability.
	positions := make(map[string]int)
	pos := 0
	for _, ev := range trace {
		for _, w := range ev.Writes {
			pos++
			if positions[w.Sink] == 0 {
				positions[w.Sink] = pos
			}
		}
	}

	for _, s := range a.Sinks {
		if positions[s] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all sinks wrote: %v", a.Sinks),
				Actual:   fmt.Sprintf("missing sink: %s", s),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Sinks); i++ {
		prev, curr := a.Sinks[i-1], a.Sinks[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("sinks in order: %v", a.Sinks),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the sink wrote exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		for _, w := range ev.Writes {
			if w.Sink == a.Sink {
				count++
			}
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d writes by %s", a.Count, a.Sink),
			Actual:   fmt.Sprintf("%d writes", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertPruned checks that the named batch was pruned from the ledger.
func assertPruned(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		for _, p := range ev.Pruned {
			if p.Ledger == a.Ledger && p.Batch == a.Batch {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     AssertPruned,
		Expected: fmt.Sprintf("batch %s pruned from %s", a.Batch, a.Ledger),
		Actual:   "not pruned",
		Trace:    trace,
	}
}

// assertFinalState checks a record's fields in the final world snapshot
// with subset semantics. A nil expected value means the field is absent.
func assertFinalState(state map[string]any, a Assertion) error {
	raw, ok := state[a.Record]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("record %s", a.Record),
			Actual:   "record not found",
		}
	}
	fields, _ := raw.(map[string]any)

	for _, name := range ir.SortedKeys(a.Expect) {
		want := a.Expect[name]
		got, present := fields[name]
		switch {
		case want == nil && present:
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s absent", a.Record, name),
				Actual:   fmt.Sprintf("%v", got),
			}
		case want == nil:
			continue
		case !present:
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", a.Record, name, want),
				Actual:   "field not set",
			}
		case !matchValue(got, want, DefaultTolerance):
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", a.Record, name, want),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

// matchValue compares a typed world value against a loosely typed expected
// value decoded from YAML. The expected value is coerced to the actual
// value's kind first.
func matchValue(actual, expected any, tol float64) bool {
	kind, ok := kindOf(actual)
	if !ok {
		return reflect.DeepEqual(actual, expected)
	}
	want, err := ir.Coerce(kind, expected)
	if err != nil {
		return false
	}

	switch a := actual.(type) {
	case ir.Scalar:
		return math.Abs(float64(a)-float64(want.(ir.Scalar))) <= tol
	case ir.Vec2:
		w := want.(ir.Vec2)
		return math.Abs(a.X-w.X) <= tol && math.Abs(a.Y-w.Y) <= tol
	}
	return actual == want
}

func kindOf(v any) (ir.Kind, bool) {
	switch v.(type) {
	case bool:
		return ir.KindBool, true
	case ir.Scalar:
		return ir.KindScalar, true
	case ir.Vec2:
		return ir.KindVec2, true
	case ir.Enum:
		return ir.KindEnum, true
	}
	return "", false
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertPruned:
			err = assertPruned(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
