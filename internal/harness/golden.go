package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rewind/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
// The graph hash is left out so golden files survive cosmetic graph edits.
type TraceSnapshot struct {
	ScenarioName string         `json:"scenario_name"`
	RunID        string         `json:"run_id"`
	Trace        []TraceEvent   `json:"trace"`
	State        map[string]any `json:"state"`
}

// NewTraceSnapshot builds the snapshot of result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		RunID:        result.RunID,
		Trace:        result.Trace,
		State:        result.State,
	}
}

// Canonical renders the snapshot as canonical JSON.
func (s *TraceSnapshot) Canonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization, which only handles maps, slices and ir values.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		times := make([]any, len(ev.Times))
		for j, tt := range ev.Times {
			times[j] = map[string]any{
				"timeline":    tt.Timeline,
				"t":           tt.T,
				"prev_t":      tt.PrevT,
				"paused":      tt.Paused,
				"prev_paused": tt.PrevPaused,
			}
		}
		event := map[string]any{
			"frame": ev.Frame,
			"times": times,
		}

		if len(ev.Writes) > 0 {
			writes := make([]any, len(ev.Writes))
			for j, w := range ev.Writes {
				wm := map[string]any{
					"sink":   w.Sink,
					"record": w.Record,
					"field":  w.Field,
					"op":     w.Op,
				}
				if w.Value != nil {
					wm["value"] = w.Value
				}
				writes[j] = wm
			}
			event["writes"] = writes
		}

		if len(ev.Pruned) > 0 {
			pruned := make([]any, len(ev.Pruned))
			for j, p := range ev.Pruned {
				pruned[j] = map[string]any{"ledger": p.Ledger, "batch": p.Batch}
			}
			event["pruned"] = pruned
		}
		trace[i] = event
	}

	state := make(map[string]any, len(s.State))
	for k, v := range s.State {
		state[k] = v
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"run_id":        s.RunID,
		"trace":         trace,
		"state":         state,
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenarioName, result)
	traceJSON, err := snapshot.Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
