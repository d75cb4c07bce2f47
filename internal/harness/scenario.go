package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultRunID is the run id used when a scenario does not set one.
const DefaultRunID = "test-run-default"

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is the path of the CUE graph file or directory, relative to the
	// scenario file. Exactly one of Graph and Source is set.
	Graph string `yaml:"graph,omitempty"`

	// Source is an inline CUE graph.
	Source string `yaml:"source,omitempty"`

	// RunID fixes the engine run id. Defaults to DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scenario step. Exactly one field is set.
type Step struct {
	Advance *AdvanceStep `yaml:"advance,omitempty"`
	Seek    *SeekStep    `yaml:"seek,omitempty"`
	Insert  *InsertStep  `yaml:"insert,omitempty"`
	Expect  *ExpectStep  `yaml:"expect,omitempty"`
}

// Kind names the step's action.
func (s Step) Kind() string {
	switch {
	case s.Advance != nil:
		return "advance"
	case s.Seek != nil:
		return "seek"
	case s.Insert != nil:
		return "insert"
	case s.Expect != nil:
		return "expect"
	}
	return ""
}

// AdvanceStep evaluates Frames frames of Delta wall-clock seconds.
type AdvanceStep struct {
	Frames int     `yaml:"frames"`
	Delta  float64 `yaml:"delta"`
}

// SeekStep changes one timeline's clock. Timeline defaults to the graph's
// only timeline; unset fields are left unchanged.
type SeekStep struct {
	Timeline  string   `yaml:"timeline,omitempty"`
	T         *float64 `yaml:"t,omitempty"`
	Paused    *bool    `yaml:"paused,omitempty"`
	ScrubRate *float64 `yaml:"scrub_rate,omitempty"`
}

// InsertStep commits stops under a named batch.
type InsertStep struct {
	Batch string     `yaml:"batch"`
	Stops []StopStep `yaml:"stops"`
}

// StopStep is one inserted stop. A null value is None on optional ledgers.
type StopStep struct {
	Ledger   string  `yaml:"ledger"`
	T        float64 `yaml:"t"`
	Value    any     `yaml:"value"`
	Disabled bool    `yaml:"disabled,omitempty"`
}

// ExpectStep checks a record field right after the preceding frames.
type ExpectStep struct {
	Record string `yaml:"record"`
	Field  string `yaml:"field"`
	Value  any    `yaml:"value,omitempty"`

	// Absent expects the field not to be set.
	Absent bool `yaml:"absent,omitempty"`

	// Tolerance for scalar and vec2 comparisons. Defaults to DefaultTolerance.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// Assertion validates the trace or the final world state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Sink names a sink (trace_count).
	Sink string `yaml:"sink,omitempty"`

	// Record and Field select a write (trace_contains) or a record
	// (final_state).
	Record string `yaml:"record,omitempty"`
	Field  string `yaml:"field,omitempty"`

	// Op and Value narrow trace_contains.
	Op    string `yaml:"op,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Count is the expected number of writes (trace_count).
	Count int `yaml:"count,omitempty"`

	// Sinks is the expected first-write order (trace_order).
	Sinks []string `yaml:"sinks,omitempty"`

	// Ledger and Batch name a pruning (pruned).
	Ledger string `yaml:"ledger,omitempty"`
	Batch  string `yaml:"batch,omitempty"`

	// Expect holds expected field values (final_state). A null value
	// expects the field to be absent.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertPruned        = "pruned"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos) or is missing required fields. A relative graph
// path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Graph != "" && !filepath.IsAbs(scenario.Graph) {
		scenario.Graph = filepath.Join(filepath.Dir(path), scenario.Graph)
	}
	if scenario.Graph != "" {
		if _, err := os.Stat(scenario.Graph); err != nil {
			return nil, fmt.Errorf("invalid scenario: graph not found: %s", scenario.Graph)
		}
	}
	return scenario, nil
}

// ParseScenario decodes a scenario document with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Graph == "") == (s.Source == "") {
		return fmt.Errorf("exactly one of graph and source is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step) error {
	set := 0
	for _, present := range []bool{step.Advance != nil, step.Seek != nil, step.Insert != nil, step.Expect != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of advance, seek, insert, expect is required", i)
	}

	switch {
	case step.Advance != nil:
		if step.Advance.Frames <= 0 {
			return fmt.Errorf("steps[%d].advance: frames must be positive", i)
		}
		if step.Advance.Delta < 0 {
			return fmt.Errorf("steps[%d].advance: delta must not be negative", i)
		}
	case step.Seek != nil:
		sk := step.Seek
		if sk.T == nil && sk.Paused == nil && sk.ScrubRate == nil {
			return fmt.Errorf("steps[%d].seek: one of t, paused, scrub_rate is required", i)
		}
	case step.Insert != nil:
		if step.Insert.Batch == "" {
			return fmt.Errorf("steps[%d].insert: batch is required", i)
		}
		if len(step.Insert.Stops) == 0 {
			return fmt.Errorf("steps[%d].insert: stops list is required", i)
		}
		for j, st := range step.Insert.Stops {
			if st.Ledger == "" {
				return fmt.Errorf("steps[%d].insert.stops[%d]: ledger is required", i, j)
			}
		}
	case step.Expect != nil:
		ex := step.Expect
		if ex.Record == "" || ex.Field == "" {
			return fmt.Errorf("steps[%d].expect: record and field are required", i)
		}
		if ex.Absent && ex.Value != nil {
			return fmt.Errorf("steps[%d].expect: value and absent are exclusive", i)
		}
		if !ex.Absent && ex.Value == nil {
			return fmt.Errorf("steps[%d].expect: value or absent is required", i)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Record == "" || a.Field == "" {
			return fmt.Errorf("assertions[%d]: record and field are required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Sinks) == 0 {
			return fmt.Errorf("assertions[%d]: sinks list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Sink == "" {
			return fmt.Errorf("assertions[%d]: sink is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertPruned:
		if a.Ledger == "" || a.Batch == "" {
			return fmt.Errorf("assertions[%d]: ledger and batch are required for pruned", index)
		}
	case AssertFinalState:
		if a.Record == "" {
			return fmt.Errorf("assertions[%d]: record is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
