package harness

// TraceEvent is one evaluated frame as seen by the scenario.
type TraceEvent struct {
	Frame  uint64        `json:"frame"`
	Times  []TraceTime   `json:"times"`
	Writes []TraceWrite  `json:"writes,omitempty"`
	Pruned []TracePruned `json:"pruned,omitempty"`
}

// TraceTime is one timeline's evaluation time in a frame.
type TraceTime struct {
	Timeline   string  `json:"timeline"`
	T          float64 `json:"t"`
	PrevT      float64 `json:"prev_t"`
	Paused     bool    `json:"paused,omitempty"`
	PrevPaused bool    `json:"prev_paused,omitempty"`
}

// TraceWrite is a sink write. Value is nil for removals.
type TraceWrite struct {
	Sink   string `json:"sink"`
	Record string `json:"record"`
	Field  string `json:"field"`
	Op     string `json:"op"`
	Value  any    `json:"value,omitempty"`
}

// TracePruned is a pruned batch, reported by its scenario name.
type TracePruned struct {
	Ledger string `json:"ledger"`
	Batch  string `json:"batch"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success: every expect step and assertion
	// held.
	Pass bool `json:"pass"`

	// Trace contains every evaluated frame in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the world snapshot at the end of the run.
	State map[string]any `json:"state,omitempty"`

	// RunID and GraphHash identify the run.
	RunID     string `json:"run_id"`
	GraphHash string `json:"graph_hash"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
