package store

// Run identifies one recorded engine run.
type Run struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	GraphHash     string `json:"graph_hash"`
	GraphVersion  string `json:"graph_version"`
	EngineVersion string `json:"engine_version"`
}

// Frame is one recorded frame with its children in evaluation order.
type Frame struct {
	RunID     string      `json:"run_id"`
	Index     uint64      `json:"index"`
	WallDelta float64     `json:"wall_delta"`
	Times     []FrameTime `json:"times"`
	Writes    []Write     `json:"writes"`
	Pruned    []Prune     `json:"pruned"`
}

// FrameTime is one timeline's evaluation time.
type FrameTime struct {
	Timeline   string  `json:"timeline"`
	T          float64 `json:"t"`
	PrevT      float64 `json:"prev_t"`
	Paused     bool    `json:"paused"`
	PrevPaused bool    `json:"prev_paused"`
}

// Write is a recorded sink write. Value is canonical JSON, empty for removals.
type Write struct {
	Frame    uint64 `json:"frame"`
	Sink     string `json:"sink"`
	Timeline string `json:"timeline"`
	Record   string `json:"record"`
	Field    string `json:"field"`
	Op       string `json:"op"`
	Value    string `json:"value,omitempty"`
}

// Prune is a batch removed from a ledger.
type Prune struct {
	Ledger string `json:"ledger"`
	Batch  uint64 `json:"batch"`
}
