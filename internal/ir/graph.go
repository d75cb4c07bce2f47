package ir

// NodeType identifies an adapter node in a graph declaration.
type NodeType string

const (
	NodeAnimate     NodeType = "animate"
	NodeInterpolate NodeType = "interpolate"
	NodeTime        NodeType = "time"
	NodeConstant    NodeType = "constant"
	NodeOffset      NodeType = "offset"
	NodeDilate      NodeType = "dilate"
	NodeRepeat      NodeType = "repeat"
	NodeSequence    NodeType = "sequence"
	NodeCurve       NodeType = "curve"
	NodeMultiply    NodeType = "multiply"
	NodeBefore      NodeType = "before"
	NodeAfter       NodeType = "after"
	NodeFlatten     NodeType = "flatten"
	NodeDiscretize  NodeType = "discretize"
)

// SinkType identifies a terminal adapter in a graph declaration.
type SinkType string

const (
	SinkApply      SinkType = "apply"
	SinkTryApply   SinkType = "try_apply"
	SinkTryReplace SinkType = "try_replace"
)

// Try-apply modes.
const (
	ModeUpdate = "update"
	ModeDirect = "direct"
)

// GraphSpec is the compiled form of a timeline graph declaration.
// Slices preserve declaration order; sinks run in that order every frame.
type GraphSpec struct {
	Timelines []TimelineSpec `json:"timelines"`
	Ledgers   []LedgerSpec   `json:"ledgers"`
	Nodes     []NodeSpec     `json:"nodes"`
	Sinks     []SinkSpec     `json:"sinks"`
}

// TimelineSpec declares one independent clock.
type TimelineSpec struct {
	Name     string  `json:"name"`
	TickRate float64 `json:"tick_rate"`
	Start    float64 `json:"start"`
	Paused   bool    `json:"paused"`
}

// LedgerSpec declares a stop ledger and its seed stops.
// Seed stops are deterministic: they are never pruned by a rewind.
type LedgerSpec struct {
	Name     string     `json:"name"`
	Timeline string     `json:"timeline"`
	Kind     Kind       `json:"kind"`
	Optional bool       `json:"optional,omitempty"`
	Stops    []StopSpec `json:"stops,omitempty"`
}

// StopSpec is one declared stop. Value is already coerced to the ledger
// kind (bool, Scalar, Vec2, Enum); nil means None on optional ledgers.
type StopSpec struct {
	T        float64 `json:"t"`
	Value    any     `json:"value"`
	Disabled bool    `json:"disabled,omitempty"`
}

// NodeSpec declares one adapter node. Which fields apply depends on Type.
type NodeSpec struct {
	Name string   `json:"name"`
	Type NodeType `json:"type"`

	Ledger string `json:"ledger,omitempty"` // animate, interpolate
	Input  string `json:"input,omitempty"`  // warps, curve, multiply, before/after, flatten, discretize
	Factor string `json:"factor,omitempty"` // multiply

	Kind  Kind `json:"kind,omitempty"`  // constant
	Value any  `json:"value,omitempty"` // constant

	Clamp    bool          `json:"clamp,omitempty"`    // interpolate
	Offset   float64       `json:"offset,omitempty"`   // offset
	Rate     float64       `json:"rate,omitempty"`     // dilate
	Period   float64       `json:"period,omitempty"`   // repeat
	At       float64       `json:"at,omitempty"`       // before, after
	Ease     string        `json:"ease,omitempty"`     // curve
	Times    []float64     `json:"times,omitempty"`    // discretize
	Segments []SegmentSpec `json:"segments,omitempty"` // sequence
}

// SegmentSpec is one entry of a sequence node.
type SegmentSpec struct {
	Start float64 `json:"start"`
	Node  string  `json:"node"`
}

// SinkSpec declares a sink writing a node's output to a record field.
type SinkSpec struct {
	Name     string   `json:"name"`
	Type     SinkType `json:"type"`
	Node     string   `json:"node"`
	Timeline string   `json:"timeline"`
	Record   string   `json:"record"`
	Field    string   `json:"field"`
	Mode     string   `json:"mode,omitempty"` // try_apply only
}

// Refs returns the node names n reads from, in declaration order.
func (n NodeSpec) Refs() []string {
	var refs []string
	if n.Input != "" {
		refs = append(refs, n.Input)
	}
	if n.Factor != "" {
		refs = append(refs, n.Factor)
	}
	for _, seg := range n.Segments {
		refs = append(refs, seg.Node)
	}
	return refs
}

// Records returns the distinct record names targeted by sinks, in first-use order.
func (g *GraphSpec) Records() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range g.Sinks {
		if !seen[s.Record] {
			seen[s.Record] = true
			out = append(out, s.Record)
		}
	}
	return out
}

// Ledger returns the ledger declaration with the given name.
func (g *GraphSpec) Ledger(name string) (LedgerSpec, bool) {
	for _, l := range g.Ledgers {
		if l.Name == name {
			return l, true
		}
	}
	return LedgerSpec{}, false
}

// Node returns the node declaration with the given name.
func (g *GraphSpec) Node(name string) (NodeSpec, bool) {
	for _, n := range g.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeSpec{}, false
}

// Timeline returns the timeline declaration with the given name.
func (g *GraphSpec) Timeline(name string) (TimelineSpec, bool) {
	for _, tl := range g.Timelines {
		if tl.Name == name {
			return tl, true
		}
	}
	return TimelineSpec{}, false
}
