package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/ir"
)

func nodeGraph(nodes ...ir.NodeSpec) *ir.GraphSpec {
	return &ir.GraphSpec{
		Timelines: []ir.TimelineSpec{{Name: "main", TickRate: 1}},
		Nodes:     nodes,
	}
}

func offset(name, input string) ir.NodeSpec {
	return ir.NodeSpec{Name: name, Type: ir.NodeOffset, Input: input, Offset: 1}
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	cycles := AnalyzeCycles(&ir.GraphSpec{})
	assert.NotNil(t, cycles)
	assert.Empty(t, cycles)
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	g := nodeGraph(
		ir.NodeSpec{Name: "clock", Type: ir.NodeTime},
		offset("a", "clock"),
		offset("b", "a"),
		ir.NodeSpec{Name: "seq", Type: ir.NodeSequence, Segments: []ir.SegmentSpec{{Node: "a"}, {Start: 2, Node: "b"}}},
	)
	assert.Empty(t, AnalyzeCycles(g))
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	cycles := AnalyzeCycles(nodeGraph(offset("a", "a")))
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "a"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Error(), ErrNodeCycle)
}

func TestAnalyzeCycles_TwoNodes(t *testing.T) {
	cycles := AnalyzeCycles(nodeGraph(offset("a", "b"), offset("b", "a")))
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "a"}, cycles[0].Path)
	assert.Equal(t, "node cycle: a → b → a", cycles[0].Message)
}

func TestAnalyzeCycles_ThroughFactor(t *testing.T) {
	g := nodeGraph(
		ir.NodeSpec{Name: "k", Type: ir.NodeConstant, Kind: ir.KindScalar, Value: ir.Scalar(1)},
		ir.NodeSpec{Name: "m", Type: ir.NodeMultiply, Input: "k", Factor: "w"},
		offset("w", "m"),
	)
	cycles := AnalyzeCycles(g)
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"m", "w", "m"}, cycles[0].Path)
}

func TestAnalyzeCycles_Separate(t *testing.T) {
	g := nodeGraph(
		offset("a", "b"), offset("b", "a"),
		offset("c", "d"), offset("d", "c"),
		ir.NodeSpec{Name: "clock", Type: ir.NodeTime},
	)
	assert.Len(t, AnalyzeCycles(g), 2)
}

func TestAnalyzeCycles_Deterministic(t *testing.T) {
	g := nodeGraph(offset("x", "y"), offset("y", "z"), offset("z", "x"))
	first := AnalyzeCycles(g)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, AnalyzeCycles(g))
	}
	assert.Equal(t, []string{"x", "y", "z", "x"}, first[0].Path)
}

func TestAnalyzeCycles_IgnoresUnknownRefs(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nodeGraph(offset("a", "ghost"))))
}
