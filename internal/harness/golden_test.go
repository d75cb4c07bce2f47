package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/ir"
)

// TestScenarios runs every scenario under testdata/scenarios against its
// golden trace. Regenerate with:
//
//	go test ./internal/harness -run TestScenarios -update
func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestScenarios_Deterministic(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		first, err := Run(s)
		require.NoError(t, err)
		second, err := Run(s)
		require.NoError(t, err)

		a := NewTraceSnapshot(s.Name, first)
		b := NewTraceSnapshot(s.Name, second)
		aj, err := a.Canonical()
		require.NoError(t, err)
		bj, err := b.Canonical()
		require.NoError(t, err)
		assert.Equal(t, string(aj), string(bj), s.Name)
		assert.Equal(t, first.GraphHash, second.GraphHash)
	}
}

func TestTraceSnapshot_Canonical(t *testing.T) {
	result := NewResult()
	result.RunID = "run"
	result.Trace = []TraceEvent{{
		Frame: 3,
		Times: []TraceTime{{Timeline: "main", T: 0.5, PrevT: 1, Paused: true}},
		Writes: []TraceWrite{
			{Sink: "ship_pos", Record: "ship", Field: "pos", Op: "set", Value: ir.Vec2{X: 1, Y: 0.25}},
			{Sink: "ship_dock", Record: "ship", Field: "dock", Op: "remove"},
		},
	}}
	result.State = map[string]any{"ship": map[string]any{"pos": ir.Vec2{X: 1, Y: 0.25}}}

	snap := NewTraceSnapshot("canon", result)
	got, err := snap.Canonical()
	require.NoError(t, err)

	want := `{"run_id":"run","scenario_name":"canon","state":{"ship":{"pos":{"x":1,"y":0.25}}},` +
		`"trace":[{"frame":3,"times":[{"paused":true,"prev_paused":false,"prev_t":1,"t":0.5,"timeline":"main"}],` +
		`"writes":[{"field":"pos","op":"set","record":"ship","sink":"ship_pos","value":{"x":1,"y":0.25}},` +
		`{"field":"dock","op":"remove","record":"ship","sink":"ship_dock"}]}]}`
	assert.Equal(t, want, string(got))
}
