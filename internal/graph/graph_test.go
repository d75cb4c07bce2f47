package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/adapter"
	"github.com/roach88/rewind/internal/compiler"
	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/testutil"
	"github.com/roach88/rewind/internal/timeline"
	"github.com/roach88/rewind/internal/world"
)

const shipGraph = `
timeline: main: { tick_rate: 1 }

ledger: hp: {
	kind: "scalar", timeline: "main"
	stops: [{t: 0, value: 100}, {t: 5, value: 40}]
}
ledger: dock: {
	kind: "enum", timeline: "main", optional: true
	stops: [{t: 1, value: "docked"}, {t: 3, value: null}, {t: 4, value: "undocked", disabled: true}]
}
ledger: alive: {
	kind: "bool", timeline: "main"
	stops: [{t: 0, value: true}]
}
ledger: path: {
	kind: "vec2", timeline: "main"
	stops: [{t: 0, value: {x: 0, y: 0}}, {t: 10, value: {x: 100, y: 50}}]
}

node: hp_now:    { type: "interpolate", ledger: "hp", clamp: true }
node: dock_now:  { type: "animate", ledger: "dock" }
node: alive_now: { type: "animate", ledger: "alive" }
node: pos:       { type: "interpolate", ledger: "path" }
node: clock:     { type: "time" }
node: half:      { type: "constant", kind: "scalar", value: 0.5 }
node: slow_pos:  { type: "multiply", input: "pos", factor: "half" }
node: eased:     { type: "curve", input: "clock", ease: "linear" }
node: yaw:       { type: "discretize", input: "eased", times: [0, 0.5, 1] }
node: input_on:  { type: "after", input: "clock", at: 2 }

sink: ship_hp:    { type: "apply", node: "hp_now", record: "ship", field: "hp" }
sink: ship_dock:  { type: "try_replace", node: "dock_now", record: "ship", field: "dock" }
sink: rock_alive: { type: "try_apply", node: "alive_now", record: "rock", field: "alive" }
sink: ship_pos:   { type: "apply", node: "slow_pos", record: "ship", field: "pos" }
sink: cam_yaw:    { type: "try_apply", node: "yaw", record: "camera", field: "yaw" }
sink: input:      { type: "try_apply", node: "input_on", record: "ship", field: "input", mode: "direct" }
`

func buildShip(t *testing.T) (*Program, *engine.Engine, *world.World) {
	t.Helper()
	spec, err := compiler.CompileString(shipGraph, "ship.cue")
	require.NoError(t, err)

	e := engine.New(
		engine.WithRegistry(testutil.NewDeterministicRegistry()),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator("test-run")),
	)
	w := world.New()
	p, err := Build(spec, e, w)
	require.NoError(t, err)
	return p, e, w
}

func frame(t *testing.T, e *engine.Engine, delta float64) *engine.FrameReport {
	t.Helper()
	r, err := e.Frame(context.Background(), delta)
	require.NoError(t, err)
	return r
}

func TestBuild_Structure(t *testing.T) {
	p, e, w := buildShip(t)

	assert.Len(t, p.Hash, 64)
	assert.Equal(t, []engine.TimelineID{"main"}, e.Timelines())
	assert.Equal(t, []world.RecordID{"ship", "rock", "camera"}, p.Records())
	for _, r := range p.Records() {
		assert.True(t, w.Has(r))
	}

	vt, ok := p.Type("dock_now")
	require.True(t, ok)
	assert.Equal(t, compiler.ValueType{Kind: ir.KindEnum, Depth: 2}, vt)

	assert.Equal(t, 2, p.Ledger("hp").Len())
	assert.Equal(t, 3, p.Ledger("yaw").Len(), "discretized samples")
	assert.Same(t, e.Ledger("dock"), p.Ledger("dock"))
}

func TestBuild_Evaluates(t *testing.T) {
	_, e, w := buildShip(t)

	frame(t, e, 1) // t=1
	hp, ok := w.Get("ship", "hp")
	require.True(t, ok)
	assert.InDelta(t, 88.0, float64(hp.(ir.Scalar)), 1e-9)

	dock, ok := w.Get("ship", "dock")
	require.True(t, ok)
	assert.Equal(t, ir.Enum("docked"), dock)

	pos, _ := w.Get("ship", "pos")
	assert.InDelta(t, 5.0, pos.(ir.Vec2).X, 1e-9)
	assert.InDelta(t, 2.5, pos.(ir.Vec2).Y, 1e-9)

	yaw, ok := w.Get("camera", "yaw")
	require.True(t, ok)
	assert.Equal(t, ir.Scalar(1), yaw, "last sample crossed in (0, 1]")

	_, ok = w.Get("ship", "input")
	assert.False(t, ok, "input enabled from t=2")

	frame(t, e, 1) // t=2
	in, ok := w.Get("ship", "input")
	require.True(t, ok)
	assert.Equal(t, ir.Scalar(2), in)

	frame(t, e, 1) // t=3: dock stop is None
	_, ok = w.Get("ship", "dock")
	assert.False(t, ok, "Some(None) removes the field")

	frame(t, e, 1) // t=4: disabled stop never sets
	_, ok = w.Get("ship", "dock")
	assert.False(t, ok)

	frame(t, e, 10) // t=14, clamped
	hp, _ = w.Get("ship", "hp")
	assert.Equal(t, ir.Scalar(40), hp)
}

func TestBuild_CausalStopsPruneOnResume(t *testing.T) {
	p, e, w := buildShip(t)

	frame(t, e, 1) // t=1
	alive, _ := w.Get("rock", "alive")
	assert.Equal(t, true, alive)

	v, err := p.StopValue("alive", false)
	require.NoError(t, err)
	b := e.NewBatch().Add("alive", 2.5, v)
	require.True(t, e.Commit(b))

	frame(t, e, 1) // t=2
	frame(t, e, 1) // t=3
	alive, _ = w.Get("rock", "alive")
	assert.Equal(t, false, alive)

	e.Enqueue(engine.Pause("main", true))
	e.Enqueue(engine.Seek("main", 1.5))
	r := frame(t, e, 1)
	assert.Empty(t, r.Pruned, "paused scrub keeps future stops")
	alive, _ = w.Get("rock", "alive")
	assert.Equal(t, true, alive, "rewind restores the earlier value")
	assert.Equal(t, 2, p.Ledger("alive").Len())

	e.Enqueue(engine.Pause("main", false))
	r = frame(t, e, 0.5) // t=2, resumed
	assert.Equal(t, []engine.PrunedBatch{{Ledger: "alive", Batch: b.ID}}, r.Pruned)
	assert.Equal(t, 1, p.Ledger("alive").Len())

	frame(t, e, 2) // t=4
	alive, _ = w.Get("rock", "alive")
	assert.Equal(t, true, alive, "pruned stop does not replay")
}

func TestStopValue(t *testing.T) {
	p, _, _ := buildShip(t)

	v, err := p.StopValue("dock", "docked")
	require.NoError(t, err)
	assert.Equal(t, ir.Some(ir.Enum("docked")), v)

	v, err = p.StopValue("dock", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.None[ir.Enum](), v)

	v, err = p.StopValue("path", map[string]any{"x": 1.0, "y": 2.0})
	require.NoError(t, err)
	assert.Equal(t, ir.Vec2{X: 1, Y: 2}, v)

	_, err = p.StopValue("hp", nil)
	assert.Error(t, err)
	_, err = p.StopValue("hp", "lots")
	assert.Error(t, err)
	_, err = p.StopValue("shield", 1.0)
	assert.Error(t, err)
}

func TestHandle(t *testing.T) {
	p, e, _ := buildShip(t)

	h := Handle[ir.Scalar](p, "hp_now")
	assert.Equal(t, ir.Scalar(100), adapter.Eval(e.Arena(), h, timeline.At(0, 0, false)))

	err := func() (err error) {
		defer timeline.Recover(&err)
		Handle[ir.Vec2](p, "hp_now")
		return nil
	}()
	assert.True(t, timeline.IsFatalCode(err, timeline.ErrCodeTypeMismatch))

	err = func() (err error) {
		defer timeline.Recover(&err)
		Handle[ir.Scalar](p, "ghost")
		return nil
	}()
	assert.True(t, timeline.IsFatalCode(err, timeline.ErrCodeMissingNode))

	err = func() (err error) {
		defer timeline.Recover(&err)
		p.Ledger("ghost")
		return nil
	}()
	assert.True(t, timeline.IsFatalCode(err, timeline.ErrCodeMissingLedger))
}

func TestBuild_RejectsInvalid(t *testing.T) {
	spec := &ir.GraphSpec{
		Timelines: []ir.TimelineSpec{{Name: "main", TickRate: 1}},
		Nodes:     []ir.NodeSpec{{Name: "a", Type: ir.NodeOffset, Input: "a", Offset: 1}},
	}
	p, err := Build(spec, engine.New(), world.New())
	assert.Nil(t, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), compiler.ErrNodeCycle)
}

func TestBuild_Timelines(t *testing.T) {
	spec := &ir.GraphSpec{
		Timelines: []ir.TimelineSpec{
			{Name: "game", TickRate: 1},
			{Name: "ui", TickRate: 2, Start: 3, Paused: true},
		},
	}
	e := engine.New()
	_, err := Build(spec, e, world.New())
	require.NoError(t, err)

	assert.Equal(t, []engine.TimelineID{"game", "ui"}, e.Timelines())
	ui := e.Clock("ui")
	assert.Equal(t, 3.0, ui.T)
	assert.True(t, ui.Paused)
	assert.Equal(t, 2.0, ui.TickRate)
}
