package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/adapter"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/sink"
	"github.com/roach88/rewind/internal/testutil"
	"github.com/roach88/rewind/internal/timeline"
	"github.com/roach88/rewind/internal/world"
)

const mainTL TimelineID = "main"

type fixture struct {
	e     *Engine
	w     *world.World
	alive *timeline.Discrete[bool]
	hp    *timeline.Discrete[ir.Scalar]
}

// newFixture wires two ledgers of one record ("rock.alive", "rock.hp") to
// update-mode sinks on a 1x timeline.
func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	opts = append([]EngineOption{
		WithRegistry(testutil.NewDeterministicRegistry()),
		WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-1")),
	}, opts...)
	e := New(opts...)
	require.NoError(t, e.AddTimeline(mainTL, timeline.NewClock(1)))

	w := world.New()
	w.Insert("rock")

	f := &fixture{e: e, w: w, alive: timeline.NewDiscrete[bool](), hp: timeline.NewDiscrete[ir.Scalar]()}
	f.alive.Insert(0, true, timeline.Deterministic)
	f.hp.Insert(0, 3, timeline.Deterministic)
	require.NoError(t, e.RegisterLedger("rock.alive", mainTL, f.alive))
	require.NoError(t, e.RegisterLedger("rock.hp", mainTL, f.hp))

	aliveNode := adapter.Add[ir.Option[bool]](e.Arena(), &adapter.Animate[bool]{Ledger: f.alive})
	hpNode := adapter.Add[ir.Option[ir.Scalar]](e.Arena(), &adapter.Animate[ir.Scalar]{Ledger: f.hp})

	require.NoError(t, e.AddSink(SinkBinding{
		Name: "alive", Timeline: mainTL, Record: "rock", Field: "alive",
		Sink: &sink.TryApply[bool]{Node: aliveNode, Target: world.Field[bool](w, "rock", "alive"), Mode: sink.ModeUpdate},
	}))
	require.NoError(t, e.AddSink(SinkBinding{
		Name: "hp", Timeline: mainTL, Record: "rock", Field: "hp",
		Sink: &sink.TryApply[ir.Scalar]{Node: hpNode, Target: world.Field[ir.Scalar](w, "rock", "hp"), Mode: sink.ModeUpdate},
	}))

	// Seed values are the initial world state.
	w.Set("rock", "alive", true)
	w.Set("rock", "hp", ir.Scalar(3))
	return f
}

func (f *fixture) field(name string) any {
	v, _ := f.w.Get("rock", name)
	return v
}

// kill inserts hp=0 and alive=false under one batch.
func (f *fixture) kill(at float64) *Batch {
	b := f.e.NewBatch()
	b.Add("rock.hp", at, ir.Scalar(0)).Add("rock.alive", at, false)
	f.e.Commit(b)
	return b
}

func TestEngine_FrameAdvancesAndWrites(t *testing.T) {
	f := newFixture(t)
	f.kill(2)

	r, err := f.e.Frame(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), r.Index)
	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, []TimelineTime{{Timeline: mainTL, Time: timeline.EvaluationTime{T: 1, PrevT: 0}}}, r.Times)
	assert.Empty(t, r.Writes)

	r, err = f.e.Frame(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []SinkWrite{
		{Sink: "alive", Timeline: mainTL, Record: "rock", Field: "alive", Op: sink.OpSet, Value: false},
		{Sink: "hp", Timeline: mainTL, Record: "rock", Field: "hp", Op: sink.OpSet, Value: ir.Scalar(0)},
	}, r.Writes)
	assert.Equal(t, false, f.field("alive"))
}

func TestEngine_PausedRewindRestoresThenResumePrunesTogether(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.e.RunFrames(ctx, 2, 1)
	require.NoError(t, err)
	batch := f.kill(3)
	_, err = f.e.RunFrames(ctx, 2, 1)
	require.NoError(t, err)
	require.Equal(t, false, f.field("alive"))

	// Pause and seek back before the kill.
	f.e.Enqueue(Pause(mainTL, true))
	f.e.Enqueue(Seek(mainTL, 1))
	r, err := f.e.Frame(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, r.Pruned, "paused rewind never prunes")
	assert.Equal(t, true, f.field("alive"))
	assert.Equal(t, ir.Scalar(3), f.field("hp"))

	// Resume: the kill batch lies entirely in the future of both ledgers.
	f.e.Enqueue(Pause(mainTL, false))
	r, err = f.e.Frame(ctx, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []PrunedBatch{
		{Ledger: "rock.alive", Batch: batch.ID},
		{Ledger: "rock.hp", Batch: batch.ID},
	}, r.Pruned)
	assert.Equal(t, 1, f.alive.Len())
	assert.Equal(t, 1, f.hp.Len())

	// Playing past t=3 no longer kills the rock.
	_, err = f.e.RunFrames(ctx, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, true, f.field("alive"))
}

func TestEngine_SeekCarriesPrevTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.e.RunFrames(ctx, 5, 1)
	require.NoError(t, err)

	paused := true
	seekTo := 2.0
	f.e.Enqueue(SeekCommand{Timeline: mainTL, T: &seekTo, Paused: &paused})
	r, err := f.e.Frame(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, timeline.EvaluationTime{T: 2, PrevT: 5, Paused: true, PrevPaused: false}, r.Times[0].Time)
}

func TestEngine_ScrubCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.e.RunFrames(ctx, 4, 1)
	require.NoError(t, err)

	f.e.Enqueue(ScrubCommand{Timeline: mainTL, Begin: true, Rate: -2})
	r, err := f.e.Frame(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, r.Times[0].Time.T)
	assert.True(t, r.Times[0].Time.Paused)

	f.e.Enqueue(ScrubCommand{Timeline: mainTL})
	r, err = f.e.Frame(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, r.Times[0].Time.T)
	assert.False(t, f.e.Clock(mainTL).Paused)
}

// spawner inserts a stop at the current time while playing forward.
type spawner struct {
	at    float64
	fired bool
}

func (s *spawner) Name() string { return "spawner" }

func (s *spawner) Update(_ context.Context, f *FrameContext) error {
	now := f.Time(mainTL)
	if s.fired || !now.Playing() || now.T < s.at {
		return nil
	}
	s.fired = true
	b := f.NewBatch()
	b.Add("rock.alive", now.T, false)
	f.Commit(b)
	return nil
}

func TestEngine_SystemStopsObservedSameFrame(t *testing.T) {
	f := newFixture(t)
	f.e.AddSystem(&spawner{at: 2})

	reports, err := f.e.RunFrames(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Empty(t, reports[0].Writes)
	require.Len(t, reports[1].Writes, 1)
	assert.Equal(t, "alive", reports[1].Writes[0].Sink)
}

func TestEngine_LateCommandDeferredOneFrame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.e.Frame(ctx, 1)
	require.NoError(t, err)

	// Enqueued between frames: applied at the next drain and crossed by (1, 2].
	f.kill(1.5)
	r, err := f.e.Frame(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, r.Writes, 2)
}

type failing struct{}

func (failing) Name() string { return "failing" }

func (failing) Update(context.Context, *FrameContext) error { return errors.New("boom") }

func TestEngine_SystemError(t *testing.T) {
	f := newFixture(t)
	f.e.AddSystem(failing{})

	_, err := f.e.Frame(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, IsFrameError(err))
	assert.Equal(t, PhaseSystems, FailedPhase(err))
	assert.Contains(t, err.Error(), "failing")
}

func TestEngine_MissingLedgerIsFatal(t *testing.T) {
	f := newFixture(t)
	f.e.Enqueue(InsertCommand{Ledger: "ghost", Batch: 1, Stops: []Stop{{T: 1, Value: true}}})

	_, err := f.e.Frame(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, PhaseCommands, FailedPhase(err))
	assert.True(t, timeline.IsFatalCode(err, timeline.ErrCodeMissingLedger))
}

func TestEngine_WrongValueTypeIsFatal(t *testing.T) {
	f := newFixture(t)
	f.e.Enqueue(InsertCommand{Ledger: "rock.alive", Batch: 1, Stops: []Stop{{T: 1, Value: ir.Scalar(1)}}})

	_, err := f.e.Frame(context.Background(), 1)
	assert.True(t, timeline.IsFatalCode(err, timeline.ErrCodeTypeMismatch))
}

func TestEngine_MissingClockIsFatal(t *testing.T) {
	f := newFixture(t)
	f.e.Enqueue(Seek("other", 1))

	_, err := f.e.Frame(context.Background(), 1)
	assert.True(t, timeline.IsFatalCode(err, timeline.ErrCodeMissingClock))
}

func TestEngine_SinkFatalDropsReport(t *testing.T) {
	rec := &memRecorder{}
	f := newFixture(t, WithRecorder(rec))
	require.NoError(t, f.e.AddSink(SinkBinding{
		Name: "broken", Timeline: mainTL, Record: "rock", Field: "alive",
		Sink: &sink.TryApply[bool]{
			Node:   adapter.HandleAt[ir.Option[bool]](999),
			Target: world.Field[bool](f.w, "rock", "alive"),
			Mode:   sink.ModeUpdate,
		},
	}))
	f.kill(1)

	r, err := f.e.Frame(context.Background(), 1)
	require.Error(t, err)
	assert.Nil(t, r)
	assert.Equal(t, PhaseSinks, FailedPhase(err))
	assert.True(t, timeline.IsFatalCode(err, timeline.ErrCodeMissingNode))
	assert.Empty(t, rec.reports)

	// Sinks ahead of the failing one already wrote.
	assert.Equal(t, false, f.field("alive"))
	assert.Equal(t, ir.Scalar(0), f.field("hp"))
}

func TestEngine_Registration(t *testing.T) {
	e := New()
	require.NoError(t, e.AddTimeline(mainTL, timeline.NewClock(1)))
	assert.Error(t, e.AddTimeline(mainTL, timeline.NewClock(1)))

	l := timeline.NewDiscrete[bool]()
	assert.Error(t, e.RegisterLedger("x", "nope", l))
	require.NoError(t, e.RegisterLedger("x", mainTL, l))
	assert.Error(t, e.RegisterLedger("x", mainTL, l))

	assert.Error(t, e.AddSink(SinkBinding{Name: "s", Timeline: "nope"}))
	assert.Equal(t, []TimelineID{mainTL}, e.Timelines())
	assert.Len(t, e.RunID(), 36)
}

type memRecorder struct {
	reports []*FrameReport
	err     error
}

func (m *memRecorder) RecordFrame(_ context.Context, r *FrameReport) error {
	m.reports = append(m.reports, r)
	return m.err
}

func TestEngine_Recorder(t *testing.T) {
	rec := &memRecorder{}
	f := newFixture(t, WithRecorder(rec))

	_, err := f.e.RunFrames(context.Background(), 3, 0.5)
	require.NoError(t, err)
	require.Len(t, rec.reports, 3)
	assert.Equal(t, uint64(2), rec.reports[2].Index)

	rec.err = errors.New("disk full")
	_, err = f.e.Frame(context.Background(), 1)
	assert.Equal(t, PhaseRecord, FailedPhase(err))
}

func TestEngine_StopRejectsCommands(t *testing.T) {
	f := newFixture(t)
	f.e.Stop()
	f.e.Stop()

	assert.False(t, f.e.Enqueue(Seek(mainTL, 1)))
	assert.False(t, f.e.Commit(f.e.NewBatch().Add("rock.hp", 1, ir.Scalar(1))))
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.e.Run(ctx, time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Greater(t, f.e.FrameIndex(), uint64(0))
}

func TestEngine_RunStopsOnStop(t *testing.T) {
	f := newFixture(t)

	done := make(chan error, 1)
	go func() { done <- f.e.Run(context.Background(), time.Millisecond) }()

	time.Sleep(10 * time.Millisecond)
	f.e.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestBatch_GroupsPerLedger(t *testing.T) {
	b := &Batch{ID: 9}
	b.Add("a", 1, true).Add("b", 1, false).AddDisabled("a", 2, true)

	cmds := b.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, LedgerID("a"), cmds[0].Ledger)
	assert.Equal(t, []Stop{{T: 1, Value: true}, {T: 2, Value: true, Disabled: true}}, cmds[0].Stops)
	assert.Equal(t, timeline.BatchID(9), cmds[1].Batch)
}
