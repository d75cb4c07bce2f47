package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/rewind/internal/compiler"
	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/graph"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/testutil"
	"github.com/roach88/rewind/internal/timeline"
	"github.com/roach88/rewind/internal/world"
)

// Option configures a Run.
type Option func(*runConfig)

type runConfig struct {
	recorder engine.Recorder
	logger   *slog.Logger
	runID    string
}

// WithRecorder records every frame of the run, e.g. into a store.Recorder.
func WithRecorder(r engine.Recorder) Option {
	return func(c *runConfig) { c.recorder = r }
}

// WithRunID sets the run id of scenarios that do not fix one.
// Default: DefaultRunID.
func WithRunID(id string) Option {
	return func(c *runConfig) { c.runID = id }
}

// WithLogger sets the harness logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Harness executes one scenario on a fresh engine.
type Harness struct {
	scenario *Scenario
	engine   *engine.Engine
	world    *world.World
	program  *graph.Program
	logger   *slog.Logger

	// Scenario batch names and the registry ids they drew.
	batches map[string]timeline.BatchID
	names   map[timeline.BatchID]string
}

// Run executes a test scenario and returns the result.
//
// The returned error covers scenarios that cannot run (graph errors, bad
// stop values, fatal frame errors). Failed expectations and assertions are
// reported in Result.Errors with Pass=false.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		runID:  DefaultRunID,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	spec, err := LoadGraph(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}

	runID := scenario.RunID
	if runID == "" {
		runID = cfg.runID
	}
	engineOpts := []engine.EngineOption{
		engine.WithRegistry(testutil.NewDeterministicRegistry()),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(runID)),
	}
	if cfg.recorder != nil {
		engineOpts = append(engineOpts, engine.WithRecorder(cfg.recorder))
	}

	e := engine.New(engineOpts...)
	w := world.New()
	p, err := graph.Build(spec, e, w)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		scenario: scenario,
		engine:   e,
		world:    w,
		program:  p,
		logger:   cfg.logger,
		batches:  make(map[string]timeline.BatchID),
		names:    make(map[timeline.BatchID]string),
	}

	result := NewResult()
	result.RunID = e.RunID()
	result.GraphHash = p.Hash

	ctx := context.Background()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Kind(), err)
		}
	}

	result.State = w.Snapshot()
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Info("scenario complete",
		"scenario", scenario.Name,
		"frames", len(result.Trace),
		"pass", result.Pass,
	)
	return result, nil
}

// LoadGraph compiles the scenario's graph from Source or the Graph path.
func LoadGraph(s *Scenario) (*ir.GraphSpec, error) {
	if s.Source != "" {
		return compiler.CompileString(s.Source, s.Name+".cue")
	}
	return compiler.LoadGraph(s.Graph)
}

func (h *Harness) execute(ctx context.Context, i int, step Step, result *Result) error {
	switch {
	case step.Advance != nil:
		return h.advance(ctx, step.Advance, result)
	case step.Seek != nil:
		return h.seek(step.Seek)
	case step.Insert != nil:
		return h.insert(step.Insert)
	case step.Expect != nil:
		if msg := h.expect(step.Expect); msg != "" {
			result.AddError(fmt.Sprintf("steps[%d]: %s", i, msg))
		}
	}
	return nil
}

func (h *Harness) advance(ctx context.Context, a *AdvanceStep, result *Result) error {
	for n := 0; n < a.Frames; n++ {
		r, err := h.engine.Frame(ctx, a.Delta)
		if err != nil {
			return err
		}
		result.Trace = append(result.Trace, h.traceEvent(r))
	}
	h.logger.Debug("advanced", "frames", a.Frames, "delta", a.Delta)
	return nil
}

func (h *Harness) seek(s *SeekStep) error {
	tl := s.Timeline
	if tl == "" {
		timelines := h.program.Spec.Timelines
		if len(timelines) != 1 {
			return fmt.Errorf("timeline is required when the graph declares %d timelines", len(timelines))
		}
		tl = timelines[0].Name
	}
	if _, ok := h.program.Spec.Timeline(tl); !ok {
		return fmt.Errorf("unknown timeline %q", tl)
	}

	h.engine.Enqueue(engine.SeekCommand{
		Timeline:  engine.TimelineID(tl),
		T:         s.T,
		Paused:    s.Paused,
		ScrubRate: s.ScrubRate,
	})
	return nil
}

// insert commits the stops. The first use of a batch name draws its id.
func (h *Harness) insert(in *InsertStep) error {
	id, ok := h.batches[in.Batch]
	var b *engine.Batch
	if ok {
		b = &engine.Batch{ID: id}
	} else {
		b = h.engine.NewBatch()
		h.batches[in.Batch] = b.ID
		h.names[b.ID] = in.Batch
	}

	for j, st := range in.Stops {
		v, err := h.program.StopValue(st.Ledger, st.Value)
		if err != nil {
			return fmt.Errorf("stops[%d]: %w", j, err)
		}
		if st.Disabled {
			b.AddDisabled(engine.LedgerID(st.Ledger), st.T, v)
		} else {
			b.Add(engine.LedgerID(st.Ledger), st.T, v)
		}
	}
	h.engine.Commit(b)
	h.logger.Debug("batch committed", "batch", in.Batch, "id", b.ID, "stops", len(in.Stops))
	return nil
}

// expect returns a failure message, or "" if the field matches.
func (h *Harness) expect(ex *ExpectStep) string {
	got, ok := h.world.Get(world.RecordID(ex.Record), ex.Field)
	if ex.Absent {
		if ok {
			return fmt.Sprintf("%s.%s: expected absent, got %v", ex.Record, ex.Field, got)
		}
		return ""
	}
	if !ok {
		return fmt.Sprintf("%s.%s: expected %v, field not set", ex.Record, ex.Field, ex.Value)
	}
	tol := ex.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}
	if !matchValue(got, ex.Value, tol) {
		return fmt.Sprintf("%s.%s: expected %v, got %v", ex.Record, ex.Field, ex.Value, got)
	}
	return ""
}

func (h *Harness) traceEvent(r *engine.FrameReport) TraceEvent {
	ev := TraceEvent{Frame: r.Index, Times: make([]TraceTime, len(r.Times))}
	for i, tt := range r.Times {
		ev.Times[i] = TraceTime{
			Timeline:   string(tt.Timeline),
			T:          tt.Time.T,
			PrevT:      tt.Time.PrevT,
			Paused:     tt.Time.Paused,
			PrevPaused: tt.Time.PrevPaused,
		}
	}
	for _, w := range r.Writes {
		ev.Writes = append(ev.Writes, TraceWrite{
			Sink:   w.Sink,
			Record: w.Record,
			Field:  w.Field,
			Op:     string(w.Op),
			Value:  w.Value,
		})
	}
	for _, p := range r.Pruned {
		name, ok := h.names[p.Batch]
		if !ok {
			name = fmt.Sprintf("#%d", p.Batch)
		}
		ev.Pruned = append(ev.Pruned, TracePruned{Ledger: string(p.Ledger), Batch: name})
	}
	return ev
}
