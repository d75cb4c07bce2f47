package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rewind/internal/sink"
	"github.com/roach88/rewind/internal/timeline"
)

// FrameReport is the observable outcome of one frame.
type FrameReport struct {
	RunID     string
	Index     uint64
	WallDelta float64
	Times     []TimelineTime
	Writes    []SinkWrite
	Pruned    []PrunedBatch
}

// TimelineTime is one timeline's evaluation time for a frame.
type TimelineTime struct {
	Timeline TimelineID
	Time     timeline.EvaluationTime
}

// SinkWrite is a sink run that changed its target.
type SinkWrite struct {
	Sink     string
	Timeline TimelineID
	Record   string
	Field    string
	Op       sink.Op
	Value    any
}

// PrunedBatch is a batch removed from a ledger during a frame.
type PrunedBatch struct {
	Ledger LedgerID
	Batch  timeline.BatchID
}

// FrameContext is what systems see of the frame being evaluated.
type FrameContext struct {
	Index     uint64
	WallDelta float64

	engine *Engine
	times  map[TimelineID]timeline.EvaluationTime
}

// Time returns the evaluation time of timeline id this frame.
// A missing timeline is fatal.
func (f *FrameContext) Time(id TimelineID) timeline.EvaluationTime {
	t, ok := f.times[id]
	if !ok {
		timeline.Fatal(timeline.ErrCodeMissingClock, string(id), "timeline not registered")
	}
	return t
}

// NewBatch draws one BatchID for a causal event.
func (f *FrameContext) NewBatch() *Batch {
	return f.engine.NewBatch()
}

// Commit enqueues b. Its stops are applied before this frame's sinks run.
func (f *FrameContext) Commit(b *Batch) {
	f.engine.Commit(b)
}

// Enqueue submits a command applied before this frame's sinks run.
func (f *FrameContext) Enqueue(c Command) {
	f.engine.Enqueue(c)
}

// Frame runs one scheduled evaluation pass from a wall-clock delta in
// seconds.
//
// A fatal lookup inside any phase is recovered and returned as a
// *FrameError wrapping the *timeline.FatalError. No report is returned and
// nothing is recorded. Sinks that ran before the failing one have already
// written, so world state is undefined after a *FrameError.
func (e *Engine) Frame(ctx context.Context, wallDelta float64) (*FrameReport, error) {
	idx := e.frame
	e.frame++

	// State at the end of the previous frame, before any seek this frame.
	prev := make([]timeline.EvaluationTime, len(e.timelines))
	for i, ts := range e.timelines {
		prev[i] = timeline.EvaluationTime{T: ts.clock.T, Paused: ts.clock.Paused}
	}

	if err := e.drain(idx); err != nil {
		return nil, err
	}

	report := &FrameReport{RunID: e.runID, Index: idx, WallDelta: wallDelta}
	times := make(map[TimelineID]timeline.EvaluationTime, len(e.timelines))
	for i, ts := range e.timelines {
		ts.clock.Advance(wallDelta)
		et := timeline.EvaluationTime{
			T:          ts.clock.T,
			PrevT:      prev[i].T,
			Paused:     ts.clock.Paused,
			PrevPaused: prev[i].Paused,
		}
		times[ts.id] = et
		report.Times = append(report.Times, TimelineTime{Timeline: ts.id, Time: et})
	}

	fc := &FrameContext{Index: idx, WallDelta: wallDelta, engine: e, times: times}
	for _, sys := range e.systems {
		err := guard(func() error { return sys.Update(ctx, fc) })
		if err != nil {
			return nil, &FrameError{Frame: idx, Phase: PhaseSystems, Name: sys.Name(), Err: err}
		}
	}

	if err := e.drain(idx); err != nil {
		return nil, err
	}

	for _, ts := range e.timelines {
		et := times[ts.id]
		for _, b := range ts.sinks {
			var w sink.Write
			err := guard(func() error {
				w = b.Sink.Run(e.arena, et)
				return nil
			})
			if err != nil {
				return nil, &FrameError{Frame: idx, Phase: PhaseSinks, Name: b.Name, Err: err}
			}
			if !w.Changed() {
				continue
			}
			report.Writes = append(report.Writes, SinkWrite{
				Sink:     b.Name,
				Timeline: ts.id,
				Record:   b.Record,
				Field:    b.Field,
				Op:       w.Op,
				Value:    w.Value,
			})
		}
	}

	for _, id := range e.ledgerOrder {
		for _, batch := range e.ledgers[id].TakePruned() {
			report.Pruned = append(report.Pruned, PrunedBatch{Ledger: id, Batch: batch})
			slog.Debug("batch pruned", "frame", idx, "ledger", id, "batch", batch)
		}
	}

	if e.recorder != nil {
		if err := e.recorder.RecordFrame(ctx, report); err != nil {
			return nil, &FrameError{Frame: idx, Phase: PhaseRecord, Err: err}
		}
	}

	slog.Debug("frame evaluated",
		"frame", idx,
		"wall_delta", wallDelta,
		"writes", len(report.Writes),
		"pruned", len(report.Pruned),
	)
	return report, nil
}

// drain applies every queued command.
// CRITICAL: Called only from the frame goroutine - single-writer guarantee.
func (e *Engine) drain(idx uint64) error {
	for _, cmd := range e.queue.Drain() {
		if err := guard(func() error { return e.apply(cmd) }); err != nil {
			return &FrameError{Frame: idx, Phase: PhaseCommands, Name: commandTarget(cmd), Err: err}
		}
	}
	return nil
}

func (e *Engine) apply(cmd Command) error {
	switch c := cmd.(type) {
	case SeekCommand:
		e.Clock(c.Timeline).Apply(timeline.ClockCommand{T: c.T, Paused: c.Paused, ScrubRate: c.ScrubRate})
		slog.Debug("seek applied", "timeline", c.Timeline, "t", e.Clock(c.Timeline).T)

	case ScrubCommand:
		clock := e.Clock(c.Timeline)
		if c.Begin {
			clock.BeginScrub(c.Rate)
		} else {
			clock.EndScrub()
		}
		slog.Debug("scrub applied", "timeline", c.Timeline, "begin", c.Begin, "rate", c.Rate)

	case InsertCommand:
		l := e.Ledger(c.Ledger)
		for _, s := range c.Stops {
			l.InsertValue(s.T, s.Value, c.Batch, s.Disabled)
		}
		slog.Debug("stops inserted", "ledger", c.Ledger, "batch", c.Batch, "count", len(c.Stops))

	default:
		return fmt.Errorf("unknown command type %T", cmd)
	}
	return nil
}

func commandTarget(cmd Command) string {
	switch c := cmd.(type) {
	case SeekCommand:
		return string(c.Timeline)
	case ScrubCommand:
		return string(c.Timeline)
	case InsertCommand:
		return string(c.Ledger)
	}
	return ""
}

// guard runs fn, converting a fatal panic into an error.
func guard(fn func() error) (err error) {
	var fatal error
	func() {
		defer timeline.Recover(&fatal)
		err = fn()
	}()
	if fatal != nil {
		return fatal
	}
	return err
}
