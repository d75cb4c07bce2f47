package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/rewind/internal/adapter"
	"github.com/roach88/rewind/internal/sink"
	"github.com/roach88/rewind/internal/timeline"
)

// Recorder persists frame reports. Implemented by store.Recorder.
type Recorder interface {
	RecordFrame(ctx context.Context, r *FrameReport) error
}

// System is a live producer of causal stops (collision, input, state
// transitions). Systems run every frame after the clocks advance and before
// sinks are evaluated.
type System interface {
	Name() string
	Update(ctx context.Context, f *FrameContext) error
}

// SinkBinding attaches a sink to a timeline. Record and Field name the
// target for reports; the sink itself holds the target.
type SinkBinding struct {
	Name     string
	Timeline TimelineID
	Record   string
	Field    string
	Sink     sink.Sink
}

// Engine is the single-writer frame loop.
//
// Thread-safety model:
//   - Enqueue(), Commit(), NewBatch(): safe from any goroutine
//   - Frame(), Run(): must be called from exactly one goroutine
//   - Registration (AddTimeline, RegisterLedger, AddSink, AddSystem): before
//     the first frame, from the frame goroutine
//
// INVARIANTS:
//   - timelines, sinks and systems run in registration order
//   - a ledger is registered once and belongs to one timeline
type Engine struct {
	arena    *adapter.Arena
	registry timeline.Registry
	queue    *commandQueue
	recorder Recorder
	runID    string

	timelines []*timelineState
	byID      map[TimelineID]*timelineState

	ledgers     map[LedgerID]timeline.Ledger
	ledgerOrder []LedgerID

	systems []System
	frame   uint64

	stopOnce sync.Once
	stop     chan struct{}
}

type timelineState struct {
	id    TimelineID
	clock *timeline.Clock
	sinks []SinkBinding
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*engineConfig)

type engineConfig struct {
	registry timeline.Registry
	recorder Recorder
	runIDs   RunIDGenerator
}

// WithRegistry injects the batch id registry. Default: timeline.NewCounter().
func WithRegistry(r timeline.Registry) EngineOption {
	return func(c *engineConfig) { c.registry = r }
}

// WithRecorder attaches a frame recorder.
func WithRecorder(r Recorder) EngineOption {
	return func(c *engineConfig) { c.recorder = r }
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(c *engineConfig) { c.runIDs = g }
}

// New creates an Engine with an empty arena.
func New(opts ...EngineOption) *Engine {
	cfg := engineConfig{
		registry: timeline.NewCounter(),
		runIDs:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine{
		arena:    adapter.NewArena(),
		registry: cfg.registry,
		queue:    newCommandQueue(),
		recorder: cfg.recorder,
		runID:    cfg.runIDs.Generate(),
		byID:     make(map[TimelineID]*timelineState),
		ledgers:  make(map[LedgerID]timeline.Ledger),
		stop:     make(chan struct{}),
	}
}

// Arena returns the adapter arena nodes are added to.
func (e *Engine) Arena() *adapter.Arena { return e.arena }

// Registry returns the injected batch id registry.
func (e *Engine) Registry() timeline.Registry { return e.registry }

// RunID returns the identifier of this engine run.
func (e *Engine) RunID() string { return e.runID }

// FrameIndex returns the index the next frame will have.
func (e *Engine) FrameIndex() uint64 { return e.frame }

// AddTimeline registers a clock under id.
func (e *Engine) AddTimeline(id TimelineID, clock *timeline.Clock) error {
	if _, dup := e.byID[id]; dup {
		return fmt.Errorf("timeline %q already registered", id)
	}
	ts := &timelineState{id: id, clock: clock}
	e.timelines = append(e.timelines, ts)
	e.byID[id] = ts
	return nil
}

// Timelines returns the registered timeline ids in registration order.
func (e *Engine) Timelines() []TimelineID {
	out := make([]TimelineID, len(e.timelines))
	for i, ts := range e.timelines {
		out[i] = ts.id
	}
	return out
}

// Clock returns the clock of timeline id. A missing timeline is fatal.
func (e *Engine) Clock(id TimelineID) *timeline.Clock {
	ts, ok := e.byID[id]
	if !ok {
		timeline.Fatal(timeline.ErrCodeMissingClock, string(id), "timeline not registered")
	}
	return ts.clock
}

// RegisterLedger makes ledger addressable by id for InsertCommands.
func (e *Engine) RegisterLedger(id LedgerID, tl TimelineID, ledger timeline.Ledger) error {
	if _, ok := e.byID[tl]; !ok {
		return fmt.Errorf("ledger %q: timeline %q not registered", id, tl)
	}
	if _, dup := e.ledgers[id]; dup {
		return fmt.Errorf("ledger %q already registered", id)
	}
	e.ledgers[id] = ledger
	e.ledgerOrder = append(e.ledgerOrder, id)
	return nil
}

// Ledger returns the ledger registered under id. A missing ledger is fatal.
func (e *Engine) Ledger(id LedgerID) timeline.Ledger {
	l, ok := e.ledgers[id]
	if !ok {
		timeline.Fatal(timeline.ErrCodeMissingLedger, string(id), "ledger not registered")
	}
	return l
}

// AddSink appends a sink to its timeline's pass.
func (e *Engine) AddSink(b SinkBinding) error {
	ts, ok := e.byID[b.Timeline]
	if !ok {
		return fmt.Errorf("sink %q: timeline %q not registered", b.Name, b.Timeline)
	}
	ts.sinks = append(ts.sinks, b)
	return nil
}

// AddSystem appends a live producer.
func (e *Engine) AddSystem(s System) {
	e.systems = append(e.systems, s)
}

// Enqueue submits a command for the next drain.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(c Command) bool {
	if !e.queue.Enqueue(c) {
		slog.Warn("command dropped: engine stopped", "command", fmt.Sprintf("%T", c))
		return false
	}
	return true
}

// NewBatch draws one BatchID for a causal event.
// Thread-safe: may be called from any goroutine.
func (e *Engine) NewBatch() *Batch {
	return &Batch{ID: e.registry.Next()}
}

// Commit enqueues every insertion of b.
// Returns false if any command was dropped.
func (e *Engine) Commit(b *Batch) bool {
	ok := true
	for _, cmd := range b.Commands() {
		if !e.Enqueue(cmd) {
			ok = false
		}
	}
	return ok
}

// Run drives Frame at a fixed tick from wall-clock deltas.
// Blocks until the context is cancelled, Stop() is called, or a frame fails.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context, tick time.Duration) error {
	slog.Info("engine starting", "run_id", e.runID, "tick", tick)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled", "frames", e.frame)
			e.queue.Close()
			return ctx.Err()

		case <-e.stop:
			slog.Info("engine stopping: stopped", "frames", e.frame)
			return nil

		case now := <-ticker.C:
			delta := now.Sub(last).Seconds()
			last = now
			if _, err := e.Frame(ctx, delta); err != nil {
				slog.Error("frame failed", "error", err)
				return err
			}
		}
	}
}

// RunFrames evaluates n frames of wallDelta seconds each.
func (e *Engine) RunFrames(ctx context.Context, n int, wallDelta float64) ([]*FrameReport, error) {
	reports := make([]*FrameReport, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		r, err := e.Frame(ctx, wallDelta)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Stop shuts down the engine. Further commands are rejected and Run returns.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.queue.Close()
		close(e.stop)
	})
}
