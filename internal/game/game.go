// Package game is a headless, rewindable asteroids-style simulation.
//
// The player ship is a declared graph (ship.cue). Asteroids and bullets
// move as pure functions of time; everything that happens to them (shots,
// hits, destruction) is recorded as causal stops by live systems, so an
// operator can scrub back, resume, and have the future re-derived.
package game

import (
	_ "embed"
	"fmt"

	"github.com/roach88/rewind/internal/adapter"
	"github.com/roach88/rewind/internal/compiler"
	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/graph"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/sink"
	"github.com/roach88/rewind/internal/timeline"
	"github.com/roach88/rewind/internal/world"
)

//go:embed ship.cue
var shipSource string

// Timeline is the single game timeline declared by ship.cue.
const Timeline engine.TimelineID = "main"

// Record field names.
const (
	FieldPos   = "pos"
	FieldHP    = "hp"
	FieldAlive = "alive"
)

// Asteroid is a destructible rock.
type Asteroid struct {
	ID     world.RecordID
	Size   AsteroidSize
	Radius float64
	Motion *Motion

	hpLedger    engine.LedgerID
	aliveLedger engine.LedgerID
}

// Bullet is one scripted shot.
type Bullet struct {
	ID     world.RecordID
	Shot   Shot
	Motion *Motion

	aliveLedger engine.LedgerID
}

// InFlight reports whether t lies within the bullet's lifetime.
func (b *Bullet) InFlight(t float64) bool {
	return t >= b.Shot.At && t < b.Shot.At+BulletLifetime
}

// Game wires the ship graph, the rocks, the bullets and their systems onto
// one engine.
type Game struct {
	Engine *engine.Engine
	World  *world.World
	Ship   *graph.Program
	Config Config

	Asteroids []*Asteroid
	Bullets   []*Bullet
}

// ShipGraph compiles the embedded ship graph.
func ShipGraph() (*ir.GraphSpec, error) {
	spec, err := compiler.CompileString(shipSource, "ship.cue")
	if err != nil {
		return nil, fmt.Errorf("compile ship graph: %w", err)
	}
	return spec, nil
}

// New builds a game from cfg. Engine options (registry, recorder, run id)
// are passed through.
func New(cfg Config, opts ...engine.EngineOption) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("game config: %w", err)
	}
	spec, err := ShipGraph()
	if err != nil {
		return nil, err
	}

	e := engine.New(opts...)
	w := world.New()
	ship, err := graph.Build(spec, e, w)
	if err != nil {
		return nil, err
	}

	g := &Game{Engine: e, World: w, Ship: ship, Config: cfg}
	for i, ac := range cfg.Asteroids {
		if err := g.addAsteroid(i+1, ac); err != nil {
			return nil, err
		}
	}
	for i, s := range cfg.Shots {
		if err := g.addBullet(i+1, s); err != nil {
			return nil, err
		}
	}

	e.AddSystem(&InputSystem{game: g})
	e.AddSystem(&CollisionSystem{game: g})
	return g, nil
}

func (g *Game) addAsteroid(n int, ac AsteroidConfig) error {
	a := &Asteroid{
		ID:          world.RecordID(fmt.Sprintf("asteroid-%d", n)),
		Size:        ac.Size,
		Radius:      ac.Size.Radius(),
		Motion:      ac.motion(g.Config.Screen),
		hpLedger:    ledgerID(fmt.Sprintf("asteroid-%d", n), FieldHP),
		aliveLedger: ledgerID(fmt.Sprintf("asteroid-%d", n), FieldAlive),
	}
	g.World.Insert(a.ID)

	hp := seeded(ir.Scalar(ac.hp()))
	alive := seeded(true)
	if err := g.register(a.hpLedger, hp); err != nil {
		return err
	}
	if err := g.register(a.aliveLedger, alive); err != nil {
		return err
	}

	arena := g.Engine.Arena()
	pos := adapter.Add[ir.Vec2](arena, a.Motion)
	hpNode := adapter.Add[ir.Option[ir.Scalar]](arena, &adapter.Animate[ir.Scalar]{Ledger: hp})
	aliveNode := adapter.Add[ir.Option[bool]](arena, &adapter.Animate[bool]{Ledger: alive})

	if err := g.bind(a.ID, FieldPos, &sink.Apply[ir.Vec2]{
		Node: pos, Target: world.Field[ir.Vec2](g.World, a.ID, FieldPos),
	}); err != nil {
		return err
	}
	if err := g.bind(a.ID, FieldHP, &sink.TryApply[ir.Scalar]{
		Node: hpNode, Target: world.Field[ir.Scalar](g.World, a.ID, FieldHP), Mode: sink.ModeUpdate,
	}); err != nil {
		return err
	}
	if err := g.bind(a.ID, FieldAlive, &sink.TryApply[bool]{
		Node: aliveNode, Target: world.Field[bool](g.World, a.ID, FieldAlive), Mode: sink.ModeUpdate,
	}); err != nil {
		return err
	}

	g.Asteroids = append(g.Asteroids, a)
	return nil
}

func (g *Game) addBullet(n int, s Shot) error {
	b := &Bullet{
		ID:   world.RecordID(fmt.Sprintf("bullet-%d", n)),
		Shot: s,
		Motion: &Motion{
			Origin:   s.Origin,
			Velocity: Heading(s.Angle).Scale(BulletSpeed),
			Start:    s.At,
			Screen:   g.Config.Screen,
		},
		aliveLedger: ledgerID(fmt.Sprintf("bullet-%d", n), FieldAlive),
	}
	g.World.Insert(b.ID)

	// Not alive until the input system fires it.
	alive := seeded(false)
	if err := g.register(b.aliveLedger, alive); err != nil {
		return err
	}

	// pos exists only while the shot is in flight.
	arena := g.Engine.Arena()
	motion := adapter.Add[ir.Vec2](arena, b.Motion)
	fired := adapter.Add[ir.Option[ir.Vec2]](arena, &adapter.After[ir.Vec2]{Input: motion, At: s.At})
	live := adapter.Add[ir.Option[ir.Option[ir.Vec2]]](arena, &adapter.Before[ir.Option[ir.Vec2]]{Input: fired, At: s.At + BulletLifetime})
	pos := adapter.Add[ir.Option[ir.Vec2]](arena, &adapter.Flatten[ir.Vec2]{Input: live})
	aliveNode := adapter.Add[ir.Option[bool]](arena, &adapter.Animate[bool]{Ledger: alive})

	if err := g.bind(b.ID, FieldPos, &sink.TryApply[ir.Vec2]{
		Node: pos, Target: world.Field[ir.Vec2](g.World, b.ID, FieldPos), Mode: sink.ModeDirect,
	}); err != nil {
		return err
	}
	if err := g.bind(b.ID, FieldAlive, &sink.TryApply[bool]{
		Node: aliveNode, Target: world.Field[bool](g.World, b.ID, FieldAlive), Mode: sink.ModeUpdate,
	}); err != nil {
		return err
	}

	g.Bullets = append(g.Bullets, b)
	return nil
}

func (g *Game) register(id engine.LedgerID, l timeline.Ledger) error {
	return g.Engine.RegisterLedger(id, Timeline, l)
}

func (g *Game) bind(rec world.RecordID, field string, s sink.Sink) error {
	return g.Engine.AddSink(engine.SinkBinding{
		Name:     string(rec) + "." + field,
		Timeline: Timeline,
		Record:   string(rec),
		Field:    field,
		Sink:     s,
	})
}

// Alive reports the alive field of rec as last written.
func (g *Game) Alive(rec world.RecordID) bool {
	v, _ := g.World.Get(rec, FieldAlive)
	alive, _ := v.(bool)
	return alive
}

// HP reports the hp field of rec as last written.
func (g *Game) HP(rec world.RecordID) int {
	v, _ := g.World.Get(rec, FieldHP)
	hp, _ := v.(ir.Scalar)
	return int(hp)
}

// seeded creates a ledger holding v from t=0 under the deterministic batch.
func seeded[T any](v T) *timeline.Discrete[T] {
	d := timeline.NewDiscrete[T]()
	d.Insert(0, v, timeline.Deterministic)
	return d
}

func ledgerID(rec, field string) engine.LedgerID {
	return engine.LedgerID(rec + "." + field)
}
