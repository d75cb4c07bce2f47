package game

import (
	"context"
	"log/slog"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/world"
)

var (
	_ engine.System = (*InputSystem)(nil)
	_ engine.System = (*CollisionSystem)(nil)
)

// InputSystem replays the scripted input track. Each shot crossed while
// playing forward becomes one batch: alive at the fire time and dead at
// expiry.
type InputSystem struct {
	game *Game
}

// Name implements engine.System.
func (s *InputSystem) Name() string { return "input" }

// Update implements engine.System.
func (s *InputSystem) Update(_ context.Context, f *engine.FrameContext) error {
	et := f.Time(Timeline)
	if !et.Playing() {
		return nil
	}

	for _, b := range s.game.Bullets {
		at := b.Shot.At
		if at <= et.PrevT || at > et.T {
			continue
		}
		batch := f.NewBatch().
			Add(b.aliveLedger, at, true).
			Add(b.aliveLedger, at+BulletLifetime, false)
		f.Commit(batch)
		slog.Debug("shot fired", "bullet", b.ID, "t", at, "batch", batch.ID)
	}
	return nil
}

// CollisionSystem finds bullet/asteroid hits while playing forward. A hit
// records, under one batch, the asteroid's new hp, its death when hp runs
// out and the bullet's death, so a rewind prunes them together.
type CollisionSystem struct {
	game *Game
}

// Name implements engine.System.
func (s *CollisionSystem) Name() string { return "collision" }

// Update implements engine.System.
func (s *CollisionSystem) Update(_ context.Context, f *engine.FrameContext) error {
	et := f.Time(Timeline)
	if !et.Playing() {
		return nil
	}
	g := s.game
	t := et.T

	// A rock can be hit by several bullets in one frame.
	hp := make(map[world.RecordID]int, len(g.Asteroids))

	for _, b := range g.Bullets {
		if !b.InFlight(t) || !g.Alive(b.ID) {
			continue
		}
		bp := b.Motion.At(t)

		for _, a := range g.Asteroids {
			left, seen := hp[a.ID]
			if !seen {
				left = g.HP(a.ID)
				if !g.Alive(a.ID) {
					left = 0
				}
			}
			if left <= 0 {
				continue
			}
			if !CirclesOverlap(bp, BulletRadius, a.Motion.At(t), a.Radius) {
				continue
			}

			left--
			hp[a.ID] = left

			batch := f.NewBatch().Add(a.hpLedger, t, ir.Scalar(left))
			if left == 0 {
				batch.Add(a.aliveLedger, t, false)
			}
			batch.Add(b.aliveLedger, t, false)
			f.Commit(batch)

			slog.Debug("hit",
				"bullet", b.ID,
				"asteroid", a.ID,
				"t", t,
				"hp", left,
				"batch", batch.ID,
			)
			break
		}
	}
	return nil
}
