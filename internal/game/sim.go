package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/world"
)

// Script drives a headless session: play to RewindAt, scrub back to
// RewindTo at ScrubRate, resume and play until Seconds of timeline time.
// A zero RewindAt plays straight through.
type Script struct {
	Seconds   float64
	Step      float64
	RewindAt  float64
	RewindTo  float64
	ScrubRate float64
}

// DefaultScript plays 8s with a 3s rewind from t=5.
func DefaultScript() Script {
	return Script{Seconds: 8, Step: 0.05, RewindAt: 5, RewindTo: 2, ScrubRate: 4}
}

// Validate checks the script.
func (s Script) Validate() error {
	switch {
	case !(s.Step > 0):
		return fmt.Errorf("step must be positive, got %v", s.Step)
	case !(s.Seconds > 0):
		return fmt.Errorf("seconds must be positive, got %v", s.Seconds)
	case s.RewindAt < 0 || s.RewindTo < 0:
		return fmt.Errorf("rewind times must not be negative")
	case s.RewindAt > 0 && s.RewindTo >= s.RewindAt:
		return fmt.Errorf("rewind target %v must precede rewind start %v", s.RewindTo, s.RewindAt)
	case s.RewindAt > 0 && !(s.ScrubRate > 0):
		return fmt.Errorf("scrub rate must be positive, got %v", s.ScrubRate)
	}
	return nil
}

// Phase labels a stretch of a session.
type Phase string

const (
	PhasePlay   Phase = "play"
	PhaseScrub  Phase = "scrub"
	PhaseReplay Phase = "replay"
)

// FrameLog is one evaluated frame of a session.
type FrameLog struct {
	Phase  Phase
	Report *engine.FrameReport
}

// Session is the outcome of Simulate.
type Session struct {
	Frames []FrameLog
	Pruned []engine.PrunedBatch
	Final  map[string]any

	// Destroyed lists asteroids dead at the end, in declaration order.
	Destroyed []world.RecordID
}

// Writes counts sink writes across the session.
func (s *Session) Writes() int {
	n := 0
	for _, f := range s.Frames {
		n += len(f.Report.Writes)
	}
	return n
}

// Simulate runs s on g from its current time.
func (g *Game) Simulate(ctx context.Context, s Script) (*Session, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	e := g.Engine
	clock := e.Clock(Timeline)
	out := &Session{}

	frame := func(p Phase) error {
		r, err := e.Frame(ctx, s.Step)
		if err != nil {
			return err
		}
		out.Frames = append(out.Frames, FrameLog{Phase: p, Report: r})
		out.Pruned = append(out.Pruned, r.Pruned...)
		return nil
	}

	if s.RewindAt > 0 {
		for clock.T < s.RewindAt {
			if err := frame(PhasePlay); err != nil {
				return nil, err
			}
		}
		slog.Info("scrubbing back", "from", clock.T, "to", s.RewindTo)

		e.Enqueue(engine.ScrubCommand{Timeline: Timeline, Begin: true, Rate: -s.ScrubRate})
		for {
			if err := frame(PhaseScrub); err != nil {
				return nil, err
			}
			if clock.T-s.ScrubRate*s.Step <= s.RewindTo {
				break
			}
		}

		// Land exactly on the target, still paused, then let go.
		e.Enqueue(engine.ScrubCommand{Timeline: Timeline, Begin: false})
		e.Enqueue(engine.Pause(Timeline, true))
		e.Enqueue(engine.Seek(Timeline, s.RewindTo))
		if err := frame(PhaseScrub); err != nil {
			return nil, err
		}
		e.Enqueue(engine.Pause(Timeline, false))
		slog.Info("resumed", "t", clock.T)
	}

	phase := PhasePlay
	if s.RewindAt > 0 {
		phase = PhaseReplay
	}
	for clock.T < s.Seconds {
		if err := frame(phase); err != nil {
			return nil, err
		}
	}

	out.Final = g.World.Snapshot()
	for _, a := range g.Asteroids {
		if !g.Alive(a.ID) {
			out.Destroyed = append(out.Destroyed, a.ID)
		}
	}
	slog.Info("session complete",
		"frames", len(out.Frames),
		"writes", out.Writes(),
		"pruned", len(out.Pruned),
		"destroyed", len(out.Destroyed),
	)
	return out, nil
}
