package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/game"
	"github.com/roach88/rewind/internal/world"
)

// SimOptions holds flags for the sim command.
type SimOptions struct {
	*RootOptions
	Script   game.Script
	Seed     uint64
	Database string

	// RunIDs allows overriding the run id generator (for testing).
	RunIDs engine.RunIDGenerator
}

// SimResult summarises a demo session.
type SimResult struct {
	RunID     string           `json:"run_id"`
	Seed      uint64           `json:"seed"`
	Frames    map[string]int   `json:"frames"` // per phase
	Writes    int              `json:"writes"`
	Pruned    int              `json:"pruned"`
	FinalT    float64          `json:"final_t"`
	Destroyed []world.RecordID `json:"destroyed"`
}

// NewSimCommand creates the sim command.
func NewSimCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimOptions{RootOptions: rootOpts, Script: game.DefaultScript()}

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run the asteroids demo headless",
		Long: `Run the rewindable asteroids demo with a scripted session.

The game plays until --rewind-at, scrubs back to --rewind-to while paused,
then resumes. Resuming prunes every hit recorded after the rewind target;
the collision system re-derives them while replaying. --rewind-at 0 plays
straight through.

Example:
  rewind sim --seconds 10 --rewind-at 6 --rewind-to 2
  rewind sim --seed 7 --db ./rewind.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSim(opts, cmd)
		},
	}

	s := &opts.Script
	cmd.Flags().Float64Var(&s.Seconds, "seconds", s.Seconds, "session length in game seconds")
	cmd.Flags().Float64Var(&s.Step, "step", s.Step, "frame delta in seconds")
	cmd.Flags().Float64Var(&s.RewindAt, "rewind-at", s.RewindAt, "game time at which to start scrubbing back (0 disables)")
	cmd.Flags().Float64Var(&s.RewindTo, "rewind-to", s.RewindTo, "game time to rewind to")
	cmd.Flags().Float64Var(&s.ScrubRate, "scrub-rate", s.ScrubRate, "scrub speed as a multiple of real time")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", rootOpts.Config.Seed, "playfield seed")
	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.TraceDB, "record the session to this SQLite database")

	return cmd
}

func runSim(opts *SimOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if err := opts.Script.Validate(); err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid script", err)
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	engineOpts := []engine.EngineOption{engine.WithRunIDGenerator(runIDs)}

	if opts.Database != "" {
		spec, err := game.ShipGraph()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to compile ship graph", err)
		}
		st, rec, err := openRecorder(opts.Database, fmt.Sprintf("sim seed=%d", opts.Seed), spec)
		if err != nil {
			return err
		}
		defer closeStore(st)
		engineOpts = append(engineOpts, engine.WithRecorder(rec))
	}

	g, err := game.New(game.DefaultConfig(opts.Seed), engineOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build game", err)
	}
	slog.Info("sim starting", "run_id", g.Engine.RunID(), "seed", opts.Seed,
		"asteroids", len(g.Asteroids), "shots", len(g.Bullets))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	session, err := g.Simulate(ctx, opts.Script)
	if err != nil {
		return WrapExitError(ExitFailure, "simulation failed", err)
	}

	result := SimResult{
		RunID:     g.Engine.RunID(),
		Seed:      opts.Seed,
		Frames:    make(map[string]int),
		Writes:    session.Writes(),
		Pruned:    len(session.Pruned),
		FinalT:    g.Engine.Clock(game.Timeline).T,
		Destroyed: session.Destroyed,
	}
	for _, f := range session.Frames {
		result.Frames[string(f.Phase)]++
	}
	if result.Destroyed == nil {
		result.Destroyed = []world.RecordID{}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "sim %s (seed %d)\n", result.RunID, result.Seed)
	fmt.Fprintf(w, "  frames: %d play, %d scrub, %d replay\n",
		result.Frames[string(game.PhasePlay)], result.Frames[string(game.PhaseScrub)], result.Frames[string(game.PhaseReplay)])
	fmt.Fprintf(w, "  writes: %d, pruned batches: %d\n", result.Writes, result.Pruned)
	fmt.Fprintf(w, "  destroyed at t=%g: %d of %d asteroid(s)\n", result.FinalT, len(result.Destroyed), len(g.Asteroids))
	for _, id := range result.Destroyed {
		fmt.Fprintf(w, "    %s\n", id)
	}
	return nil
}
