package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/graph"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/world"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Database string
	Tick     time.Duration
	Duration time.Duration // 0 runs until interrupted

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <graph>",
		Short: "Drive a graph from the wall clock",
		Long: `Build a graph and run the engine's fixed-rate frame loop in real time.

Frames run every --tick (REWIND_TICK) until --duration elapses or the
process is interrupted. The final world state is printed on exit.

Example:
  rewind play ./graphs/ship --duration 5s
  rewind play --db ./rewind.db --tick 33ms ./graphs/ship`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.TraceDB, "record frames to this SQLite database")
	cmd.Flags().DurationVar(&opts.Tick, "tick", rootOpts.Config.Tick, "frame interval")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (0 runs until interrupted)")

	return cmd
}

func runPlay(opts *PlayOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Tick <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("tick must be positive, got %v", opts.Tick))
	}

	loaded, err := loadGraphOrExit(formatter, path)
	if err != nil {
		return err
	}
	if errs := validateGraph(loaded.Spec); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	engineOpts := []engine.EngineOption{engine.WithRunIDGenerator(runIDs)}
	if opts.Database != "" {
		st, rec, err := openRecorder(opts.Database, path, loaded.Spec)
		if err != nil {
			return err
		}
		defer closeStore(st)
		engineOpts = append(engineOpts, engine.WithRecorder(rec))
	}

	eng := engine.New(engineOpts...)
	w := world.New()
	if _, err := graph.Build(loaded.Spec, eng, w); err != nil {
		return WrapExitError(ExitCommandError, "failed to build graph", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	if opts.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Duration elapsed or parent context cancelled (e.g., from test)
		}
	}()

	if !formatter.JSON() {
		fmt.Fprintf(formatter.Writer, "Playing %s (run %s). Press Ctrl-C to stop.\n", path, eng.RunID())
	}

	err = eng.Run(ctx, opts.Tick)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	slog.Info("engine stopped gracefully", "frames", eng.FrameIndex())

	state := w.Snapshot()
	if formatter.JSON() {
		return formatter.Success(map[string]any{
			"run_id": eng.RunID(),
			"frames": eng.FrameIndex(),
			"state":  state,
		})
	}
	fmt.Fprintf(formatter.Writer, "%d frame(s)\n", eng.FrameIndex())
	for _, rec := range ir.SortedKeys(state) {
		fmt.Fprintf(formatter.Writer, "  %s: %v\n", rec, state[rec])
	}
	return nil
}
