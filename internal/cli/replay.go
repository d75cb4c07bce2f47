package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/harness"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/store"
)

// maxDivergences caps how many differences a replay reports.
const maxDivergences = 10

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // empty selects the latest run
}

// ReplayResult holds the outcome of replaying one recorded run.
type ReplayResult struct {
	RunID         string   `json:"run_id"`
	Scenario      string   `json:"scenario"`
	Frames        int      `json:"frames"`
	Deterministic bool     `json:"deterministic"`
	Divergences   []string `json:"divergences,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Re-run a recorded scenario and verify determinism",
		Long: `Re-run a scenario under the run id it was recorded with and compare
every frame against the recording.

The graph hash, every evaluation time, every sink write and every pruned
batch must match exactly.

Exit codes:
  0 - The replay matched the recording
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  rewind replay ./scenarios/rock_rewind.yaml --db ./rewind.db
  rewind replay ./scenarios/rock_rewind.yaml --db ./rewind.db --run 0190...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.TraceDB, "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default: latest run)")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer closeStore(st)

	run, err := selectRun(ctx, st, opts.RunID)
	if err != nil {
		return err
	}
	recorded, err := st.ReadFrames(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read frames", err)
	}
	if run.Name != scenario.Name {
		formatter.VerboseLog("run %s was recorded as %q, replaying %q", run.ID, run.Name, scenario.Name)
	}

	spec, err := harness.LoadGraph(scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load graph", err)
	}
	hash, err := ir.GraphHash(spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash graph", err)
	}

	result := ReplayResult{RunID: run.ID, Scenario: scenario.Name, Frames: len(recorded)}
	if hash != run.GraphHash {
		result.Divergences = append(result.Divergences,
			fmt.Sprintf("graph hash: recorded %s, now %s", run.GraphHash, hash))
	}

	replayed, err := rerun(ctx, scenario, spec, run)
	if err != nil {
		return err
	}
	result.Divergences = append(result.Divergences, diffFrames(recorded, replayed)...)
	result.Deterministic = len(result.Divergences) == 0

	if formatter.JSON() {
		if result.Deterministic {
			return formatter.Success(result)
		}
		if err := formatter.Failure("E_DETERMINISM", "determinism verification failed", result); err != nil {
			return err
		}
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return outputReplayText(formatter, result)
}

// rerun executes scenario under run's id, recording into a scratch database,
// and returns the frames it produced.
func rerun(ctx context.Context, scenario *harness.Scenario, spec *ir.GraphSpec, run store.Run) ([]store.Frame, error) {
	dir, err := os.MkdirTemp("", "rewind-replay-*")
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create scratch directory", err)
	}
	defer os.RemoveAll(dir)

	st, rec, err := openRecorder(filepath.Join(dir, "replay.db"), run.Name, spec)
	if err != nil {
		return nil, err
	}
	defer closeStore(st)

	if _, err := harness.Run(scenario, harness.WithRunID(run.ID), harness.WithRecorder(rec)); err != nil {
		return nil, WrapExitError(ExitCommandError, "scenario failed to run", err)
	}
	frames, err := st.ReadFrames(ctx, run.ID)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read replayed frames", err)
	}
	return frames, nil
}

// diffFrames describes where got departs from want, frame by frame.
func diffFrames(want, got []store.Frame) []string {
	var out []string
	add := func(format string, args ...any) bool {
		out = append(out, fmt.Sprintf(format, args...))
		return len(out) < maxDivergences
	}

	if len(want) != len(got) {
		if !add("frame count: recorded %d, replayed %d", len(want), len(got)) {
			return out
		}
	}
	for i := range min(len(want), len(got)) {
		w, g := want[i], got[i]
		switch {
		case w.Index != g.Index:
			if !add("frame %d: replayed as frame %d", w.Index, g.Index) {
				return out
			}
			continue
		case w.WallDelta != g.WallDelta:
			if !add("frame %d: wall delta %g, replayed %g", w.Index, w.WallDelta, g.WallDelta) {
				return out
			}
		}
		if !reflect.DeepEqual(w.Times, g.Times) {
			if !add("frame %d: times %v, replayed %v", w.Index, w.Times, g.Times) {
				return out
			}
		}
		if !reflect.DeepEqual(w.Writes, g.Writes) {
			if !add("frame %d: %d write(s), replayed %d differing", w.Index, len(w.Writes), len(g.Writes)) {
				return out
			}
		}
		if !reflect.DeepEqual(w.Pruned, g.Pruned) {
			if !add("frame %d: pruned %v, replayed %v", w.Index, w.Pruned, g.Pruned) {
				return out
			}
		}
	}
	return out
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Replay %s (run %s): %d frame(s)\n", result.Scenario, result.RunID, result.Frames)
	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay matches recording")
		return nil
	}

	for _, d := range result.Divergences {
		fmt.Fprintf(w, "  %s\n", d)
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
