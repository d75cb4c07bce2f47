package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/harness"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunResult is the outcome of one scenario run.
type RunResult struct {
	Name   string               `json:"name"`
	RunID  string               `json:"run_id"`
	Pass   bool                 `json:"pass"`
	Errors []string             `json:"errors,omitempty"`
	Trace  []harness.TraceEvent `json:"trace"`
	State  map[string]any       `json:"state"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its trace",
		Long: `Run a scenario against its graph and print every frame.

With --db (or REWIND_TRACE_DB) every frame is recorded for later inspection
with trace and replay. Scenarios without a run_id get a fresh UUIDv7.

Example:
  rewind run ./scenarios/rock_rewind.yaml
  rewind run --db ./rewind.db ./scenarios/rock_rewind.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.TraceDB, "record the run to this SQLite database")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	runOpts := []harness.Option{
		harness.WithRunID(runIDs.Generate()),
		harness.WithLogger(slog.Default()),
	}

	if opts.Database != "" {
		spec, err := harness.LoadGraph(scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load graph", err)
		}
		st, rec, err := openRecorder(opts.Database, scenario.Name, spec)
		if err != nil {
			return err
		}
		defer closeStore(st)
		runOpts = append(runOpts, harness.WithRecorder(rec))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "scenario failed to run", err)
	}

	out := RunResult{
		Name:   scenario.Name,
		RunID:  result.RunID,
		Pass:   result.Pass,
		Errors: result.Errors,
		Trace:  result.Trace,
		State:  result.State,
	}
	if formatter.JSON() {
		if out.Pass {
			return formatter.Success(out)
		}
		if err := formatter.Failure("E_SCENARIO_FAILED", fmt.Sprintf("%d check(s) failed", len(out.Errors)), out); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "scenario failed")
	}

	w := formatter.Writer
	fmt.Fprintf(w, "scenario %s (run %s)\n", out.Name, out.RunID)
	writeTraceText(w, out.Trace)
	if !out.Pass {
		fmt.Fprintf(w, "✗ %s\n", out.Name)
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return NewExitError(ExitFailure, "scenario failed")
	}
	fmt.Fprintf(w, "✓ %s\n", out.Name)
	return nil
}

// writeTraceText prints one line per frame and one indented line per write
// or prune.
func writeTraceText(w io.Writer, trace []harness.TraceEvent) {
	for _, ev := range trace {
		fmt.Fprintf(w, "[%d]", ev.Frame)
		for _, tt := range ev.Times {
			state := ""
			if tt.Paused {
				state = " paused"
			}
			fmt.Fprintf(w, " %s t=%g prev=%g%s", tt.Timeline, tt.T, tt.PrevT, state)
		}
		fmt.Fprintln(w)
		for _, wr := range ev.Writes {
			if wr.Value == nil {
				fmt.Fprintf(w, "    %s %s.%s (%s)\n", wr.Op, wr.Record, wr.Field, wr.Sink)
				continue
			}
			fmt.Fprintf(w, "    %s %s.%s = %v (%s)\n", wr.Op, wr.Record, wr.Field, wr.Value, wr.Sink)
		}
		for _, p := range ev.Pruned {
			fmt.Fprintf(w, "    pruned %s from %s\n", p.Batch, p.Ledger)
		}
	}
}

// openRecorder opens the trace database and a recorder for a run of spec.
func openRecorder(path, name string, spec *ir.GraphSpec) (*store.Store, *store.Recorder, error) {
	hash, err := ir.GraphHash(spec)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to hash graph", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	rec := store.NewRecorder(st, store.Run{
		Name:          name,
		GraphHash:     hash,
		GraphVersion:  ir.GraphVersion,
		EngineVersion: ir.EngineVersion,
	})
	slog.Debug("recording run", "db", path, "name", name)
	return st, rec, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
