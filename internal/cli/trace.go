package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // empty selects the latest run
	Field    string // optional "record.field" history filter
	List     bool
}

// TraceResult holds one recorded run.
type TraceResult struct {
	Run     store.Run     `json:"run"`
	Frames  []store.Frame `json:"frames,omitempty"`
	History []store.Write `json:"history,omitempty"`
	Stats   TraceStats    `json:"stats"`
}

// TraceStats holds summary statistics for a run.
type TraceStats struct {
	Frames int `json:"frames"`
	Writes int `json:"writes"`
	Pruned int `json:"pruned"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print a recorded run",
		Long: `Print the frames of a run recorded with --db.

Each frame shows its evaluation times, the sink writes it made and the
batches it pruned. --field narrows the output to the history of one record
field.

Examples:
  rewind trace --db ./rewind.db --list
  rewind trace --db ./rewind.db
  rewind trace --db ./rewind.db --run 0190... --field rock.hp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.TraceDB, "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default: latest run)")
	cmd.Flags().StringVar(&opts.Field, "field", "", "print the history of record.field only")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer closeStore(st)

	if opts.List {
		return listRuns(ctx, formatter, st)
	}

	run, err := selectRun(ctx, st, opts.RunID)
	if err != nil {
		return err
	}

	result := TraceResult{Run: run}
	if opts.Field != "" {
		record, field, ok := strings.Cut(opts.Field, ".")
		if !ok || record == "" || field == "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid --field %q: want record.field", opts.Field))
		}
		result.History, err = st.ReadFieldHistory(ctx, run.ID, record, field)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read field history", err)
		}
		result.Stats.Writes = len(result.History)
	} else {
		result.Frames, err = st.ReadFrames(ctx, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read frames", err)
		}
		result.Stats = frameStats(result.Frames)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter, result)
}

// openExistingStore opens a trace database that must already exist.
func openExistingStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "--db is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// selectRun reads run id, or the latest run when id is empty.
func selectRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	var (
		run store.Run
		err error
	)
	if id == "" {
		run, err = st.ReadLatestRun(ctx)
	} else {
		run, err = st.ReadRun(ctx, id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		if id == "" {
			return store.Run{}, NewExitError(ExitCommandError, "no runs recorded")
		}
		return store.Run{}, NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", id))
	}
	if err != nil {
		return store.Run{}, WrapExitError(ExitCommandError, "failed to read run", err)
	}
	return run, nil
}

func frameStats(frames []store.Frame) TraceStats {
	stats := TraceStats{Frames: len(frames)}
	for _, f := range frames {
		stats.Writes += len(f.Writes)
		stats.Pruned += len(f.Pruned)
	}
	return stats
}

func listRuns(ctx context.Context, formatter *OutputFormatter, st *store.Store) error {
	runs, err := st.ReadRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if formatter.JSON() {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(formatter.Writer, "%s  %s  graph %.12s\n", r.ID, r.Name, r.GraphHash)
	}
	return nil
}

// outputTraceText outputs the trace in human-readable format.
func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer
	fmt.Fprintf(w, "run %s (%s)\n", result.Run.ID, result.Run.Name)
	fmt.Fprintf(w, "graph %s v%s, engine %s\n", result.Run.GraphHash, result.Run.GraphVersion, result.Run.EngineVersion)
	fmt.Fprintln(w)

	if result.History != nil {
		for _, wr := range result.History {
			fmt.Fprintf(w, "[%d] %s %s.%s %s (%s)\n", wr.Frame, wr.Op, wr.Record, wr.Field, wr.Value, wr.Sink)
		}
		fmt.Fprintf(w, "\nStats: %d write(s)\n", result.Stats.Writes)
		return nil
	}

	for _, f := range result.Frames {
		fmt.Fprintf(w, "[%d] dt=%g", f.Index, f.WallDelta)
		for _, t := range f.Times {
			state := ""
			if t.Paused {
				state = " paused"
			}
			fmt.Fprintf(w, " %s t=%g prev=%g%s", t.Timeline, t.T, t.PrevT, state)
		}
		fmt.Fprintln(w)
		for _, wr := range f.Writes {
			fmt.Fprintf(w, "    %s %s.%s %s (%s)\n", wr.Op, wr.Record, wr.Field, wr.Value, wr.Sink)
		}
		for _, p := range f.Pruned {
			fmt.Fprintf(w, "    pruned batch %d from %s\n", p.Batch, p.Ledger)
		}
	}
	fmt.Fprintf(w, "\nStats: %d frame(s), %d write(s), %d pruned batch(es)\n",
		result.Stats.Frames, result.Stats.Writes, result.Stats.Pruned)
	return nil
}
