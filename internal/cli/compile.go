package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds a compiled graph and its identity.
type CompilationResult struct {
	Hash    string          `json:"graph_hash"`
	Version string          `json:"graph_version"`
	Graph   json.RawMessage `json:"graph"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <graph>",
		Short: "Compile a CUE graph to canonical IR",
		Long: `Compile a CUE timeline graph to canonical JSON.

The graph is validated first. The canonical form is what the graph hash is
computed over, so recorded runs can be matched to the graph they ran.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := loadGraphOrExit(formatter, path)
	if err != nil {
		return err
	}
	if errs := validateGraph(loaded.Spec); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	canonical, err := ir.CanonicalGraph(loaded.Spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to marshal graph", err)
	}
	hash, err := ir.GraphHash(loaded.Spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash graph", err)
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, canonical, 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		formatter.VerboseLog("wrote %s", opts.Output)
	}

	if formatter.JSON() {
		return formatter.Success(CompilationResult{
			Hash:    hash,
			Version: ir.GraphVersion,
			Graph:   canonical,
		})
	}

	spec := loaded.Spec
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d ledger(s), %d node(s), %d sink(s)\n",
		len(spec.Ledgers), len(spec.Nodes), len(spec.Sinks))
	fmt.Fprintf(formatter.Writer, "graph hash: %s\n", hash)
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "written to %s\n", opts.Output)
	} else {
		fmt.Fprintln(formatter.Writer, string(canonical))
	}
	return nil
}
