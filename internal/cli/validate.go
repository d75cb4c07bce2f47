package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/compiler"
	"github.com/roach88/rewind/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Hash   string                     `json:"graph_hash,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph>",
		Short: "Validate a timeline graph",
		Long: `Validate a CUE timeline graph without running it.

Compiles the declarations, then checks references, value kinds and option
depths, single-reader ledger rules and node reference cycles.

Exit codes:
  0 - Graph is valid
  1 - Validation errors found
  2 - Command error (graph not found, CUE does not evaluate, etc.)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, err := loadGraphOrExit(formatter, path)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Loaded %d CUE file(s) from %s", len(loaded.Files), path)

	errs := validateGraph(loaded.Spec)
	if len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	hash, err := ir.GraphHash(loaded.Spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash graph", err)
	}
	return outputValidateSuccess(formatter, loaded.Spec, hash)
}

// validateGraph runs schema validation and cycle analysis. Cycles are
// reported as E213 validation errors.
func validateGraph(spec *ir.GraphSpec) []compiler.ValidationError {
	errs := compiler.Validate(spec)
	for _, c := range compiler.AnalyzeCycles(spec) {
		field := "node"
		if len(c.Path) > 0 {
			field += "." + c.Path[0]
		}
		errs = append(errs, compiler.ValidationError{
			Field:   field,
			Message: c.Message,
			Code:    compiler.ErrNodeCycle,
		})
	}
	return errs
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, spec *ir.GraphSpec, hash string) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Hash: hash})
	}

	fmt.Fprintf(formatter.Writer, "✓ Graph valid: %d timeline(s), %d ledger(s), %d node(s), %d sink(s)\n",
		len(spec.Timelines), len(spec.Ledgers), len(spec.Nodes), len(spec.Sinks))
	formatter.VerboseLog("graph hash %s", hash)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.Failure(errs[0].Code, errs[0].Message, ValidationResult{Valid: false, Errors: errs}); err != nil {
			return err
		}
		return failure
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return failure
}
