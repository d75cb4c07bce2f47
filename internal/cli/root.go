package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/config"
)

// RootOptions holds global flags for all commands.
// Defaults come from REWIND_* environment variables; flags override them.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  config.Config

	envErr error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rewind CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	opts.envErr = config.ParseEnv(&opts.Config)

	cmd := &cobra.Command{
		Use:   "rewind",
		Short: "rewind - rewindable timelines",
		Long: `Evaluate timeline graphs whose state can be scrubbed, paused and
rewound, with causal stops that are pruned when play resumes.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envErr != nil {
				return WrapExitError(ExitCommandError, "invalid environment", opts.envErr)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			opts.Config.Format = opts.Format
			if err := opts.Config.Validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			setupLogging(opts, cmd)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", opts.Config.Format, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config.LogLevel, "log-level", opts.Config.LogLevel, "log level (debug|info|warn|error)")

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewSimCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// setupLogging installs the process logger on stderr. --verbose forces
// debug level.
func setupLogging(opts *RootOptions, cmd *cobra.Command) {
	level, _ := config.ParseLevel(opts.Config.LogLevel)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
