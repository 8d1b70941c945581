package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/kiln/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose int    // -v count: 1 info, 2 debug, 3 trace
	Format  string // "json" | "text"
	Config  string // project directory holding kiln.toml / kiln.yaml
	LogFile bool   // also log to the file under the XDG state directory

	logCloser io.Closer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the kiln CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kiln",
		Short: "kiln - a dependency-aware static site build engine",
		Long: `kiln builds a site from a CUE definition of rules.

Each rule selects items (by glob, as a single created output, or as pages
over another rule), runs them through a chain of steps and publishes the
result to the rules that depend on it. Independent rules and items run in
parallel.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setupLogging(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.closeLog()
		},
	}

	cmd.PersistentFlags().CountVarP(&opts.Verbose, "verbose", "v", "verbose output (repeat for more)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "C", ".", "project directory")
	cmd.PersistentFlags().BoolVar(&opts.LogFile, "log-file", false, "also write logs to "+logging.LogFilePath())

	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewCleanCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewGraphCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func (o *RootOptions) setupLogging(w io.Writer) error {
	if !o.LogFile {
		logging.Setup(o.Verbose, w)
		return nil
	}
	closer, err := logging.SetupFile(o.Verbose, w, logging.LogFilePath())
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot open log file", err)
	}
	o.logCloser = closer
	return nil
}

func (o *RootOptions) closeLog() error {
	if o.logCloser == nil {
		return nil
	}
	err := o.logCloser.Close()
	o.logCloser = nil
	return err
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
