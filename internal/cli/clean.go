package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// CleanOptions holds flags for the clean command.
type CleanOptions struct {
	*RootOptions
	KeepHidden bool
}

// CleanResult is the JSON payload of clean.
type CleanResult struct {
	Output  string   `json:"output"`
	Removed []string `json:"removed"`
	Kept    []string `json:"kept,omitempty"`
}

// NewCleanCommand creates the clean command.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Empty the output root",
		Long: `Remove everything under the configured output root. The root itself
is kept. With --keep-hidden, entries whose name starts with a dot
(.git, .nojekyll) survive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.KeepHidden, "keep-hidden", false, "keep dot-files at the top of the output root")

	return cmd
}

func runClean(opts *CleanOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions, nil)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}

	result, err := cleanOutput(cfg.Output, opts.KeepHidden)
	if err != nil {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "clean failed", err)
	}

	if f.JSON() {
		return f.Success(result)
	}
	for _, name := range result.Removed {
		f.VerboseLog("removed %s", name)
	}
	if len(result.Removed) == 0 {
		fmt.Fprintln(f.Writer, "Nothing to clean")
		return nil
	}
	fmt.Fprintf(f.Writer, "Removed %d entr%s from %s\n", len(result.Removed), plural(len(result.Removed), "y", "ies"), cfg.Output)
	return nil
}

// cleanOutput removes the entries of root. A missing root is already clean.
func cleanOutput(root string, keepHidden bool) (CleanResult, error) {
	result := CleanResult{Output: root, Removed: []string{}}

	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("cannot read output root: %w", err)
	}

	for _, e := range entries {
		if keepHidden && strings.HasPrefix(e.Name(), ".") {
			result.Kept = append(result.Kept, e.Name())
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			return result, fmt.Errorf("cannot remove %s: %w", e.Name(), err)
		}
		result.Removed = append(result.Removed, e.Name())
	}
	return result, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
