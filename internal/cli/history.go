package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kiln/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
	Show  string // build ID or "latest"
	Rule  string
	State string
	Step  string
	Prune int
}

// BuildDetail is the JSON payload of history --show.
type BuildDetail struct {
	Build    store.BuildRecord     `json:"build"`
	Rules    []store.RuleRecord    `json:"rules"`
	Failures []store.FailureRecord `json:"failures"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded builds",
		Long: `List recent builds from the manifest database, newest first.

With --show, print one build's rule results and failures, optionally
narrowed by --rule, --state and --step. With --prune N, delete all but
the N most recent builds.

Examples:
  kiln history -n 5
  kiln history --show latest --state failed
  kiln history --show latest --rule posts --step require_meta
  kiln history --prune 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "number of builds to list (0 = all)")
	cmd.Flags().StringVar(&opts.Show, "show", "", `show one build ("latest" or a build ID)`)
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "with --show, only this rule")
	cmd.Flags().StringVar(&opts.State, "state", "", "with --show, only rules in this state")
	cmd.Flags().StringVar(&opts.Step, "step", "", "with --show, only failures at this step")
	cmd.Flags().IntVar(&opts.Prune, "prune", 0, "keep only the N most recent builds")

	return cmd
}

func runHistory(ctx context.Context, opts *HistoryOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions, nil)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	if cfg.Database == "" {
		_ = f.Error(ErrCodeManifest, "no manifest database configured", nil)
		return NewExitError(ExitCommandError, "no manifest database configured")
	}
	if _, err := os.Stat(cfg.Database); os.IsNotExist(err) {
		if f.JSON() {
			return f.Success([]store.BuildRecord{})
		}
		fmt.Fprintln(f.Writer, "No builds recorded")
		return nil
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		_ = f.Error(ErrCodeManifest, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot open manifest", err)
	}
	defer st.Close()

	switch {
	case opts.Prune > 0:
		return runPrune(ctx, f, st, opts.Prune)
	case opts.Show != "":
		return runShow(ctx, f, st, opts)
	default:
		return runList(ctx, f, st, opts.Limit)
	}
}

func runList(ctx context.Context, f *OutputFormatter, st *store.Store, limit int) error {
	builds, err := st.Builds(ctx, limit)
	if err != nil {
		_ = f.Error(ErrCodeManifest, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot read manifest", err)
	}

	if f.JSON() {
		return f.Success(builds)
	}
	if len(builds) == 0 {
		fmt.Fprintln(f.Writer, "No builds recorded")
		return nil
	}

	s := f.style()
	fmt.Fprintln(f.Writer, s.title.Render(fmt.Sprintf("%-5s %-36s %-20s %-8s %-6s %7s %8s", "SEQ", "BUILD", "STARTED", "DURATION", "STATUS", "OUTPUTS", "FAILURES")))
	for _, b := range builds {
		status := s.good.Render(fmt.Sprintf("%-6s", "ok"))
		if !b.OK {
			status = s.bad.Render(fmt.Sprintf("%-6s", "failed"))
		}
		fmt.Fprintf(f.Writer, "%-5d %-36s %-20s %-8s %s %7d %8d\n",
			b.Seq, b.ID, b.Started.Local().Format(time.DateTime),
			b.Duration().Round(time.Millisecond), status, b.Outputs, b.Failures)
	}
	return nil
}

func runShow(ctx context.Context, f *OutputFormatter, st *store.Store, opts *HistoryOptions) error {
	var (
		build store.BuildRecord
		err   error
	)
	if opts.Show == "latest" {
		build, err = st.LatestBuild(ctx)
	} else {
		build, err = st.Build(ctx, opts.Show)
	}
	if errors.Is(err, sql.ErrNoRows) {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("build %s not found", opts.Show), nil)
		return NewExitError(ExitCommandError, "build not found")
	}
	if err != nil {
		_ = f.Error(ErrCodeManifest, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot read manifest", err)
	}

	rules, err := st.RuleResults(ctx, build.ID, store.RuleFilter{Name: opts.Rule, State: opts.State})
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot read rule results", err)
	}
	failures, err := st.Failures(ctx, build.ID, store.FailureFilter{Rule: opts.Rule, Step: opts.Step})
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot read failures", err)
	}

	if f.JSON() {
		return f.Success(BuildDetail{Build: build, Rules: rules, Failures: failures})
	}

	s := f.style()
	status := s.good.Render("ok")
	if !build.OK {
		status = s.bad.Render("failed")
	}
	fmt.Fprintf(f.Writer, "%s #%d %s (%s, %s)\n", s.title.Render("Build"), build.Seq, build.ID, status,
		build.Duration().Round(time.Millisecond))
	for _, r := range rules {
		fmt.Fprintf(f.Writer, "  %-16s %-8s %-9s %d selected, %d committed, %d skipped, %d failed\n",
			r.Name, r.Mode, r.State, r.Selected, r.Committed, r.Skipped, r.Failed)
	}
	for _, fl := range failures {
		fmt.Fprintf(f.Writer, "  %s %s %s [%s]: %s\n", s.bad.Render("FAIL"), fl.Rule, fl.Source, fl.Step, fl.Message)
	}
	return nil
}

func runPrune(ctx context.Context, f *OutputFormatter, st *store.Store, keep int) error {
	n, err := st.Prune(ctx, keep)
	if err != nil {
		_ = f.Error(ErrCodeManifest, err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot prune manifest", err)
	}
	if f.JSON() {
		return f.Success(map[string]int64{"pruned": n})
	}
	fmt.Fprintf(f.Writer, "Pruned %d build(s)\n", n)
	return nil
}
