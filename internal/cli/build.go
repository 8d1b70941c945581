package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kiln/internal/engine"
	"github.com/roach88/kiln/internal/logging"
	"github.com/roach88/kiln/internal/store"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Jobs     int
	FailFast bool
	Strict   bool
	Preview  bool
	Database string
}

// BuildSummary is the JSON payload of a build.
type BuildSummary struct {
	BuildID    string               `json:"build_id"`
	OK         bool                 `json:"ok"`
	Outputs    int                  `json:"outputs"`
	Duration   string               `json:"duration"`
	Rules      []*engine.RuleResult `json:"rules"`
	Failures   []engine.Failure     `json:"failures,omitempty"`
	Collisions []engine.Collision   `json:"collisions,omitempty"`
	Warnings   []string             `json:"warnings,omitempty"`
	Cancelled  bool                 `json:"cancelled,omitempty"`
	Recorded   bool                 `json:"recorded"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build [definition]",
		Short: "Build the site",
		Long: `Build the site described by the CUE definition.

Rules run as soon as their dependencies have published; items of a rule
run in parallel, bounded by --jobs across the whole build. The build is
recorded in the manifest database unless database is empty.

Exit codes:
  0 - Build succeeded
  1 - Build failed (failed rule, collision, cancellation, or any item
      failure with --strict)
  2 - Command error (invalid configuration, missing definition)

Examples:
  kiln build
  kiln build -j 4 --fail-fast
  kiln build --strict --format json
  kiln build ./site`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBuild(ctx, opts, args, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "maximum items in flight (0 = number of CPUs)")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop a rule at its first item failure")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail the build on any item failure")
	cmd.Flags().BoolVar(&opts.Preview, "preview", false, "include drafts")
	cmd.Flags().StringVar(&opts.Database, "db", "", "manifest database path (overrides configuration)")

	return cmd
}

// overrides returns the configuration keys for the flags that were set.
func (o *BuildOptions) overrides(cmd *cobra.Command) map[string]any {
	m := map[string]any{}
	set := func(flag, key string, v any) {
		if cmd.Flags().Changed(flag) {
			m[key] = v
		}
	}
	set("jobs", "jobs", o.Jobs)
	set("fail-fast", "fail_fast", o.FailFast)
	set("strict", "strict", o.Strict)
	set("preview", "preview", o.Preview)
	set("db", "database", o.Database)
	return m
}

func runBuild(ctx context.Context, opts *BuildOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := logging.GetLogger("cli")
	defer logging.LogOperationStart(logger, "build")()

	cfg, err := loadConfig(opts.RootOptions, opts.overrides(cmd))
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}

	proj, err := loadProject(cfg, definitionPath(cfg, args), cmd.OutOrStdout())
	if err != nil {
		return reportProjectError(f, err)
	}
	f.VerboseLog("Loaded %d rule(s) from %s", len(proj.rules), proj.loaded.Path)

	if len(proj.rules) == 0 {
		if f.JSON() {
			return f.Success(BuildSummary{Rules: []*engine.RuleResult{}, OK: true})
		}
		fmt.Fprintln(f.Writer, "Nothing to do")
		return nil
	}

	eng, err := engine.New(cfg, engine.WithLogger(logging.GetLogger("engine")))
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if err := eng.Register(proj.rules...); err != nil {
		return reportProjectError(f, err)
	}

	report, err := eng.Run(ctx)
	if err != nil {
		return reportProjectError(f, err)
	}

	summary := BuildSummary{
		BuildID:    report.BuildID,
		OK:         report.OK(cfg.Strict),
		Outputs:    report.Outputs(),
		Duration:   report.Finished.Sub(report.Started).Round(time.Millisecond).String(),
		Rules:      report.Rules,
		Failures:   report.Failures,
		Collisions: report.Collisions,
		Warnings:   report.Warnings,
		Cancelled:  report.Cancelled,
	}

	if cfg.Database != "" {
		if err := recordBuild(ctx, cfg.Database, report, cfg.Strict); err != nil {
			logger.Error().Err(err).Str("database", cfg.Database).Msg("cannot record build")
			fmt.Fprintf(f.GetErrWriter(), "warning: build not recorded: %v\n", err)
		} else {
			summary.Recorded = true
		}
	}

	if f.JSON() {
		if err := f.Success(summary); err != nil {
			return err
		}
	} else {
		printBuildText(f, summary)
	}

	if buildErr := report.Err(cfg.Strict); buildErr != nil {
		return WrapExitError(ExitFailure, "build failed", buildErr)
	}
	return nil
}

// recordBuild writes the report to the manifest. The build context may
// already be cancelled, so the write gets its own.
func recordBuild(ctx context.Context, path string, report *engine.Report, strict bool) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	_, err = st.RecordBuild(context.WithoutCancel(ctx), report, strict)
	return err
}

func printBuildText(f *OutputFormatter, s BuildSummary) {
	w := f.Writer
	st := f.style()

	if f.Verbose {
		for _, rr := range s.Rules {
			printRuleLine(w, st, rr)
		}
	}

	for _, fl := range s.Failures {
		where := fl.Rule
		if fl.Source != "" {
			where += " " + fl.Source
		}
		fmt.Fprintf(w, "%s %s: %s\n", st.bad.Render("FAIL"), where, fl.Message)
	}
	for _, c := range s.Collisions {
		fmt.Fprintf(w, "%s %s claimed by %d items\n", st.bad.Render("COLLISION"), c.Path, len(c.Claims))
	}
	for _, warn := range s.Warnings {
		fmt.Fprintf(w, "%s %s\n", st.warn.Render("WARN"), warn)
	}

	status := st.good.Render("Build succeeded")
	switch {
	case s.Cancelled:
		status = st.bad.Render("Build cancelled")
	case !s.OK:
		status = st.bad.Render("Build failed")
	}
	fmt.Fprintf(w, "%s: %d output(s), %d failure(s) in %s %s\n",
		status, s.Outputs, len(s.Failures), s.Duration, st.muted.Render("("+s.BuildID+")"))
}

func printRuleLine(w io.Writer, st *styles, rr *engine.RuleResult) {
	state := string(rr.State)
	switch rr.State {
	case engine.RulePublished:
		state = st.good.Render(state)
	case engine.RuleFailed, engine.RuleCancelled:
		state = st.bad.Render(state)
	case engine.RuleSkipped:
		state = st.warn.Render(state)
	}
	fmt.Fprintf(w, "  %-16s %-8s %s  %d selected, %d committed, %d skipped, %d failed",
		rr.Name, rr.Mode, state, rr.Selected, rr.Committed, rr.Skipped, rr.Failed)
	if rr.StartSeq > 0 {
		fmt.Fprintf(w, " %s", st.muted.Render(fmt.Sprintf("[seq %d-%d]", rr.StartSeq, rr.PublishSeq)))
	}
	if rr.Reason != "" {
		fmt.Fprintf(w, " (%s)", rr.Reason)
	}
	fmt.Fprintln(w)
}
