package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/kiln/internal/compiler"
	"github.com/roach88/kiln/internal/config"
	"github.com/roach88/kiln/internal/engine"
	"github.com/roach88/kiln/internal/logging"
	"github.com/roach88/kiln/internal/steps"
	"github.com/roach88/kiln/internal/store"
)

// BuildID is the build ID every scenario runs under.
const BuildID = "scenario-build"

// Harness holds what one scenario run needs: a scratch site directory,
// an in-memory manifest and a logger.
type Harness struct {
	dir    string
	store  *store.Store
	logger zerolog.Logger
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger routes engine logs somewhere. The default discards them.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh temporary directory and a fresh in-memory
// manifest, with a fixed build ID and a fresh logical clock.
//
// Execution flow:
//  1. Write the scenario files under <tmp>/input
//  2. Compile and validate the definition, assemble the rules
//  3. Run the engine with the scenario's build settings
//  4. Record the report in the manifest
//  5. Read back the output tree and evaluate the assertions
//
// The returned error is reserved for harness problems (unreadable files,
// a broken manifest). A definition or graph that is rejected is reported
// in Result.SetupError and checked against ExpectError.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	dir, err := os.MkdirTemp("", "kiln-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{dir: dir, store: st, logger: logging.Discard()}
	for _, opt := range opts {
		opt(h)
	}
	return h.run(ctx, scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult()

	input := filepath.Join(h.dir, "input")
	output := filepath.Join(h.dir, "output")
	if err := writeFiles(input, scenario.Files); err != nil {
		return nil, err
	}

	report, err := h.build(ctx, scenario, input, output)
	if err != nil {
		var setup *setupError
		if !errors.As(err, &setup) {
			return nil, err
		}
		result.SetupError = setup.Error()
		switch {
		case scenario.ExpectError == "":
			result.AddError(fmt.Sprintf("build rejected: %s", setup.Error()))
		case !strings.Contains(setup.Error(), scenario.ExpectError):
			result.AddError(fmt.Sprintf("expected error containing %q, got %q", scenario.ExpectError, setup.Error()))
		}
		return result, nil
	}
	if scenario.ExpectError != "" {
		result.AddError(fmt.Sprintf("expected error containing %q, but the build ran", scenario.ExpectError))
	}

	result.Report = report
	result.Trace = report.Trace

	if _, err := h.store.RecordBuild(ctx, report, scenario.Config.Strict); err != nil {
		return nil, fmt.Errorf("failed to record build: %w", err)
	}

	outputs, err := readTree(output)
	if err != nil {
		return nil, err
	}
	result.Outputs = outputs

	actx := &AssertionContext{
		Store:   h.store,
		Ctx:     ctx,
		BuildID: report.BuildID,
		Strict:  scenario.Config.Strict,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// setupError marks a definition, configuration or graph rejection, as
// opposed to a failure of the harness itself.
type setupError struct {
	err error
}

func (e *setupError) Error() string { return e.err.Error() }
func (e *setupError) Unwrap() error { return e.err }

// build compiles the scenario definition and runs it.
func (h *Harness) build(ctx context.Context, scenario *Scenario, input, output string) (*engine.Report, error) {
	src, filename, err := scenario.definitionSource()
	if err != nil {
		return nil, err
	}

	def, err := compiler.CompileString(filename, src)
	if err != nil {
		return nil, &setupError{err}
	}

	reg := steps.NewRegistry(io.Discard)
	if verrs := compiler.Validate(def, reg.Has); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, v := range verrs {
			msgs[i] = v.Error()
		}
		return nil, &setupError{errors.New(strings.Join(msgs, "; "))}
	}

	rules, err := compiler.Assemble(def, reg)
	if err != nil {
		return nil, &setupError{err}
	}

	cfg := config.New(input, output)
	cfg.Jobs = scenario.Config.Jobs
	cfg.FailFast = scenario.Config.FailFast
	cfg.Strict = scenario.Config.Strict
	cfg.Preview = scenario.Config.Preview
	cfg.Ignore = append(cfg.Ignore, scenario.Config.Ignore...)

	eng, err := engine.New(cfg,
		engine.WithLogger(h.logger),
		engine.WithClock(engine.NewClock()),
		engine.WithBuildIDs(engine.NewFixedGenerator(BuildID)),
	)
	if err != nil {
		return nil, &setupError{err}
	}
	if err := eng.Register(rules...); err != nil {
		return nil, &setupError{err}
	}

	report, err := eng.Run(ctx)
	if err != nil {
		if engine.IsGraphError(err) || config.IsConfigError(err) {
			return nil, &setupError{err}
		}
		return nil, fmt.Errorf("build: %w", err)
	}
	return report, nil
}

// writeFiles materializes a scenario's input tree.
func writeFiles(root string, files map[string]string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create input root: %w", err)
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

// readTree returns every regular file under root keyed by slash path. A
// missing root is an empty tree.
func readTree(root string) (map[string]string, error) {
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read output tree: %w", err)
	}
	return out, nil
}
