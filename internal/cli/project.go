package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/roach88/kiln/internal/compiler"
	"github.com/roach88/kiln/internal/config"
	"github.com/roach88/kiln/internal/engine"
	"github.com/roach88/kiln/internal/site"
	"github.com/roach88/kiln/internal/steps"
)

// project is a loaded configuration with its compiled, validated and
// assembled site definition.
type project struct {
	cfg    *config.Configuration
	loaded *LoadResult
	rules  []*site.Rule
}

// loadConfig reads the project configuration. overrides are usually the
// flags the user actually set.
func loadConfig(opts *RootOptions, overrides map[string]any) (*config.Configuration, error) {
	dir := opts.Config
	if dir == "" {
		dir = "."
	}
	cfg, err := config.Load(dir, overrides)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// definitionPath picks the definition: an explicit argument (relative to
// the working directory) or the configured one.
func definitionPath(cfg *config.Configuration, args []string) string {
	if len(args) > 0 && args[0] != "" {
		p, err := filepath.Abs(args[0])
		if err == nil {
			return p
		}
		return args[0]
	}
	return cfg.Definition
}

// definitionError is a definition that loaded but did not validate.
type definitionError struct {
	Errors []compiler.ValidationError
}

func (e *definitionError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d definition errors, first: %v", len(e.Errors), e.Errors[0])
}

// loadProject loads, validates and assembles the definition. The step
// registry writes print output to out.
//
// Errors:
//   - *LoadError: the definition is missing or does not compile
//   - *definitionError: validation failed
//   - *engine.GraphError: the assembled rules do not form a DAG
func loadProject(cfg *config.Configuration, path string, out io.Writer) (*project, error) {
	loaded, err := LoadSite(path)
	if err != nil {
		return nil, err
	}

	reg := steps.NewRegistry(out)
	if verrs := compiler.Validate(loaded.Definition, reg.Has); len(verrs) > 0 {
		return nil, &definitionError{Errors: verrs}
	}

	rules, err := compiler.Assemble(loaded.Definition, reg)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	if _, err := engine.BuildGraph(rules); err != nil {
		return nil, err
	}

	return &project{cfg: cfg, loaded: loaded, rules: rules}, nil
}

// reportProjectError prints a loadProject error and returns the matching
// exit error: a missing definition is a command error, an invalid one a
// failure.
func reportProjectError(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	var defErr *definitionError
	var graphErr *engine.GraphError

	switch {
	case errors.As(err, &loadErr):
		_ = f.Error(loadErr.Code, loadErr.Error(), nil)
		code := ExitFailure
		if loadErr.Code == ErrCodeNotFound || loadErr.Code == ErrCodeNoFiles {
			code = ExitCommandError
		}
		return WrapExitError(code, "cannot load definition", err)
	case errors.As(err, &defErr):
		if f.JSON() {
			_ = f.Error(defErr.Errors[0].Code, defErr.Error(), defErr.Errors)
		} else {
			for _, v := range defErr.Errors {
				_ = f.Error(v.Code, v.Field+": "+v.Message, nil)
			}
		}
		return WrapExitError(ExitFailure, "invalid definition", err)
	case errors.As(err, &graphErr):
		_ = f.Error(ErrCodeGraph, graphErr.Error(), graphErr.Rules)
		return WrapExitError(ExitFailure, "invalid rule graph", err)
	default:
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "cannot load definition", err)
	}
}
