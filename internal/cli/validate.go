package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/kiln/internal/compiler"
	"github.com/roach88/kiln/internal/engine"
	"github.com/roach88/kiln/internal/steps"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Definition string                     `json:"definition"`
	Rules      int                        `json:"rules"`
	Levels     [][]string                 `json:"levels,omitempty"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [definition]",
		Short: "Check the site definition without building",
		Long: `Check the CUE site definition without building anything.

Reports every problem at once: malformed rules, unknown steps and
dependencies, and every dependency cycle (not just the first one the
engine would stop at).

Exit codes:
  0 - Definition is valid
  1 - Definition is invalid
  2 - Command error (definition not found)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts, nil)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	path := definitionPath(cfg, args)

	loaded, err := LoadSite(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && (loadErr.Code == ErrCodeNotFound || loadErr.Code == ErrCodeNoFiles) {
			_ = f.Error(loadErr.Code, loadErr.Message, nil)
			return WrapExitError(ExitCommandError, "cannot load definition", err)
		}
		result := ValidationResult{Definition: path, Errors: []compiler.ValidationError{loadErrorToValidation(err)}}
		return outputValidation(f, result)
	}
	f.VerboseLog("Read %d CUE file(s) from %s", loaded.FileCount, loaded.Path)

	result := ValidationResult{Definition: loaded.Path, Rules: len(loaded.Definition.Rules)}
	reg := steps.NewRegistry(cmd.OutOrStdout())
	result.Errors = compiler.Validate(loaded.Definition, reg.Has)

	if len(result.Errors) == 0 {
		// Step arguments are only checked when the chain is built.
		rules, err := compiler.Assemble(loaded.Definition, reg)
		if err != nil {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "steps",
				Message: err.Error(),
				Code:    compiler.ErrUnknownStep,
			})
		} else if g, err := engine.BuildGraph(rules); err != nil {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "graph",
				Message: err.Error(),
				Code:    ErrCodeGraph,
			})
		} else {
			result.Levels = g.Levels()
		}
	}

	return outputValidation(f, result)
}

func loadErrorToValidation(err error) compiler.ValidationError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return compiler.ValidationError{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    loadErr.Line(),
		}
	}
	return compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
}

func outputValidation(f *OutputFormatter, result ValidationResult) error {
	result.Valid = len(result.Errors) == 0

	if f.JSON() {
		if result.Valid {
			return f.Success(result)
		}
		if err := f.Error(result.Errors[0].Code, fmt.Sprintf("%d validation error(s)", len(result.Errors)), result.Errors); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "validation failed")
	}

	st := f.style()
	if result.Valid {
		fmt.Fprintf(f.Writer, "%s %s: %d rule(s)\n", st.good.Render("✓"), result.Definition, result.Rules)
		for i, level := range result.Levels {
			f.VerboseLog("  level %d: %v", i, level)
		}
		return nil
	}

	fmt.Fprintf(f.Writer, "%s %s: %d error(s)\n", st.bad.Render("✗"), result.Definition, len(result.Errors))
	for _, e := range result.Errors {
		fmt.Fprintf(f.Writer, "  %s\n", e.Error())
	}
	return NewExitError(ExitFailure, "validation failed")
}
