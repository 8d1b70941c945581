package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/kiln/internal/ir"
)

// CompileSite parses a CUE value into a SiteDefinition.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the whole definition; rules live under the "rule" struct,
// keyed by name, in declaration order:
//
//	rule: posts: {
//		match: "posts/*.md"
//		steps: ["read", "front_matter", "markdown", {route: "html"}, "write"]
//	}
//	rule: index: {
//		create:     "index.html"
//		depends_on: ["posts"]
//		steps: [{template: "layouts/index.html"}, "write"]
//	}
//
// A definition without a "rule" struct compiles to an empty site.
func CompileSite(v cue.Value) (*ir.SiteDefinition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &ir.SiteDefinition{}
	rulesVal := v.LookupPath(cue.ParsePath("rule"))
	if !rulesVal.Exists() {
		return def, nil
	}

	iter, err := rulesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		rule, err := compileRule(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		def.Rules = append(def.Rules, *rule)
	}
	return def, nil
}

// CompileString compiles CUE source text. filename is used in positions.
func CompileString(filename, src string) (*ir.SiteDefinition, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return CompileSite(v)
}

// compileRule parses one rule body. Exactly one of match, create or
// paginate selects the mode.
func compileRule(name string, v cue.Value) (*ir.RuleSpec, error) {
	rule := &ir.RuleSpec{Name: name}

	var modes []string
	for _, m := range []string{ir.ModeMatch, ir.ModeCreate, ir.ModePaginate} {
		if v.LookupPath(cue.ParsePath(m)).Exists() {
			modes = append(modes, m)
		}
	}
	switch len(modes) {
	case 0:
		return nil, &CompileError{
			Field:   name,
			Message: "rule needs one of match, create or paginate",
			Pos:     v.Pos(),
		}
	case 1:
		rule.Mode = modes[0]
	default:
		return nil, &CompileError{
			Field:   name,
			Message: fmt.Sprintf("rule has more than one mode: %s", strings.Join(modes, ", ")),
			Pos:     v.Pos(),
		}
	}

	var err error
	switch rule.Mode {
	case ir.ModeMatch:
		rule.Pattern, err = lookupString(v, ir.ModeMatch)
	case ir.ModeCreate:
		rule.Target, err = lookupString(v, ir.ModeCreate)
	case ir.ModePaginate:
		rule.Paginate, err = compilePaginate(v.LookupPath(cue.ParsePath(ir.ModePaginate)))
	}
	if err != nil {
		return nil, err
	}

	depsVal := v.LookupPath(cue.ParsePath("depends_on"))
	if depsVal.Exists() {
		if err := depsVal.Decode(&rule.DependsOn); err != nil {
			return nil, formatCUEError(err)
		}
	}

	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if stepsVal.Exists() {
		rule.Steps, err = compileSteps(stepsVal)
		if err != nil {
			return nil, err
		}
	}
	return rule, nil
}

func compilePaginate(v cue.Value) (*ir.PaginateSpec, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   "paginate",
			Message: "must be a struct with from, per_page, first and pattern",
			Pos:     v.Pos(),
		}
	}
	var spec ir.PaginateSpec
	if err := v.Decode(&spec); err != nil {
		return nil, formatCUEError(err)
	}
	return &spec, nil
}

// compileSteps parses the step list. Each element is either a bare step
// name or a single-field struct: {name: arg} or {name: {option: value}}.
func compileSteps(v cue.Value) ([]ir.StepSpec, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ir.StepSpec
	for iter.Next() {
		elem := iter.Value()

		if name, err := elem.String(); err == nil {
			specs = append(specs, ir.StepSpec{Name: name})
			continue
		}

		if elem.IncompleteKind() != cue.StructKind {
			return nil, &CompileError{
				Field:   "steps",
				Message: "a step must be a name or a single-field struct",
				Pos:     elem.Pos(),
			}
		}

		fields, err := elem.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var spec *ir.StepSpec
		for fields.Next() {
			if spec != nil {
				return nil, &CompileError{
					Field:   "steps",
					Message: "a step struct must have exactly one field",
					Pos:     elem.Pos(),
				}
			}
			spec = &ir.StepSpec{Name: fields.Label()}
			if err := compileStepArgs(spec, fields.Value()); err != nil {
				return nil, err
			}
		}
		if spec == nil {
			return nil, &CompileError{
				Field:   "steps",
				Message: "empty step struct",
				Pos:     elem.Pos(),
			}
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

func compileStepArgs(spec *ir.StepSpec, v cue.Value) error {
	if v.IncompleteKind() == cue.StructKind {
		spec.Options = make(map[string]string)
		iter, err := v.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for iter.Next() {
			s, err := scalarString(iter.Value())
			if err != nil {
				return err
			}
			spec.Options[iter.Label()] = s
		}
		return nil
	}

	s, err := scalarString(v)
	if err != nil {
		return err
	}
	spec.Arg = s
	return nil
}

// scalarString formats a string, integer or boolean CUE value.
func scalarString(v cue.Value) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		return s, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatInt(n, 10), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatBool(b), nil
	default:
		return "", &CompileError{
			Field:   "steps",
			Message: fmt.Sprintf("unsupported argument kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func lookupString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: "must be a string",
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// First error with a position wins.
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
