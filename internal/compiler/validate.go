package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/kiln/internal/ir"
	"github.com/roach88/kiln/internal/site"
)

// Validation error codes (E100-E199)
const (
	ErrRuleNameInvalid     = "E101" // rule name empty or malformed
	ErrRuleModeInvalid     = "E102" // unknown selection mode
	ErrMatchPattern        = "E103" // match pattern missing or not a valid glob
	ErrCreateTarget        = "E104" // create target missing or escapes the output root
	ErrPaginateSpec        = "E105" // paginate block incomplete or inconsistent
	ErrDuplicateRule       = "E106" // rule name used twice
	ErrUnknownDependency   = "E107" // depends_on names a rule that does not exist
	ErrUnknownStep         = "E108" // step name not registered
	ErrDependencyCycle     = "E109" // rules depend on each other
	ErrDuplicateDependency = "E110" // depends_on lists a rule twice
)

var ruleNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ValidationError represents a definition validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled site definition.
// Returns all errors found (does not fail-fast). knownStep reports whether
// a step name can be built; nil skips step checks.
func Validate(def *ir.SiteDefinition, knownStep func(string) bool) []ValidationError {
	var errs []ValidationError

	names := make(map[string]bool, len(def.Rules))
	for i, r := range def.Rules {
		field := fmt.Sprintf("rule[%d]", i)
		if r.Name != "" {
			field = "rule." + r.Name
		}

		if !ruleNamePattern.MatchString(r.Name) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid rule name %q", r.Name),
				Code:    ErrRuleNameInvalid,
			})
		}
		if names[r.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate rule name %q", r.Name),
				Code:    ErrDuplicateRule,
			})
		}
		names[r.Name] = true

		errs = append(errs, validateMode(field, r)...)

		for j, s := range r.Steps {
			if knownStep != nil && !knownStep(s.Name) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.steps[%d]", field, j),
					Message: fmt.Sprintf("unknown step %q", s.Name),
					Code:    ErrUnknownStep,
				})
			}
		}
	}

	for _, r := range def.Rules {
		seen := make(map[string]bool)
		for _, d := range r.DependsOn {
			if seen[d] {
				errs = append(errs, ValidationError{
					Field:   "rule." + r.Name + ".depends_on",
					Message: fmt.Sprintf("%q listed twice", d),
					Code:    ErrDuplicateDependency,
				})
			}
			seen[d] = true
			if !names[d] {
				errs = append(errs, ValidationError{
					Field:   "rule." + r.Name + ".depends_on",
					Message: fmt.Sprintf("unknown rule %q", d),
					Code:    ErrUnknownDependency,
				})
			}
		}
		if r.Mode == ir.ModePaginate && r.Paginate != nil && r.Paginate.From != "" && !names[r.Paginate.From] {
			errs = append(errs, ValidationError{
				Field:   "rule." + r.Name + ".paginate.from",
				Message: fmt.Sprintf("unknown rule %q", r.Paginate.From),
				Code:    ErrUnknownDependency,
			})
		}
	}

	for _, c := range AnalyzeCycles(def) {
		errs = append(errs, ValidationError{
			Field:   "depends_on",
			Message: c.Message,
			Code:    ErrDependencyCycle,
		})
	}
	return errs
}

func validateMode(field string, r ir.RuleSpec) []ValidationError {
	var errs []ValidationError
	if !ir.ValidModes[r.Mode] {
		return []ValidationError{{
			Field:   field + ".mode",
			Message: fmt.Sprintf("invalid mode %q, must be \"match\", \"create\" or \"paginate\"", r.Mode),
			Code:    ErrRuleModeInvalid,
		}}
	}

	switch r.Mode {
	case ir.ModeMatch:
		if strings.TrimSpace(r.Pattern) == "" || !doublestar.ValidatePattern(r.Pattern) {
			errs = append(errs, ValidationError{
				Field:   field + ".match",
				Message: fmt.Sprintf("invalid glob %q", r.Pattern),
				Code:    ErrMatchPattern,
			})
		}
	case ir.ModeCreate:
		if _, err := site.CleanOutput(r.Target); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".create",
				Message: err.Error(),
				Code:    ErrCreateTarget,
			})
		}
	case ir.ModePaginate:
		errs = append(errs, validatePaginate(field+".paginate", r.Paginate)...)
	}
	return errs
}

func validatePaginate(field string, p *ir.PaginateSpec) []ValidationError {
	if p == nil {
		return []ValidationError{{Field: field, Message: "paginate block is required", Code: ErrPaginateSpec}}
	}

	var errs []ValidationError
	add := func(sub, msg string) {
		errs = append(errs, ValidationError{Field: field + "." + sub, Message: msg, Code: ErrPaginateSpec})
	}
	if p.From == "" {
		add("from", "source rule is required")
	}
	if p.PerPage <= 0 {
		add("per_page", fmt.Sprintf("must be positive, got %d", p.PerPage))
	}
	if _, err := site.CleanOutput(p.First); err != nil {
		add("first", err.Error())
	}
	if strings.Count(p.Pattern, "%d") != 1 {
		add("pattern", fmt.Sprintf("must contain exactly one %%d, got %q", p.Pattern))
	} else if _, err := site.CleanOutput(fmt.Sprintf(p.Pattern, 2)); err != nil {
		add("pattern", err.Error())
	}
	return errs
}
