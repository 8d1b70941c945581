package compiler

import (
	"fmt"

	"github.com/roach88/kiln/internal/ir"
	"github.com/roach88/kiln/internal/site"
	"github.com/roach88/kiln/internal/source"
	"github.com/roach88/kiln/internal/steps"
)

// Assemble turns a validated definition into rules ready to register with
// an engine. Steps are built from reg. Rules are returned in declaration
// order.
func Assemble(def *ir.SiteDefinition, reg *steps.Registry) ([]*site.Rule, error) {
	rules := make([]*site.Rule, 0, len(def.Rules))
	for _, spec := range def.Rules {
		r, err := assembleRule(spec, reg)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", spec.Name, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func assembleRule(spec ir.RuleSpec, reg *steps.Registry) (*site.Rule, error) {
	var r *site.Rule
	switch spec.Mode {
	case ir.ModeMatch:
		pred, err := source.Glob(spec.Pattern)
		if err != nil {
			return nil, err
		}
		r = site.Match(spec.Name, pred)
	case ir.ModeCreate:
		r = site.Create(spec.Name, spec.Target)
	case ir.ModePaginate:
		p := spec.Paginate
		if p == nil {
			return nil, fmt.Errorf("paginate block is required")
		}
		r = site.Paginate(spec.Name, p.From, p.PerPage, PageRoute(p.First, p.Pattern))
	default:
		return nil, fmt.Errorf("invalid mode %q", spec.Mode)
	}

	for _, d := range spec.DependsOn {
		r.DependsOnName(d)
	}

	chain, err := reg.BuildChain(spec.Steps)
	if err != nil {
		return nil, err
	}
	return r.Compiler(chain), nil
}

// PageRoute routes page 1 to first and page n to pattern formatted with n.
func PageRoute(first, pattern string) site.PageRouter {
	return func(n int) string {
		if n == 1 {
			return first
		}
		return fmt.Sprintf(pattern, n)
	}
}
