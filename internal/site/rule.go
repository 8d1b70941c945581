package site

import (
	"fmt"
	"sort"
)

// Mode is how a rule selects its items.
type Mode int

const (
	// Matching rules claim every input whose identifier satisfies a predicate.
	Matching Mode = iota
	// Creating rules produce exactly one synthetic item with a fixed target.
	Creating
	// Paginating rules produce one item per page of a dependency's binding.
	Paginating
)

func (m Mode) String() string {
	switch m {
	case Matching:
		return "match"
	case Creating:
		return "create"
	case Paginating:
		return "paginate"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Predicate decides whether a rule claims an input identifier.
type Predicate func(source string) bool

// PageRouter returns the output path of the n-th page (1-based).
type PageRouter func(n int) string

// Rule is a named unit of work: a selection policy, a chain to run over
// each selected item, and the names of rules it depends on.
//
// Rules are built with Match, Create or Paginate and configured with the
// fluent Compiler and DependsOn methods before they are registered with an
// engine. The engine keeps its own snapshot; later changes have no effect
// on a running build.
type Rule struct {
	name      string
	mode      Mode
	predicate Predicate
	target    string
	pageOf    string
	perPage   int
	pageRoute PageRouter
	chain     Compiler
	deps      []string
}

// Match creates a rule that claims every input accepted by pred.
func Match(name string, pred Predicate) *Rule {
	return &Rule{name: name, mode: Matching, predicate: pred}
}

// Create creates a rule that produces a single item for target.
// The item's source and output are both target.
func Create(name, target string) *Rule {
	return &Rule{name: name, mode: Creating, target: target}
}

// Paginate creates a rule that splits the binding of dependency into pages
// of perPage items. Each page item's output is route(n) and its Meta["page"]
// holds a *Page. The dependency edge is added automatically.
func Paginate(name, dependency string, perPage int, route PageRouter) *Rule {
	r := &Rule{
		name:      name,
		mode:      Paginating,
		pageOf:    dependency,
		perPage:   perPage,
		pageRoute: route,
	}
	return r.DependsOnName(dependency)
}

// Compiler attaches the processing pipeline, replacing any previous one.
func (r *Rule) Compiler(c Compiler) *Rule {
	r.chain = c
	return r
}

// DependsOn registers a dependency on other. Repeatable.
func (r *Rule) DependsOn(other *Rule) *Rule {
	return r.DependsOnName(other.name)
}

// DependsOnName registers a dependency by rule name. Duplicates are ignored.
func (r *Rule) DependsOnName(name string) *Rule {
	for _, d := range r.deps {
		if d == name {
			return r
		}
	}
	r.deps = append(r.deps, name)
	return r
}

// Name returns the rule name.
func (r *Rule) Name() string { return r.name }

// Mode returns the selection mode.
func (r *Rule) Mode() Mode { return r.mode }

// Target returns the fixed target of a creating rule.
func (r *Rule) Target() string { return r.target }

// Dependencies returns the declared dependency names in declaration order.
func (r *Rule) Dependencies() []string {
	out := make([]string, len(r.deps))
	copy(out, r.deps)
	return out
}

// Chain returns the attached pipeline, or an empty chain if none was set.
func (r *Rule) Chain() Compiler {
	if r.chain == nil {
		return Chain{}
	}
	return r.chain
}

// Matches reports whether a matching rule claims source.
func (r *Rule) Matches(source string) bool {
	return r.mode == Matching && r.predicate != nil && r.predicate(source)
}

// Snapshot returns a copy of r that is unaffected by later builder calls.
func (r *Rule) Snapshot() *Rule {
	cp := *r
	cp.deps = r.Dependencies()
	return &cp
}

// Select creates the rule's items. sources must already be filtered by the
// ignore predicate; deps holds the rule's published dependencies (needed by
// paginating rules). Items are returned in discovery order: sorted source
// order for matching rules, page order for paginating rules.
func (r *Rule) Select(sources []string, deps Dependencies, env *Env) ([]*Item, error) {
	switch r.mode {
	case Matching:
		var items []*Item
		for _, src := range sources {
			if r.Matches(src) {
				items = append(items, NewItem(r.name, src, env))
			}
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].Source < items[j].Source })
		return items, nil

	case Creating:
		it := NewItem(r.name, r.target, env)
		it.Output = r.target
		return []*Item{it}, nil

	case Paginating:
		b, err := deps.Get(r.pageOf)
		if err != nil {
			return nil, err
		}
		return paginate(r, b, env)

	default:
		return nil, fmt.Errorf("rule %q: unknown mode %v", r.name, r.mode)
	}
}
