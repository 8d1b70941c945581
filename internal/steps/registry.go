package steps

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/kiln/internal/ir"
	"github.com/roach88/kiln/internal/site"
)

// Factory builds a compiler from its declarative form.
type Factory func(spec ir.StepSpec) (site.Compiler, error)

// Registry maps step names used in site definitions to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry holding the stock steps. print writes to
// out, or to stdout when out is nil.
func NewRegistry(out io.Writer) *Registry {
	if out == nil {
		out = os.Stdout
	}
	r := &Registry{factories: make(map[string]Factory)}

	r.Register("read", noArgs(Read))
	r.Register("write", noArgs(Write))
	r.Register("copy", noArgs(Copy))
	r.Register("front_matter", noArgs(FrontMatter))
	r.Register("markdown", noArgs(Markdown))
	r.Register("publishable", noArgs(Publishable))
	r.Register("print", func(ir.StepSpec) (site.Compiler, error) { return Print(out), nil })
	r.Register("route", buildRoute)
	r.Register("template", buildTemplate)
	r.Register("inject", buildInject)
	r.Register("retain", buildRetain)
	r.Register("require_meta", buildRequireMeta)
	r.Register("gzip", buildGzip)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered step names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build creates the compiler for spec.
func (r *Registry) Build(spec ir.StepSpec) (site.Compiler, error) {
	f, ok := r.factories[spec.Name]
	if !ok {
		return nil, fmt.Errorf("unknown step %q", spec.Name)
	}
	c, err := f(spec)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", spec.Name, err)
	}
	return c, nil
}

// BuildChain creates a chain from specs in order.
func (r *Registry) BuildChain(specs []ir.StepSpec) (site.Chain, error) {
	chain := make(site.Chain, 0, len(specs))
	for _, s := range specs {
		c, err := r.Build(s)
		if err != nil {
			return nil, err
		}
		chain = append(chain, c)
	}
	return chain, nil
}

func noArgs(fn func() site.Compiler) Factory {
	return func(spec ir.StepSpec) (site.Compiler, error) {
		if spec.Arg != "" || len(spec.Options) > 0 {
			return nil, fmt.Errorf("takes no arguments")
		}
		return fn(), nil
	}
}

// buildRoute accepts:
//
//	route                                   identity
//	{route: "html"}                         replace the extension
//	{route: {extension: "html"}}            same
//	{route: {static: "index.html"}}         fixed path
//	{route: {pattern: "...", replace: ""}}  regex rewrite
//
// Any form may add fold_case: "true".
func buildRoute(spec ir.StepSpec) (site.Compiler, error) {
	var router site.Router
	opts := spec.Options
	switch {
	case spec.Arg != "":
		router = site.SetExtension(spec.Arg)
	case opts["extension"] != "":
		router = site.SetExtension(opts["extension"])
	case opts["static"] != "":
		router = site.Static(opts["static"])
	case opts["pattern"] != "":
		re, err := site.Regex(opts["pattern"], opts["replace"])
		if err != nil {
			return nil, err
		}
		router = re
	default:
		router = site.Identity
	}

	if v := opts["fold_case"]; v != "" {
		fold, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("fold_case: %w", err)
		}
		if fold {
			router = site.FoldCase(router)
		}
	}
	return site.Route(router), nil
}

func buildTemplate(spec ir.StepSpec) (site.Compiler, error) {
	name := spec.Option("file")
	if name == "" {
		return nil, fmt.Errorf("template file is required")
	}
	return Template(name), nil
}

// buildInject accepts {inject: "key=value"} or {inject: {key: k, value: v}}.
func buildInject(spec ir.StepSpec) (site.Compiler, error) {
	if spec.Arg != "" {
		k, v, ok := strings.Cut(spec.Arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("want key=value, got %q", spec.Arg)
		}
		return Inject(k, v), nil
	}
	k := spec.Options["key"]
	if k == "" {
		return nil, fmt.Errorf("key is required")
	}
	return Inject(k, spec.Options["value"]), nil
}

// buildRetain accepts {retain: "publishable"} or {retain: {key: k, equals: v}}.
func buildRetain(spec ir.StepSpec) (site.Compiler, error) {
	if spec.Arg != "" {
		if spec.Arg == "publishable" {
			return Publishable(), nil
		}
		return nil, fmt.Errorf("unknown retain policy %q", spec.Arg)
	}
	k := spec.Options["key"]
	if k == "" {
		return nil, fmt.Errorf("key is required")
	}
	return MetaEquals(k, spec.Options["equals"]), nil
}

// buildRequireMeta accepts a comma-separated key list.
func buildRequireMeta(spec ir.StepSpec) (site.Compiler, error) {
	raw := spec.Option("keys")
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one key is required")
	}
	return RequireMeta(keys...), nil
}

func buildGzip(spec ir.StepSpec) (site.Compiler, error) {
	raw := spec.Option("level")
	if raw == "" {
		return Gzip(0), nil
	}
	level, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("level: %w", err)
	}
	if level < -2 || level > 9 {
		return nil, fmt.Errorf("level %d out of range", level)
	}
	return Gzip(level), nil
}
