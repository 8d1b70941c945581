package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/roach88/kiln/internal/config"
	"github.com/roach88/kiln/internal/logging"
	"github.com/roach88/kiln/internal/site"
	"github.com/roach88/kiln/internal/source"
)

// Engine resolves the rule graph of a build and drives its execution.
//
// The engine is the explicit build context: it owns the configuration,
// the registered rules and, after a run, the table of published bindings.
// There is no package-level registry.
//
// Thread-safety model:
//   - Register(): call before Run, from one goroutine
//   - Run(): one build at a time; rules and items run concurrently inside
//   - Binding(): safe from any goroutine
type Engine struct {
	cfg      *config.Configuration
	rules    []*site.Rule
	names    map[string]bool
	jobs     int
	failFast bool
	logger   zerolog.Logger
	clock    *Clock
	ids      BuildIDGenerator
	sources  []string

	mu        sync.RWMutex
	published map[string]*site.Binding
}

// Option configures an Engine.
type Option func(*Engine)

// WithJobs overrides the build-wide concurrency limit from the
// configuration. Values below 1 are ignored.
func WithJobs(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.jobs = n
		}
	}
}

// WithFailFast overrides the configuration's fail-fast setting.
func WithFailFast(on bool) Option {
	return func(e *Engine) {
		e.failFast = on
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets the logical clock used to stamp trace events.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithBuildIDs sets the build ID generator. Default: UUIDv7Generator.
func WithBuildIDs(g BuildIDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithSources supplies the input identifiers directly instead of walking
// the input root. The ignore predicate still applies.
func WithSources(ids ...string) Option {
	return func(e *Engine) {
		e.sources = append([]string{}, ids...)
	}
}

// New creates an engine for cfg. The configuration is validated here, so
// a configuration error surfaces before any rule is registered.
func New(cfg *config.Configuration, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		names:     make(map[string]bool),
		jobs:      cfg.Workers(),
		failFast:  cfg.FailFast,
		logger:    logging.Discard(),
		clock:     NewClock(),
		ids:       UUIDv7Generator{},
		published: make(map[string]*site.Binding),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Register adds rules to the build. Each rule is snapshotted: builder calls
// made on it afterwards do not affect this engine. Names must be unique.
// A batch is all or nothing: if any rule is rejected, none are added.
func (e *Engine) Register(rules ...*site.Rule) error {
	batch := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.Name() == "" {
			return &GraphError{Code: ErrCodeEmpty, Message: "rule has no name"}
		}
		if e.names[r.Name()] || batch[r.Name()] {
			return NewDuplicateError(r.Name())
		}
		batch[r.Name()] = true
	}
	for _, r := range rules {
		e.names[r.Name()] = true
		e.rules = append(e.rules, r.Snapshot())
	}
	return nil
}

// Rules returns the registered rule names in registration order.
func (e *Engine) Rules() []string {
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Name()
	}
	return out
}

// Graph builds and validates the dependency graph without running anything.
func (e *Engine) Graph() (*Graph, error) {
	return BuildGraph(e.rules)
}

// Binding returns the binding published by rule in the most recent run.
func (e *Engine) Binding(rule string) (*site.Binding, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.published[rule]
	return b, ok
}

// Run executes one build.
//
// Graph and configuration errors are returned as errors before any chain
// runs. Otherwise a Report is always returned, describing every rule and
// every failure; use Report.Err to decide whether the build succeeded.
// Cancelling ctx stops dispatch of new rules and abandons in-flight items.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	g, err := BuildGraph(e.rules)
	if err != nil {
		return nil, err
	}

	sources, err := e.discover()
	if err != nil {
		return nil, err
	}

	b := newBuild(e, g, sources)
	report := b.run(ctx)

	e.mu.Lock()
	e.published = b.published
	e.mu.Unlock()

	return report, nil
}

// discover lists the input identifiers visible to matching rules.
func (e *Engine) discover() ([]string, error) {
	ignore := e.cfg.IgnoreFunc()
	if e.sources != nil {
		var ids []string
		for _, id := range e.sources {
			id = source.Normalize(id)
			if !ignore(id) {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		return ids, nil
	}

	needWalk := false
	for _, r := range e.rules {
		if r.Mode() == site.Matching {
			needWalk = true
			break
		}
	}
	if !needWalk {
		return nil, nil
	}

	ids, err := source.Walk(e.cfg.Input, ignore)
	if err != nil {
		return nil, &config.Error{Field: "input", Message: "cannot read input root", Err: err}
	}
	return ids, nil
}
