package engine

import (
	"container/heap"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/roach88/kiln/internal/site"
)

// build is the state of one Run. It is owned by the coordinator goroutine;
// rule goroutines only read the fields fixed at construction and report
// back through the done channel.
type build struct {
	id       string
	g        *Graph
	sources  []string
	env      *site.Env
	jobs     int
	failFast bool
	sem      *semaphore.Weighted
	trace    *tracer
	logger   zerolog.Logger

	results    []*RuleResult
	failures   [][]Failure
	collisions []Collision
	warnings   []string
	published  map[string]*site.Binding
}

// ruleOutcome is what a rule goroutine hands back to the coordinator.
type ruleOutcome struct {
	index      int
	result     *RuleResult
	failures   []Failure
	collisions []Collision
	warnings   []string
	committed  []*site.Item
}

func newBuild(e *Engine, g *Graph, sources []string) *build {
	id := e.ids.Generate()
	return &build{
		id:      id,
		g:       g,
		sources: sources,
		env: &site.Env{
			InputRoot:  e.cfg.Input,
			OutputRoot: e.cfg.Output,
			Preview:    e.cfg.Preview,
			Outputs:    site.NewOutputLedger(),
		},
		jobs:      e.jobs,
		failFast:  e.failFast,
		sem:       semaphore.NewWeighted(int64(e.jobs)),
		trace:     newTracer(e.clock),
		logger:    e.logger.With().Str("build_id", id).Logger(),
		results:   make([]*RuleResult, g.Len()),
		failures:  make([][]Failure, g.Len()),
		published: make(map[string]*site.Binding, g.Len()),
	}
}

// run schedules every rule once its dependencies have published.
//
// The coordinator keeps a ready set ordered by registration index and a
// count of unpublished dependencies per rule. Each ready rule runs in its
// own goroutine; when it reports back, the coordinator either publishes
// its binding and releases its dependents, or skips every rule that
// transitively depends on it.
func (b *build) run(ctx context.Context) *Report {
	report := &Report{BuildID: b.id, Started: time.Now()}
	b.logger.Info().Int("rules", b.g.Len()).Int("sources", len(b.sources)).Int("jobs", b.jobs).Msg("build started")

	b.checkDoubleClaims()

	remaining := make([]int, b.g.Len())
	ready := &intMinHeap{}
	for i := 0; i < b.g.Len(); i++ {
		remaining[i] = len(b.g.Dependencies(i))
		if remaining[i] == 0 {
			heap.Push(ready, i)
		}
	}

	done := make(chan ruleOutcome)
	running := 0
	for {
		for ctx.Err() == nil && ready.Len() > 0 {
			i := heap.Pop(ready).(int)
			b.dispatch(ctx, i, done)
			running++
		}
		if running == 0 {
			break
		}

		out := <-done
		running--
		b.settle(out)

		i := out.index
		switch out.result.State {
		case RulePublished:
		case RuleCancelled:
			// Dependents stay unresolved and are reported as cancelled.
			continue
		default:
			b.skipDependents(i)
			continue
		}
		for _, j := range b.g.Dependents(i) {
			remaining[j]--
			if remaining[j] == 0 && b.results[j] == nil {
				heap.Push(ready, j)
			}
		}
	}

	for i, res := range b.results {
		if res == nil {
			b.results[i] = &RuleResult{
				Name:   b.g.Name(i),
				Mode:   b.g.Rule(i).Mode().String(),
				State:  RuleCancelled,
				Reason: "build cancelled",
			}
		}
		if b.results[i].State == RuleCancelled {
			report.Cancelled = true
		}
	}

	b.checkCrossRuleCollisions()

	report.Rules = b.results
	for _, fs := range b.failures {
		report.Failures = append(report.Failures, fs...)
	}
	report.Collisions = b.collisions
	report.Warnings = b.warnings
	report.Trace = b.trace.snapshot()
	report.Finished = time.Now()

	b.logger.Info().
		Int("outputs", report.Outputs()).
		Int("failures", len(report.Failures)).
		Int("collisions", len(report.Collisions)).
		Bool("cancelled", report.Cancelled).
		Dur("duration", report.Finished.Sub(report.Started)).
		Msg("build finished")
	return report
}

// dispatch starts rule i. The start event is stamped here, after every
// dependency's publish event, and the dependency view is copied out of
// the published table before the goroutine starts.
func (b *build) dispatch(ctx context.Context, i int, done chan<- ruleOutcome) {
	name := b.g.Name(i)
	deps := make(site.Dependencies, len(b.g.Dependencies(i)))
	for _, d := range b.g.Dependencies(i) {
		deps[b.g.Name(d)] = b.published[b.g.Name(d)]
	}

	seq := b.trace.record(EventRuleStarted, name, "")
	b.logger.Debug().Str("rule", name).Int64("seq", seq).Msg("rule started")

	go func() {
		done <- b.runRule(ctx, i, deps, seq)
	}()
}

// settle records a finished rule and publishes its binding if it earned one.
func (b *build) settle(out ruleOutcome) {
	res := out.result
	b.results[out.index] = res
	b.failures[out.index] = out.failures
	b.collisions = append(b.collisions, out.collisions...)
	b.warnings = append(b.warnings, out.warnings...)

	switch res.State {
	case RulePublished:
		binding := site.NewBinding(res.Name, out.committed)
		b.published[res.Name] = binding
		res.binding = binding
		res.PublishSeq = b.trace.record(EventRulePublished, res.Name, "")
		b.logger.Info().
			Str("rule", res.Name).
			Int("committed", res.Committed).
			Int("failed", res.Failed).
			Int("skipped", res.Skipped).
			Int64("seq", res.PublishSeq).
			Msg("rule published")
	case RuleFailed:
		b.trace.record(EventRuleFailed, res.Name, "")
		b.logger.Error().Str("rule", res.Name).Str("reason", res.Reason).Msg("rule failed")
	case RuleCancelled:
		b.logger.Warn().Str("rule", res.Name).Msg("rule cancelled")
	}
}

// skipDependents marks every rule reachable from i through dependent edges
// as skipped. Each skipped rule names the dependency that blocked it.
func (b *build) skipDependents(i int) {
	queue := []int{i}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, j := range b.g.Dependents(cur) {
			if b.results[j] != nil {
				continue
			}
			skipped := &SkippedError{Rule: b.g.Name(j), Dependency: b.g.Name(cur)}
			b.results[j] = &RuleResult{
				Name:   b.g.Name(j),
				Mode:   b.g.Rule(j).Mode().String(),
				State:  RuleSkipped,
				Reason: skipped.Error(),
			}
			b.trace.record(EventRuleSkipped, b.g.Name(j), "")
			b.logger.Warn().Str("rule", b.g.Name(j)).Str("dependency", b.g.Name(cur)).Msg("rule skipped")
			queue = append(queue, j)
		}
	}
}

// checkDoubleClaims warns about inputs claimed by more than one matching
// rule. Both rules keep the item.
func (b *build) checkDoubleClaims() {
	for _, src := range b.sources {
		var claimants []string
		for i := 0; i < b.g.Len(); i++ {
			if b.g.Rule(i).Matches(src) {
				claimants = append(claimants, b.g.Name(i))
			}
		}
		if len(claimants) > 1 {
			msg := fmt.Sprintf("input %q is claimed by rules %s", src, strings.Join(claimants, ", "))
			b.warnings = append(b.warnings, msg)
			b.logger.Warn().Str("source", src).Strs("rules", claimants).Msg("input claimed by several rules")
		}
	}
}

// checkCrossRuleCollisions looks for output paths shared by items of
// different published rules that no write step caught.
func (b *build) checkCrossRuleCollisions() {
	seen := make(map[string]bool, len(b.collisions))
	for _, c := range b.collisions {
		seen[c.Path] = true
	}

	var all []*site.Item
	for _, res := range b.results {
		if res.binding != nil {
			all = append(all, res.binding.Items()...)
		}
	}
	for _, ce := range site.FindCollisions(all) {
		if seen[ce.Path] {
			continue
		}
		b.collisions = append(b.collisions, Collision{Path: ce.Path, Claims: ce.Claims})
		b.logger.Error().Str("path", ce.Path).Msg(ce.Error())
	}
}
