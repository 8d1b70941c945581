package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/kiln/internal/ir"
	"github.com/roach88/kiln/internal/site"
)

type itemStatus int

const (
	itemOK itemStatus = iota
	itemSkipped
	itemFailed
	itemCancelled
)

type itemOutcome struct {
	status itemStatus
	err    error
}

// runRule selects the rule's items, runs its chain over each of them in
// parallel and decides whether the rule may publish.
//
// Items of one rule never wait on each other, so they can share the
// build-wide semaphore with every other running rule without deadlock.
// In fail-fast mode the first hard failure cancels the rule context:
// items not yet started are abandoned and items in flight see ctx.Done.
func (b *build) runRule(ctx context.Context, i int, deps site.Dependencies, startSeq int64) ruleOutcome {
	r := b.g.Rule(i)
	res := &RuleResult{
		Name:     r.Name(),
		Mode:     r.Mode().String(),
		StartSeq: startSeq,
	}
	out := ruleOutcome{index: i, result: res}
	logger := b.logger.With().Str("rule", r.Name()).Logger()

	items, err := r.Select(b.sources, deps, b.env)
	if err != nil {
		res.State = RuleFailed
		res.Reason = err.Error()
		out.failures = append(out.failures, Failure{
			Rule:    r.Name(),
			Step:    "select",
			Message: err.Error(),
			Err:     err,
		})
		return out
	}
	res.Selected = len(items)
	logger.Debug().Int("items", len(items)).Msg("items selected")

	ruleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chain := r.Chain()
	outcomes := make([]itemOutcome, len(items))

	var g errgroup.Group
	g.SetLimit(b.jobs)
	for idx, item := range items {
		g.Go(func() error {
			if err := b.sem.Acquire(ruleCtx, 1); err != nil {
				outcomes[idx] = itemOutcome{status: itemCancelled, err: err}
				b.trace.record(EventItemCancelled, r.Name(), item.Source)
				return nil
			}
			defer b.sem.Release(1)

			oc := classify(ruleCtx, chain.Apply(ruleCtx, item, deps))
			outcomes[idx] = oc
			switch oc.status {
			case itemFailed:
				b.trace.record(EventItemFailed, r.Name(), item.Source)
				logger.Warn().Str("source", item.Source).Err(oc.err).Msg("item failed")
				if b.failFast {
					cancel()
				}
			case itemSkipped:
				b.trace.record(EventItemSkipped, r.Name(), item.Source)
			case itemCancelled:
				b.trace.record(EventItemCancelled, r.Name(), item.Source)
			}
			return nil
		})
	}
	_ = g.Wait()

	var committed []*site.Item
	for idx, oc := range outcomes {
		item := items[idx]
		switch oc.status {
		case itemOK:
			committed = append(committed, item)
		case itemSkipped:
			res.Skipped++
		case itemCancelled:
			res.Cancelled++
		case itemFailed:
			res.Failed++
			step := site.FailedStep(oc.err)
			if step == "" {
				step = site.StepName(chain)
			}
			out.failures = append(out.failures, Failure{
				Rule:    r.Name(),
				Source:  item.Source,
				Step:    step,
				Message: oc.err.Error(),
				Err:     oc.err,
			})
			var ce *site.CollisionError
			if errors.As(oc.err, &ce) {
				out.collisions = append(out.collisions, Collision{Path: ce.Path, Claims: ce.Claims})
			}
		}
	}

	for _, ce := range site.FindCollisions(committed) {
		out.collisions = append(out.collisions, Collision{Path: ce.Path, Claims: ce.Claims})
		out.failures = append(out.failures, Failure{
			Rule:    r.Name(),
			Source:  ce.Claims[len(ce.Claims)-1].Source,
			Step:    "commit",
			Message: ce.Error(),
			Err:     ce,
		})
	}

	switch {
	case ctx.Err() != nil && res.Cancelled > 0:
		res.State = RuleCancelled
		res.Reason = "build cancelled"
		return out
	case len(out.collisions) > 0:
		res.State = RuleFailed
		res.Reason = fmt.Sprintf("%d output collision(s)", len(out.collisions))
		return out
	case b.failFast && res.Failed > 0:
		res.State = RuleFailed
		res.Reason = fmt.Sprintf("fail-fast: %d item failure(s), %d item(s) abandoned", res.Failed, res.Cancelled)
		return out
	}

	digest, err := bindingDigest(r.Name(), committed)
	if err != nil {
		msg := fmt.Sprintf("rule %q: binding digest unavailable: %v", r.Name(), err)
		out.warnings = append(out.warnings, msg)
		logger.Warn().Err(err).Msg("binding digest unavailable")
	} else {
		res.Digest = digest.String()
	}

	res.State = RulePublished
	res.Committed = len(committed)
	for _, item := range committed {
		if item.Output != "" {
			res.Outputs = append(res.Outputs, item.Output)
		}
	}
	out.committed = committed
	return out
}

// classify maps a chain result to an item outcome. An error caused by the
// rule context ending is a cancellation, not a failure.
func classify(ctx context.Context, err error) itemOutcome {
	switch {
	case err == nil:
		return itemOutcome{status: itemOK}
	case site.IsSkip(err):
		return itemOutcome{status: itemSkipped, err: err}
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		return itemOutcome{status: itemCancelled, err: err}
	default:
		return itemOutcome{status: itemFailed, err: err}
	}
}

// bindingDigest hashes the committed items in discovery order.
func bindingDigest(rule string, items []*site.Item) (ir.Digest, error) {
	digests := make([]ir.Digest, len(items))
	for i, item := range items {
		d, err := ItemDigest(item)
		if err != nil {
			return ir.Digest{}, err
		}
		digests[i] = d
	}
	return ir.BindingDigest(rule, digests), nil
}

// ItemDigest returns the content digest of an item: its source, output,
// body and metadata. A page is hashed by its position and the sources of
// the items it lists, not by the items themselves.
func ItemDigest(item *site.Item) (ir.Digest, error) {
	meta := make(map[string]any, len(item.Meta))
	for k, v := range item.Meta {
		if p, ok := v.(*site.Page); ok {
			v = pageRecord(p)
		}
		meta[k] = v
	}
	return ir.ItemDigest(ir.ItemRecord{
		Source: item.Source,
		Output: item.Output,
		Body:   item.Body,
		Meta:   meta,
	})
}

func pageRecord(p *site.Page) map[string]any {
	sources := make([]string, len(p.Items))
	for i, it := range p.Items {
		sources[i] = it.Source
	}
	return map[string]any{
		"number": p.Number,
		"total":  p.Total,
		"items":  sources,
		"first":  p.First,
		"last":   p.Last,
		"prev":   p.Prev,
		"next":   p.Next,
	}
}
