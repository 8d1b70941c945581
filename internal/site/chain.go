package site

import (
	"context"
	"errors"
)

// Chain is an ordered list of compilers applied one after another to the
// same item. A Chain is itself a Compiler, so chains nest.
type Chain []Compiler

// NewChain builds a chain from steps. Nil steps are dropped.
func NewChain(steps ...Compiler) Chain {
	c := make(Chain, 0, len(steps))
	for _, s := range steps {
		if s != nil {
			c = append(c, s)
		}
	}
	return c
}

// Then returns a new chain with steps appended. The receiver is unchanged.
func (c Chain) Then(steps ...Compiler) Chain {
	out := make(Chain, 0, len(c)+len(steps))
	out = append(out, c...)
	return append(out, NewChain(steps...)...)
}

// Name implements Namer.
func (c Chain) Name() string { return "chain" }

// Apply runs every step in order and stops at the first non-nil outcome.
//
// Failures are wrapped in a StepError naming the innermost failing step;
// an error that already carries a StepError (from a nested chain) is
// returned as is. ErrSkip and context cancellation pass through unwrapped.
func (c Chain) Apply(ctx context.Context, item *Item, deps Dependencies) error {
	for _, step := range c {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := step.Apply(ctx, item, deps)
		if err == nil {
			continue
		}
		if IsSkip(err) {
			return err
		}
		var se *StepError
		if errors.As(err, &se) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		return &StepError{Step: StepName(step), Err: err}
	}
	return nil
}
