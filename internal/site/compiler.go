package site

import (
	"context"
	"errors"
	"fmt"
)

// ErrSkip is returned by a step to drop the item from its rule without
// recording a failure. Chains stop on it and pass it through unwrapped.
var ErrSkip = errors.New("skip item")

// Compiler is one transformation over a single item.
//
// Apply receives exclusive access to item and read-only access to the
// published bindings of the owning rule's dependencies. The outcome is:
//   - nil: continue with the next step
//   - ErrSkip (or an error wrapping it): drop the item, not a failure
//   - any other error: the item failed
type Compiler interface {
	Apply(ctx context.Context, item *Item, deps Dependencies) error
}

// CompilerFunc adapts an ordinary function to the Compiler interface.
type CompilerFunc func(ctx context.Context, item *Item, deps Dependencies) error

// Apply calls f.
func (f CompilerFunc) Apply(ctx context.Context, item *Item, deps Dependencies) error {
	return f(ctx, item, deps)
}

// Namer is implemented by compilers that report a step name for failure
// reports.
type Namer interface {
	Name() string
}

type namedStep struct {
	name string
	c    Compiler
}

func (s namedStep) Apply(ctx context.Context, item *Item, deps Dependencies) error {
	return s.c.Apply(ctx, item, deps)
}

func (s namedStep) Name() string { return s.name }

// Step builds a named compiler from a function.
func Step(name string, fn CompilerFunc) Compiler {
	return namedStep{name: name, c: fn}
}

// Named attaches a step name to an existing compiler.
func Named(name string, c Compiler) Compiler {
	return namedStep{name: name, c: c}
}

// StepName returns the name reported for c in failures.
func StepName(c Compiler) string {
	if n, ok := c.(Namer); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", c)
}

// StepError is an item failure annotated with the step that produced it.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsSkip reports whether err is the skip outcome.
func IsSkip(err error) bool {
	return errors.Is(err, ErrSkip)
}

// FailedStep extracts the failing step name from err, or "" if err carries
// no step annotation.
func FailedStep(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}
