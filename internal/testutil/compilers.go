package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/roach88/kiln/internal/site"
)

// Call is one recorded compiler invocation.
type Call struct {
	Seq    int64
	Rule   string
	Source string
}

// Recorder is a compiler that records every item it sees, stamped by a
// private logical clock. Safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	seq   int64
	calls []Call
}

// Apply implements site.Compiler.
func (r *Recorder) Apply(_ context.Context, item *site.Item, _ site.Dependencies) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.calls = append(r.calls, Call{Seq: r.seq, Rule: item.Owner.Rule, Source: item.Source})
	return nil
}

// Name implements site.Namer.
func (r *Recorder) Name() string { return "record" }

// Calls returns the recorded calls in invocation order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Sources returns the sorted sources seen for rule.
func (r *Recorder) Sources(rule string) []string {
	var out []string
	for _, c := range r.Calls() {
		if c.Rule == rule {
			out = append(out, c.Source)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of recorded calls.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Barrier is a compiler that blocks each item until n items are waiting
// at the same time, proving that at least n items run concurrently. If the
// context ends first it returns the context error.
type Barrier struct {
	n       int
	mu      sync.Mutex
	waiting int
	release chan struct{}
}

// NewBarrier creates a barrier for n concurrent items.
func NewBarrier(n int) *Barrier {
	return &Barrier{n: n, release: make(chan struct{})}
}

// Apply implements site.Compiler.
func (b *Barrier) Apply(ctx context.Context, _ *site.Item, _ site.Dependencies) error {
	b.mu.Lock()
	b.waiting++
	if b.waiting == b.n {
		close(b.release)
	}
	b.mu.Unlock()

	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name implements site.Namer.
func (b *Barrier) Name() string { return "barrier" }

// FailOn returns a step that fails items whose source is in sources.
func FailOn(sources ...string) site.Compiler {
	set := make(map[string]bool, len(sources))
	for _, s := range sources {
		set[s] = true
	}
	return site.Step("fail", func(_ context.Context, item *site.Item, _ site.Dependencies) error {
		if set[item.Source] {
			return errors.New("boom: " + item.Source)
		}
		return nil
	})
}

// SetBody returns a step that replaces the item body.
func SetBody(body string) site.Compiler {
	return site.Step("body", func(_ context.Context, item *site.Item, _ site.Dependencies) error {
		item.Body = []byte(body)
		return nil
	})
}

// BlockUntilCancelled returns a step that waits for the context to end.
func BlockUntilCancelled() site.Compiler {
	return site.Step("block", func(ctx context.Context, _ *site.Item, _ site.Dependencies) error {
		<-ctx.Done()
		return ctx.Err()
	})
}
