package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/kiln/internal/engine"
	"github.com/roach88/kiln/internal/site"
)

// createTestStore opens a fresh manifest under t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "builds.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReport returns a report for a posts/index build where one post
// failed and the index published.
func createTestReport(id string, started time.Time) *engine.Report {
	boom := errors.New("boom")
	return &engine.Report{
		BuildID: id,
		Rules: []*engine.RuleResult{
			{
				Name:      "posts",
				Mode:      "match",
				State:     engine.RulePublished,
				Selected:  3,
				Committed: 2,
				Failed:    1,
				Outputs:   []string{"posts/b.html", "posts/a.html"},
				Digest:    "abc123",
			},
			{
				Name:      "index",
				Mode:      "create",
				State:     engine.RulePublished,
				Selected:  1,
				Committed: 1,
				Outputs:   []string{"index.html"},
			},
		},
		Failures: []engine.Failure{
			{Rule: "posts", Source: "posts/c.md", Step: "markdown", Message: "boom", Err: boom},
		},
		Collisions: []engine.Collision{},
		Warnings:   []string{`input "posts/a.md" is claimed by rules posts, all`},
		Started:    started,
		Finished:   started.Add(1500 * time.Millisecond),
	}
}

func createCollisionReport(id string, started time.Time) *engine.Report {
	return &engine.Report{
		BuildID: id,
		Rules: []*engine.RuleResult{
			{Name: "pages", Mode: "match", State: engine.RuleFailed, Selected: 2, Reason: "1 output collision(s)"},
		},
		Failures: []engine.Failure{
			{Rule: "pages", Source: "a.MD", Step: "write", Message: "output collision"},
		},
		Collisions: []engine.Collision{
			{Path: "a.html", Claims: []site.Claim{{Rule: "pages", Source: "a.md"}, {Rule: "pages", Source: "a.MD"}}},
		},
		Started:  started,
		Finished: started.Add(time.Second),
	}
}
