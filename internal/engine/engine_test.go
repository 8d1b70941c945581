package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiln/internal/config"
	"github.com/roach88/kiln/internal/site"
	"github.com/roach88/kiln/internal/source"
	"github.com/roach88/kiln/internal/steps"
	"github.com/roach88/kiln/internal/testutil"
)

func newTestEngine(t *testing.T, files map[string]string, opts ...Option) (*Engine, *testutil.Project) {
	t.Helper()
	p := testutil.NewProject(t, files)
	opts = append([]Option{WithBuildIDs(testutil.FixedBuildID("build-1"))}, opts...)
	e, err := New(p.Config(t), opts...)
	require.NoError(t, err)
	return e, p
}

func run(t *testing.T, e *Engine) *Report {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	report, err := e.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	return report
}

func state(t *testing.T, r *Report, name string) RuleState {
	t.Helper()
	rr, ok := r.Rule(name)
	require.True(t, ok, "rule %s missing from report", name)
	return rr.State
}

// =============================================================================
// Construction and registration
// =============================================================================

func TestEngine_New_InvalidConfig(t *testing.T) {
	_, err := New(config.New("", "out"))
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
}

func TestEngine_Register(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	require.NoError(t, e.Register(createRule("posts"), createRule("index", "posts")))
	assert.Equal(t, []string{"posts", "index"}, e.Rules())

	err := e.Register(createRule("posts"))
	require.Error(t, err)
	var ge *GraphError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ErrCodeDuplicate, ge.Code)
}

func TestEngine_Register_RejectsWholeBatch(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	require.NoError(t, e.Register(createRule("posts")))

	err := e.Register(createRule("a"), createRule("b"), createRule("a"))
	require.Error(t, err)
	var ge *GraphError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ErrCodeDuplicate, ge.Code)
	assert.Equal(t, []string{"posts"}, e.Rules())

	err = e.Register(createRule("c"), site.Create("", "x.txt"))
	require.Error(t, err)
	assert.Equal(t, []string{"posts"}, e.Rules())

	// The rejected names are still free.
	require.NoError(t, e.Register(createRule("a"), createRule("b")))
	assert.Equal(t, []string{"posts", "a", "b"}, e.Rules())
}

func TestEngine_Register_Snapshot(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	r := createRule("index")
	require.NoError(t, e.Register(r))

	// Changing the builder after registration does not reach the engine.
	r.DependsOnName("missing")

	g, err := e.Graph()
	require.NoError(t, err)
	assert.Empty(t, g.Dependencies(0))
}

func TestEngine_Run_NothingToDo(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	report := run(t, e)
	assert.Empty(t, report.Rules)
	assert.NoError(t, report.Err(true))
	assert.Equal(t, "build-1", report.BuildID)
}

// =============================================================================
// Graph errors stop the build before anything runs
// =============================================================================

func TestEngine_Run_CycleRunsNothing(t *testing.T) {
	rec := &testutil.Recorder{}
	e, _ := newTestEngine(t, nil, WithSources("a.md"))
	require.NoError(t, e.Register(
		site.Match("a", source.MustGlob("*.md")).Compiler(rec).DependsOnName("b"),
		createRule("b", "a").Compiler(rec),
		createRule("c").Compiler(rec),
	))

	report, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, IsCycleError(err))
	assert.Equal(t, 0, rec.Len(), "no chain may run when the graph is invalid")
}

func TestEngine_Run_UnresolvedRunsNothing(t *testing.T) {
	rec := &testutil.Recorder{}
	e, _ := newTestEngine(t, nil)
	require.NoError(t, e.Register(createRule("index", "posts").Compiler(rec)))

	_, err := e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnresolvedError(err))
	assert.Equal(t, 0, rec.Len())
}

func TestEngine_Run_MissingInputRoot(t *testing.T) {
	p := testutil.NewProject(t, nil)
	cfg := config.New(p.Dir+"/does-not-exist", p.Output)
	e, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, e.Register(site.Match("all", func(string) bool { return true })))

	_, err = e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
}

// =============================================================================
// End to end
// =============================================================================

func TestEngine_Run_PostsAndIndex(t *testing.T) {
	e, p := newTestEngine(t, map[string]string{
		"posts/a.md":         "---\ntitle: Alpha\n---\n# Alpha\n",
		"posts/b.md":         "---\ntitle: Beta\n---\n# Beta\n",
		"layouts/index.html": `{{ range (.Deps.Get "posts").Items }}<a href="{{ url .Output }}">{{ .Meta.title }}</a>{{ end }}`,
		".hidden.md":         "ignored",
	})

	posts := site.Match("posts", source.MustGlob("posts/*.md")).Compiler(site.NewChain(
		steps.Read(),
		steps.FrontMatter(),
		steps.Markdown(),
		site.Route(site.SetExtension("html")),
		steps.Write(),
	))
	index := site.Create("index", "index.html").DependsOn(posts).Compiler(site.NewChain(
		steps.Template("layouts/index.html"),
		steps.Write(),
	))
	require.NoError(t, e.Register(posts, index))

	report := run(t, e)
	require.NoError(t, report.Err(true))

	out := p.Outputs(t)
	assert.Contains(t, out["posts/a.html"], `<h1 id="alpha">Alpha</h1>`)
	assert.Contains(t, out["posts/b.html"], `<h1 id="beta">Beta</h1>`)
	assert.Equal(t, `<a href="/posts/a.html">Alpha</a><a href="/posts/b.html">Beta</a>`, out["index.html"])
	assert.Len(t, out, 3)

	pr, _ := report.Rule("posts")
	assert.Equal(t, 2, pr.Committed)
	assert.Equal(t, []string{"posts/a.html", "posts/b.html"}, pr.Outputs)
	assert.NotEmpty(t, pr.Digest)
	assert.Equal(t, 3, report.Outputs())

	b, ok := e.Binding("posts")
	require.True(t, ok)
	assert.Equal(t, 2, b.Len())
	it, ok := b.Lookup("posts/b.md")
	require.True(t, ok)
	assert.Equal(t, site.BindingRef{Rule: "posts", Index: 1}, it.Owner)
}

func TestEngine_Run_DraftStaysOutOfIndex(t *testing.T) {
	e, p := newTestEngine(t, map[string]string{
		"posts/a.md":         "---\ntitle: Alpha\n---\n# Alpha\n",
		"posts/b.md":         "---\ntitle: Beta\n---\n# Beta\n",
		"posts/c.md":         "---\ntitle: Gamma\ndraft: true\n---\n# Gamma\n",
		"layouts/index.html": `{{ range (.Deps.Get "posts").Items }}[{{ .Output }}]{{ end }}`,
	})

	posts := site.Match("posts", source.MustGlob("posts/*.md")).Compiler(site.NewChain(
		steps.Read(),
		steps.FrontMatter(),
		steps.Publishable(),
		steps.Markdown(),
		site.Route(site.SetExtension("html")),
		steps.Write(),
	))
	index := site.Create("index", "index.html").DependsOn(posts).Compiler(site.NewChain(
		steps.Template("layouts/index.html"),
		steps.Write(),
	))
	require.NoError(t, e.Register(posts, index))

	report := run(t, e)
	require.NoError(t, report.Err(true))

	b, ok := e.Binding("posts")
	require.True(t, ok)
	assert.Equal(t, []string{"posts/a.html", "posts/b.html"}, b.Outputs())
	_, ok = b.Lookup("posts/c.md")
	assert.False(t, ok)

	pr, _ := report.Rule("posts")
	assert.Equal(t, 3, pr.Selected)
	assert.Equal(t, 2, pr.Committed)
	assert.Equal(t, 1, pr.Skipped)
	assert.Empty(t, report.Failures)

	out := p.Outputs(t)
	assert.Equal(t, "[posts/a.html][posts/b.html]", out["index.html"])
	assert.NotContains(t, out, "posts/c.html")
	assert.Len(t, out, 3)

	ir, _ := report.Rule("index")
	assert.Greater(t, ir.StartSeq, pr.PublishSeq)
}

// =============================================================================
// Ordering and concurrency
// =============================================================================

func TestEngine_Run_DependenciesPublishBeforeDependentsStart(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 20; trial++ {
		const n = 12
		rules := make([]*site.Rule, n)
		for i := 0; i < n; i++ {
			rules[i] = createRule(fmt.Sprintf("r%02d", i))
			for j := 0; j < i; j++ {
				if rng.Intn(3) == 0 {
					rules[i].DependsOnName(fmt.Sprintf("r%02d", j))
				}
			}
		}
		rng.Shuffle(n, func(i, j int) { rules[i], rules[j] = rules[j], rules[i] })

		e, _ := newTestEngine(t, nil, WithJobs(4))
		require.NoError(t, e.Register(rules...))
		report := run(t, e)
		require.NoError(t, report.Err(true))

		for _, r := range rules {
			rr, _ := report.Rule(r.Name())
			require.Equal(t, RulePublished, rr.State)
			for _, dep := range r.Dependencies() {
				dr, _ := report.Rule(dep)
				assert.Greater(t, rr.StartSeq, dr.PublishSeq,
					"trial %d: %s started before %s published", trial, r.Name(), dep)
			}
		}
	}
}

func TestEngine_Run_ItemsRunConcurrently(t *testing.T) {
	barrier := testutil.NewBarrier(4)
	e, _ := newTestEngine(t, nil,
		WithJobs(4),
		WithSources("a.md", "b.md", "c.md", "d.md"),
	)
	require.NoError(t, e.Register(site.Match("pages", source.MustGlob("*.md")).Compiler(barrier)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := e.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, report.Err(true), "four items must be in flight at once")
}

func TestEngine_Run_IndependentRulesRunConcurrently(t *testing.T) {
	barrier := testutil.NewBarrier(2)
	e, _ := newTestEngine(t, nil, WithJobs(2))
	require.NoError(t, e.Register(
		createRule("left").Compiler(barrier),
		createRule("right").Compiler(barrier),
	))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := e.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, report.Err(true))
}

func TestEngine_Run_DependencyViewIsDeclaredOnly(t *testing.T) {
	var seen []string
	e, _ := newTestEngine(t, nil, WithJobs(1))
	require.NoError(t, e.Register(
		createRule("a"),
		createRule("b"),
		createRule("c", "a").Compiler(site.Step("look", func(_ context.Context, _ *site.Item, deps site.Dependencies) error {
			for name := range deps {
				seen = append(seen, name)
			}
			return nil
		})),
	))

	report := run(t, e)
	require.NoError(t, report.Err(true))
	assert.Equal(t, []string{"a"}, seen)
}

// =============================================================================
// Failure policy
// =============================================================================

func failureRules() []*site.Rule {
	return []*site.Rule{
		site.Match("A", source.MustGlob("a/*")).Compiler(site.NewChain(testutil.FailOn("a/bad"))),
		createRule("B", "A"),
		createRule("C"),
		createRule("D", "B"),
	}
}

func TestEngine_Run_FailFastSkipsDependents(t *testing.T) {
	e, _ := newTestEngine(t, nil, WithFailFast(true), WithSources("a/bad", "a/good"))
	require.NoError(t, e.Register(failureRules()...))

	report := run(t, e)

	assert.Equal(t, RuleFailed, state(t, report, "A"))
	assert.Equal(t, RuleSkipped, state(t, report, "B"))
	assert.Equal(t, RuleSkipped, state(t, report, "D"))
	assert.Equal(t, RulePublished, state(t, report, "C"))

	b, _ := report.Rule("B")
	assert.Contains(t, b.Reason, `dependency "A" failed`)
	d, _ := report.Rule("D")
	assert.Contains(t, d.Reason, `dependency "B" failed`)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "A", report.Failures[0].Rule)
	assert.Equal(t, "a/bad", report.Failures[0].Source)
	assert.Equal(t, "fail", report.Failures[0].Step)

	err := report.Err(false)
	require.Error(t, err)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, []string{"A", "B", "D"}, be.Rules)

	_, ok := e.Binding("A")
	assert.False(t, ok)
	_, ok = e.Binding("C")
	assert.True(t, ok)
}

func TestEngine_Run_ContinueOnErrorPublishesSurvivors(t *testing.T) {
	e, _ := newTestEngine(t, nil, WithSources("a/bad", "a/good"))
	require.NoError(t, e.Register(failureRules()...))

	report := run(t, e)

	for _, name := range []string{"A", "B", "C", "D"} {
		assert.Equal(t, RulePublished, state(t, report, name), name)
	}
	a, _ := report.Rule("A")
	assert.Equal(t, 1, a.Committed)
	assert.Equal(t, 1, a.Failed)
	require.Len(t, report.Failures, 1)

	assert.NoError(t, report.Err(false))

	err := report.Err(true)
	require.Error(t, err)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 1, be.Failures)
	assert.Empty(t, be.Rules)
}

func TestEngine_Run_FailFastAbandonsInFlightItems(t *testing.T) {
	e, _ := newTestEngine(t, nil,
		WithFailFast(true),
		WithJobs(8),
		WithSources("bad", "w1", "w2", "w3"),
	)
	require.NoError(t, e.Register(
		site.Match("r", func(string) bool { return true }).Compiler(site.NewChain(
			testutil.FailOn("bad"),
			testutil.BlockUntilCancelled(),
		)),
	))

	report := run(t, e)

	rr, _ := report.Rule("r")
	assert.Equal(t, RuleFailed, rr.State)
	assert.Equal(t, 1, rr.Failed)
	assert.Equal(t, 3, rr.Cancelled)
	assert.Equal(t, 0, rr.Committed)
	assert.False(t, report.Cancelled, "fail-fast is not a build cancellation")
	require.Len(t, report.Failures, 1)
}

func TestEngine_Run_SelectionErrorFailsRule(t *testing.T) {
	e, _ := newTestEngine(t, nil, WithSources("p1"))
	require.NoError(t, e.Register(
		site.Match("posts", func(string) bool { return true }),
		site.Paginate("archive", "posts", 0, func(n int) string { return fmt.Sprintf("page/%d.html", n) }),
		createRule("feed", "archive"),
	))

	report := run(t, e)

	assert.Equal(t, RulePublished, state(t, report, "posts"))
	assert.Equal(t, RuleFailed, state(t, report, "archive"))
	assert.Equal(t, RuleSkipped, state(t, report, "feed"))
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "select", report.Failures[0].Step)
	assert.Contains(t, report.Failures[0].Message, "items per page must be positive")
}

func TestEngine_Run_RetainSkipsAreNotFailures(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"a.md": "---\ndraft: true\n---\nsecret\n",
		"b.md": "---\ntitle: B\n---\nhello\n",
	})
	require.NoError(t, e.Register(
		site.Match("posts", source.MustGlob("*.md")).Compiler(site.NewChain(
			steps.Read(),
			steps.FrontMatter(),
			steps.Publishable(),
		)),
	))

	report := run(t, e)
	require.NoError(t, report.Err(true))

	rr, _ := report.Rule("posts")
	assert.Equal(t, 2, rr.Selected)
	assert.Equal(t, 1, rr.Committed)
	assert.Equal(t, 1, rr.Skipped)
	assert.Empty(t, report.Failures)

	b, _ := e.Binding("posts")
	_, ok := b.Lookup("a.md")
	assert.False(t, ok)
}

func TestEngine_Run_PreviewKeepsDrafts(t *testing.T) {
	p := testutil.NewProject(t, map[string]string{"a.md": "---\ndraft: true\n---\n"})
	cfg := p.Config(t)
	cfg.Preview = true
	e, err := New(cfg, WithBuildIDs(testutil.FixedBuildID("")))
	require.NoError(t, err)
	require.NoError(t, e.Register(
		site.Match("posts", source.MustGlob("*.md")).Compiler(site.NewChain(
			steps.Read(), steps.FrontMatter(), steps.Publishable(),
		)),
	))

	report := run(t, e)
	rr, _ := report.Rule("posts")
	assert.Equal(t, 1, rr.Committed)
}

// =============================================================================
// Collisions
// =============================================================================

func TestEngine_Run_CaseFoldCollisionAtCommit(t *testing.T) {
	e, _ := newTestEngine(t, nil, WithSources("a.md", "a.MD"))
	require.NoError(t, e.Register(
		site.Match("pages", func(string) bool { return true }).
			Compiler(site.Route(site.FoldCase(site.SetExtension("html")))),
	))

	report := run(t, e)

	assert.Equal(t, RuleFailed, state(t, report, "pages"))
	require.Len(t, report.Collisions, 1)
	assert.Equal(t, "a.html", report.Collisions[0].Path)
	assert.ElementsMatch(t, []site.Claim{
		{Rule: "pages", Source: "a.MD"},
		{Rule: "pages", Source: "a.md"},
	}, report.Collisions[0].Claims)

	// Collisions fail the build even without strict mode.
	err := report.Err(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 output collision(s)")
}

func TestEngine_Run_CollisionAtWrite(t *testing.T) {
	e, p := newTestEngine(t, nil, WithSources("a.md", "a.MD"))
	require.NoError(t, e.Register(
		site.Match("pages", func(string) bool { return true }).Compiler(site.NewChain(
			testutil.SetBody("x"),
			site.Route(site.FoldCase(site.SetExtension("html"))),
			steps.Write(),
		)),
	))

	report := run(t, e)

	assert.Equal(t, RuleFailed, state(t, report, "pages"))
	require.Len(t, report.Collisions, 1)
	assert.Equal(t, "a.html", report.Collisions[0].Path)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "write", report.Failures[0].Step)
	assert.Len(t, p.Outputs(t), 1, "exactly one writer wins the path")
}

func TestEngine_Run_CrossRuleCollision(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	require.NoError(t, e.Register(
		site.Create("one", "index.html"),
		site.Create("two", "index.html"),
	))

	report := run(t, e)
	require.Len(t, report.Collisions, 1)
	assert.Equal(t, "index.html", report.Collisions[0].Path)
	assert.Error(t, report.Err(false))
}

func TestEngine_Run_GzipSiblingCollision(t *testing.T) {
	e, p := newTestEngine(t, nil)
	archive := site.Create("archive", "a.html.gz").Compiler(site.NewChain(
		testutil.SetBody("ARCHIVE"),
		steps.Write(),
	))
	page := site.Create("page", "a.html").DependsOn(archive).Compiler(site.NewChain(
		testutil.SetBody("<p>page</p>"),
		steps.Gzip(0),
		steps.Write(),
	))
	require.NoError(t, e.Register(archive, page))

	report := run(t, e)

	assert.Equal(t, RulePublished, state(t, report, "archive"))
	assert.Equal(t, RuleFailed, state(t, report, "page"))
	require.Len(t, report.Collisions, 1)
	assert.Equal(t, "a.html.gz", report.Collisions[0].Path)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "gzip", report.Failures[0].Step)
	assert.Error(t, report.Err(false))

	out := p.Outputs(t)
	assert.Equal(t, "ARCHIVE", out["a.html.gz"], "the earlier claim keeps its file")
	assert.NotContains(t, out, "a.html")
}

func TestEngine_Run_DoubleClaimWarning(t *testing.T) {
	e, _ := newTestEngine(t, nil, WithSources("a.md", "b.txt"))
	require.NoError(t, e.Register(
		site.Match("md", source.MustGlob("*.md")),
		site.Match("all", func(string) bool { return true }),
	))

	report := run(t, e)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], `"a.md" is claimed by rules md, all`)
	assert.NoError(t, report.Err(true))
}

// =============================================================================
// Cancellation
// =============================================================================

func TestEngine_Run_Cancelled(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	require.NoError(t, e.Register(
		createRule("slow").Compiler(testutil.BlockUntilCancelled()),
		createRule("after", "slow"),
	))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	report, err := e.Run(ctx)
	require.NoError(t, err)

	assert.True(t, report.Cancelled)
	assert.Equal(t, RuleCancelled, state(t, report, "slow"))
	assert.Equal(t, RuleCancelled, state(t, report, "after"))
	assert.Empty(t, report.Failures)

	err = report.Err(false)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "cancelled"))
}

// =============================================================================
// Pagination and digests
// =============================================================================

func TestEngine_Run_Pagination(t *testing.T) {
	e, _ := newTestEngine(t, nil, WithSources("p1", "p2", "p3", "p4", "p5"))
	require.NoError(t, e.Register(
		site.Match("posts", func(string) bool { return true }),
		site.Paginate("archive", "posts", 2, func(n int) string {
			if n == 1 {
				return "archive/index.html"
			}
			return fmt.Sprintf("archive/%d.html", n)
		}),
	))

	report := run(t, e)
	require.NoError(t, report.Err(true))

	b, ok := e.Binding("archive")
	require.True(t, ok)
	require.Equal(t, 3, b.Len())

	first, ok := site.PageOf(b.At(0))
	require.True(t, ok)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 3, first.Total)
	assert.Len(t, first.Items, 2)
	assert.Equal(t, "archive/2.html", first.Next)
	assert.Empty(t, first.Prev)

	last, _ := site.PageOf(b.At(2))
	assert.Len(t, last.Items, 1)
	assert.Equal(t, "p5", last.Items[0].Source)

	ar, _ := report.Rule("archive")
	assert.NotEmpty(t, ar.Digest)
}

func TestEngine_Run_RepeatedBuildsAreIdentical(t *testing.T) {
	e, p := newTestEngine(t, map[string]string{
		"a.md": "# A\n",
		"b.md": "# B\n",
		"c.md": "# C\n",
	}, WithJobs(3))
	require.NoError(t, e.Register(
		site.Match("pages", source.MustGlob("*.md")).Compiler(site.NewChain(
			steps.Read(),
			steps.Markdown(),
			site.Route(site.SetExtension("html")),
			steps.Write(),
		)),
	))

	first := run(t, e)
	require.NoError(t, first.Err(true))
	firstOut := p.Outputs(t)

	second := run(t, e)
	require.NoError(t, second.Err(true), "a second build must not collide with the first")

	r1, _ := first.Rule("pages")
	r2, _ := second.Rule("pages")
	assert.Equal(t, r1.Digest, r2.Digest)
	assert.Equal(t, r1.Outputs, r2.Outputs)
	assert.Equal(t, firstOut, p.Outputs(t))
}

func TestItemDigest_SensitiveToContent(t *testing.T) {
	a := site.NewItem("r", "a.md", nil)
	a.Body = []byte("x")
	a.Output = "a.html"

	b := site.NewItem("r", "a.md", nil)
	b.Body = []byte("x")
	b.Output = "a.html"

	da, err := ItemDigest(a)
	require.NoError(t, err)
	db, err := ItemDigest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)

	b.Meta["title"] = "changed"
	db, err = ItemDigest(b)
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}

// =============================================================================
// Trace
// =============================================================================

func TestEngine_Run_TraceIsOrdered(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	require.NoError(t, e.Register(createRule("a"), createRule("b", "a")))

	report := run(t, e)
	require.NotEmpty(t, report.Trace)
	assert.Equal(t, int64(1), report.Trace[0].Seq)

	for i := 1; i < len(report.Trace); i++ {
		assert.Greater(t, report.Trace[i].Seq, report.Trace[i-1].Seq)
	}

	var types []EventType
	for _, ev := range report.Trace {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EventRuleStarted, EventRulePublished, EventRuleStarted, EventRulePublished}, types)
}
