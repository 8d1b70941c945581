package site

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func suffix(s string) Predicate {
	return func(src string) bool { return strings.HasSuffix(src, s) }
}

// ============================================================================
// Builders
// ============================================================================

func TestMatch_Builder(t *testing.T) {
	posts := Match("posts", suffix(".md"))
	index := Create("index", "index.html").DependsOn(posts).DependsOn(posts).DependsOnName("pages")

	assert.Equal(t, "posts", posts.Name())
	assert.Equal(t, Matching, posts.Mode())
	assert.Empty(t, posts.Dependencies())

	assert.Equal(t, Creating, index.Mode())
	assert.Equal(t, "index.html", index.Target())
	assert.Equal(t, []string{"posts", "pages"}, index.Dependencies(), "duplicates are ignored")
}

func TestRule_ChainDefaultsToEmpty(t *testing.T) {
	r := Match("r", suffix(".md"))
	assert.Equal(t, Chain{}, r.Chain())

	r.Compiler(NewChain(Route(Identity)))
	chain, ok := r.Chain().(Chain)
	require.True(t, ok)
	assert.Len(t, chain, 1)
}

func TestRule_Snapshot(t *testing.T) {
	r := Match("r", suffix(".md"))
	snap := r.Snapshot()

	r.DependsOnName("late")

	assert.Empty(t, snap.Dependencies())
	assert.Equal(t, []string{"late"}, r.Dependencies())
}

func TestPaginate_AddsDependency(t *testing.T) {
	r := Paginate("archive", "posts", 10, func(n int) string { return fmt.Sprintf("page/%d.html", n) })
	assert.Equal(t, []string{"posts"}, r.Dependencies())
	assert.Equal(t, "paginate", r.Mode().String())
}

// ============================================================================
// Selection
// ============================================================================

func TestSelect_MatchingSortsByDiscovery(t *testing.T) {
	r := Match("posts", suffix(".md"))
	env := &Env{InputRoot: "in"}

	items, err := r.Select([]string{"posts/b.md", "style.css", "posts/a.md"}, nil, env)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "posts/a.md", items[0].Source)
	assert.Equal(t, "posts/b.md", items[1].Source)
	assert.Equal(t, BindingRef{Rule: "posts", Index: -1}, items[0].Owner)
	assert.Same(t, env, items[0].Env)
	assert.Empty(t, items[0].Output)
}

func TestSelect_CreatingYieldsOneItem(t *testing.T) {
	r := Create("index", "index.html")

	items, err := r.Select([]string{"posts/a.md"}, nil, nil)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "index.html", items[0].Source)
	assert.Equal(t, "index.html", items[0].Output)
}

func TestSelect_Paginating(t *testing.T) {
	posts := NewBinding("posts", itemsFor("posts", "a.md", "b.md", "c.md", "d.md", "e.md"))
	route := func(n int) string {
		if n == 1 {
			return "index.html"
		}
		return fmt.Sprintf("page/%d/index.html", n)
	}
	r := Paginate("archive", "posts", 2, route)

	items, err := r.Select(nil, Dependencies{"posts": posts}, nil)

	require.NoError(t, err)
	require.Len(t, items, 3)

	first, ok := PageOf(items[0])
	require.True(t, ok)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 3, first.Total)
	assert.Len(t, first.Items, 2)
	assert.Empty(t, first.Prev)
	assert.Equal(t, "page/2/index.html", first.Next)
	assert.Equal(t, "index.html", items[0].Output)

	last, _ := PageOf(items[2])
	assert.Len(t, last.Items, 1)
	assert.Equal(t, "e.md", last.Items[0].Source)
	assert.Equal(t, "page/2/index.html", last.Prev)
	assert.Empty(t, last.Next)
	assert.Equal(t, "page/3/index.html", last.Last)
}

func TestSelect_PaginatingEmptyDependency(t *testing.T) {
	r := Paginate("archive", "posts", 10, func(int) string { return "index.html" })

	items, err := r.Select(nil, Dependencies{"posts": NewBinding("posts", nil)}, nil)

	require.NoError(t, err)
	require.Len(t, items, 1)
	p, _ := PageOf(items[0])
	assert.Empty(t, p.Items)
	assert.Equal(t, 1, p.Total)
}

func TestSelect_PaginatingErrors(t *testing.T) {
	route := func(int) string { return "x.html" }

	_, err := Paginate("archive", "posts", 0, route).Select(nil, Dependencies{"posts": NewBinding("posts", nil)}, nil)
	assert.ErrorContains(t, err, "must be positive")

	_, err = Paginate("archive", "posts", 1, route).Select(nil, Dependencies{}, nil)
	assert.ErrorContains(t, err, "not available")
}
