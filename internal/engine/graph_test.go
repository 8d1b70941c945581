package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiln/internal/site"
)

func createRule(name string, deps ...string) *site.Rule {
	r := site.Create(name, name+".txt")
	for _, d := range deps {
		r.DependsOnName(d)
	}
	return r
}

func TestBuildGraph_Cycles(t *testing.T) {
	tests := []struct {
		name  string
		rules []*site.Rule
		want  []string
	}{
		{
			name:  "self dependency",
			rules: []*site.Rule{createRule("a", "a")},
			want:  []string{"a", "a"},
		},
		{
			name:  "two rules",
			rules: []*site.Rule{createRule("a", "b"), createRule("b", "a")},
			want:  []string{"a", "b", "a"},
		},
		{
			name: "three rules behind an acyclic prefix",
			rules: []*site.Rule{
				createRule("root"),
				createRule("a", "root", "b"),
				createRule("b", "c"),
				createRule("c", "a"),
			},
			want: []string{"a", "b", "c", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := BuildGraph(tt.rules)
			require.Error(t, err)
			assert.Nil(t, g)
			assert.True(t, IsCycleError(err))

			var ge *GraphError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, tt.want, ge.Rules)
		})
	}
}

func TestBuildGraph_CycleMessage(t *testing.T) {
	_, err := BuildGraph([]*site.Rule{createRule("a", "b"), createRule("b", "a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle: a -> b -> a")
}

func TestBuildGraph_Unresolved(t *testing.T) {
	_, err := BuildGraph([]*site.Rule{
		createRule("index", "posts"),
		createRule("feed", "posts", "tags"),
	})
	require.Error(t, err)
	assert.True(t, IsUnresolvedError(err))
	assert.Contains(t, err.Error(), `rule "index" depends on unregistered rule "posts"`)
	assert.Contains(t, err.Error(), `rule "feed" depends on unregistered rule "tags"`)
}

func TestBuildGraph_Duplicate(t *testing.T) {
	_, err := BuildGraph([]*site.Rule{createRule("a"), createRule("a")})
	require.Error(t, err)

	var ge *GraphError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ErrCodeDuplicate, ge.Code)
}

func TestBuildGraph_EmptyName(t *testing.T) {
	_, err := BuildGraph([]*site.Rule{site.Create("", "x")})
	require.Error(t, err)
	assert.True(t, IsGraphError(err))
}

func TestBuildGraph_Empty(t *testing.T) {
	g, err := BuildGraph(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.TopoOrder())
	assert.Empty(t, g.Levels())
}

func TestGraph_TopoOrder(t *testing.T) {
	g, err := BuildGraph([]*site.Rule{
		createRule("index", "posts"),
		createRule("posts"),
		createRule("static"),
		createRule("feed", "posts", "index"),
	})
	require.NoError(t, err)

	names := func(order []int) []string {
		out := make([]string, len(order))
		for i, n := range order {
			out[i] = g.Name(n)
		}
		return out
	}
	assert.Equal(t, []string{"posts", "index", "static", "feed"}, names(g.TopoOrder()))

	// Deterministic across calls.
	for i := 0; i < 10; i++ {
		assert.Equal(t, g.TopoOrder(), g.TopoOrder())
	}
}

func TestGraph_Levels(t *testing.T) {
	g, err := BuildGraph([]*site.Rule{
		createRule("index", "posts"),
		createRule("posts"),
		createRule("static"),
		createRule("feed", "index"),
	})
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"posts", "static"},
		{"index"},
		{"feed"},
	}, g.Levels())
}

func TestGraph_Adjacency(t *testing.T) {
	g, err := BuildGraph([]*site.Rule{
		createRule("posts"),
		createRule("index", "posts"),
		createRule("feed", "posts"),
	})
	require.NoError(t, err)

	posts, ok := g.Index("posts")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, g.Dependents(posts))
	assert.Equal(t, []int{0}, g.Dependencies(1))
	assert.Equal(t, "feed", g.Rule(2).Name())

	_, ok = g.Index("missing")
	assert.False(t, ok)
}

func TestGraph_WriteDot(t *testing.T) {
	g, err := BuildGraph([]*site.Rule{
		site.Match("posts", func(string) bool { return true }),
		createRule("index", "posts"),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, g.WriteDot(&buf))

	dot := buf.String()
	assert.Contains(t, dot, "digraph rules {")
	assert.Contains(t, dot, `"posts" [label="posts\n(match)"];`)
	assert.Contains(t, dot, `"index" [label="index\n(create)"];`)
	assert.Contains(t, dot, `"posts" -> "index";`)
}
