package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiln/internal/ir"
)

func rules(edges ...[]string) *ir.SiteDefinition {
	def := &ir.SiteDefinition{}
	for _, e := range edges {
		def.Rules = append(def.Rules, ir.RuleSpec{Name: e[0], Mode: ir.ModeCreate, Target: e[0], DependsOn: e[1:]})
	}
	return def
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
	assert.Empty(t, AnalyzeCycles(&ir.SiteDefinition{}))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	def := rules(
		[]string{"posts"},
		[]string{"index", "posts"},
		[]string{"feed", "posts", "index"},
	)
	assert.Empty(t, AnalyzeCycles(def))
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	cycles := AnalyzeCycles(rules([]string{"a", "a"}))
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "a"}, cycles[0].Path)
	assert.Equal(t, "cycle: a -> a", cycles[0].Message)
}

func TestAnalyzeCycles_TwoRules(t *testing.T) {
	cycles := AnalyzeCycles(rules(
		[]string{"a", "b"},
		[]string{"b", "a"},
	))
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "a"}, cycles[0].Path)
}

func TestAnalyzeCycles_ReportsEveryCycle(t *testing.T) {
	cycles := AnalyzeCycles(rules(
		[]string{"ok"},
		[]string{"x", "y"},
		[]string{"y", "z"},
		[]string{"z", "x", "ok"},
		[]string{"p", "q"},
		[]string{"q", "p"},
		[]string{"s", "s"},
	))
	require.Len(t, cycles, 3)
	assert.Equal(t, []string{"x", "y", "z", "x"}, cycles[0].Path)
	assert.Equal(t, []string{"p", "q", "p"}, cycles[1].Path)
	assert.Equal(t, []string{"s", "s"}, cycles[2].Path)
}

func TestAnalyzeCycles_ShortestCycleInSCC(t *testing.T) {
	// a -> b -> c -> a and a -> c -> a share one SCC.
	cycles := AnalyzeCycles(rules(
		[]string{"a", "b", "c"},
		[]string{"b", "c"},
		[]string{"c", "a"},
	))
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "c", "a"}, cycles[0].Path)
}

func TestAnalyzeCycles_PaginateEdge(t *testing.T) {
	def := &ir.SiteDefinition{Rules: []ir.RuleSpec{
		{Name: "posts", Mode: ir.ModeMatch, Pattern: "*.md", DependsOn: []string{"archive"}},
		{Name: "archive", Mode: ir.ModePaginate, Paginate: &ir.PaginateSpec{From: "posts", PerPage: 5, First: "a.html", Pattern: "a%d.html"}},
	}}
	cycles := AnalyzeCycles(def)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"posts", "archive", "posts"}, cycles[0].Path)
}

func TestAnalyzeCycles_IgnoresUnknown(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(rules([]string{"a", "ghost"})))
}
