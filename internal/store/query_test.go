package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      Query
		wantSQL    string
		wantParams []any
	}{
		{
			name:    "no filter",
			query:   Query{From: "builds", Columns: []string{"id", "seq"}, Order: []string{"seq DESC"}},
			wantSQL: "SELECT id, seq FROM builds ORDER BY seq DESC",
		},
		{
			name: "equals",
			query: Query{
				From:    "failures",
				Columns: []string{"rule"},
				Filter:  Equals{Field: "build_id", Value: "b1"},
				Order:   []string{"position"},
			},
			wantSQL:    "SELECT rule FROM failures WHERE build_id = ? ORDER BY position ASC",
			wantParams: []any{"b1"},
		},
		{
			name: "and with bool and limit",
			query: Query{
				From:    "builds",
				Columns: []string{"id"},
				Filter: And{Predicates: []Predicate{
					Equals{Field: "ok", Value: true},
					&Equals{Field: "rules", Value: 3},
				}},
				Order: []string{"seq desc", "id"},
				Limit: 5,
			},
			wantSQL:    "SELECT id FROM builds WHERE ok = ? AND rules = ? ORDER BY seq DESC, id ASC LIMIT ?",
			wantParams: []any{1, 3, 5},
		},
		{
			name: "empty and",
			query: Query{
				From:    "outputs",
				Columns: []string{"path"},
				Filter:  And{},
				Order:   []string{"path"},
			},
			wantSQL: "SELECT path FROM outputs WHERE 1 = 1 ORDER BY path ASC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := compileQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestCompileQuery_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		query Query
	}{
		{"bad table", Query{From: "builds; DROP TABLE builds", Columns: []string{"id"}, Order: []string{"id"}}},
		{"no columns", Query{From: "builds", Order: []string{"id"}}},
		{"bad column", Query{From: "builds", Columns: []string{"*"}, Order: []string{"id"}}},
		{"no order", Query{From: "builds", Columns: []string{"id"}}},
		{"bad direction", Query{From: "builds", Columns: []string{"id"}, Order: []string{"id SIDEWAYS"}}},
		{"bad field", Query{From: "builds", Columns: []string{"id"}, Filter: Equals{Field: "1=1 OR id", Value: "x"}, Order: []string{"id"}}},
		{"float value", Query{From: "builds", Columns: []string{"id"}, Filter: Equals{Field: "id", Value: 1.5}, Order: []string{"id"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := compileQuery(tt.query)
			assert.Error(t, err)
		})
	}
}

func TestWhere(t *testing.T) {
	assert.Nil(t, Where("rule", "", "step", ""))

	p := Where("build_id", "b1", "rule", "", "step", "write")
	assert.Equal(t, And{Predicates: []Predicate{
		Equals{Field: "build_id", Value: "b1"},
		Equals{Field: "step", Value: "write"},
	}}, p)
}
