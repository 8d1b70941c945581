package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kiln/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	def, err := CompileString("site.cue", blogDefinition)
	require.NoError(t, err)

	known := map[string]bool{
		"read": true, "front_matter": true, "publishable": true, "markdown": true,
		"route": true, "template": true, "write": true, "inject": true, "gzip": true,
	}
	errs := Validate(def, func(s string) bool { return known[s] })
	assert.Empty(t, errs)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  ir.SiteDefinition
		want string
	}{
		{
			name: "bad name",
			def:  ir.SiteDefinition{Rules: []ir.RuleSpec{{Name: "9lives", Mode: ir.ModeCreate, Target: "x"}}},
			want: ErrRuleNameInvalid,
		},
		{
			name: "bad mode",
			def:  ir.SiteDefinition{Rules: []ir.RuleSpec{{Name: "a", Mode: "filter"}}},
			want: ErrRuleModeInvalid,
		},
		{
			name: "bad glob",
			def:  ir.SiteDefinition{Rules: []ir.RuleSpec{{Name: "a", Mode: ir.ModeMatch, Pattern: "posts/[*.md"}}},
			want: ErrMatchPattern,
		},
		{
			name: "escaping target",
			def:  ir.SiteDefinition{Rules: []ir.RuleSpec{{Name: "a", Mode: ir.ModeCreate, Target: "../x.html"}}},
			want: ErrCreateTarget,
		},
		{
			name: "paginate without block",
			def:  ir.SiteDefinition{Rules: []ir.RuleSpec{{Name: "a", Mode: ir.ModePaginate}}},
			want: ErrPaginateSpec,
		},
		{
			name: "duplicate rule",
			def: ir.SiteDefinition{Rules: []ir.RuleSpec{
				{Name: "a", Mode: ir.ModeCreate, Target: "x"},
				{Name: "a", Mode: ir.ModeCreate, Target: "y"},
			}},
			want: ErrDuplicateRule,
		},
		{
			name: "unknown dependency",
			def:  ir.SiteDefinition{Rules: []ir.RuleSpec{{Name: "a", Mode: ir.ModeCreate, Target: "x", DependsOn: []string{"ghost"}}}},
			want: ErrUnknownDependency,
		},
		{
			name: "duplicate dependency",
			def: ir.SiteDefinition{Rules: []ir.RuleSpec{
				{Name: "a", Mode: ir.ModeCreate, Target: "x"},
				{Name: "b", Mode: ir.ModeCreate, Target: "y", DependsOn: []string{"a", "a"}},
			}},
			want: ErrDuplicateDependency,
		},
		{
			name: "unknown step",
			def:  ir.SiteDefinition{Rules: []ir.RuleSpec{{Name: "a", Mode: ir.ModeCreate, Target: "x", Steps: []ir.StepSpec{{Name: "teleport"}}}}},
			want: ErrUnknownStep,
		},
		{
			name: "cycle",
			def: ir.SiteDefinition{Rules: []ir.RuleSpec{
				{Name: "a", Mode: ir.ModeCreate, Target: "x", DependsOn: []string{"b"}},
				{Name: "b", Mode: ir.ModeCreate, Target: "y", DependsOn: []string{"a"}},
			}},
			want: ErrDependencyCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&tt.def, func(s string) bool { return s != "teleport" })
			assert.Contains(t, codes(errs), tt.want)
		})
	}
}

func TestValidate_PaginateFields(t *testing.T) {
	def := &ir.SiteDefinition{Rules: []ir.RuleSpec{{
		Name: "archive",
		Mode: ir.ModePaginate,
		Paginate: &ir.PaginateSpec{
			From:    "",
			PerPage: 0,
			First:   "",
			Pattern: "archive.html",
		},
	}}}

	errs := Validate(def, nil)
	var fields []string
	for _, e := range errs {
		assert.Equal(t, ErrPaginateSpec, e.Code)
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{
		"rule.archive.paginate.from",
		"rule.archive.paginate.per_page",
		"rule.archive.paginate.first",
		"rule.archive.paginate.pattern",
	}, fields)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	def := &ir.SiteDefinition{Rules: []ir.RuleSpec{
		{Name: "", Mode: "nope"},
		{Name: "b", Mode: ir.ModeCreate, Target: "/abs", DependsOn: []string{"c"}},
	}}

	errs := Validate(def, nil)
	assert.Equal(t, []string{ErrRuleNameInvalid, ErrRuleModeInvalid, ErrCreateTarget, ErrUnknownDependency}, codes(errs))
}

func TestValidationError_Format(t *testing.T) {
	e := ValidationError{Field: "rule.a", Message: "bad", Code: ErrRuleModeInvalid}
	assert.Equal(t, "[E102] rule.a: bad", e.Error())

	e.Line = 4
	assert.Equal(t, "[E102] line 4: rule.a: bad", e.Error())
}
