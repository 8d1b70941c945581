package ir

// SiteDefinition is a compiled site definition: the rules of one build in
// declaration order.
type SiteDefinition struct {
	Rules []RuleSpec `json:"rules"`
}

// Rule selection modes.
const (
	ModeMatch    = "match"
	ModeCreate   = "create"
	ModePaginate = "paginate"
)

// ValidModes defines allowed rule selection modes.
var ValidModes = map[string]bool{
	ModeMatch:    true,
	ModeCreate:   true,
	ModePaginate: true,
}

// RuleSpec is the declarative form of one rule.
//
// Exactly one of Pattern (match), Target (create) or Paginate (paginate)
// is set, according to Mode.
type RuleSpec struct {
	Name      string        `json:"name"`
	Mode      string        `json:"mode"`
	Pattern   string        `json:"pattern,omitempty"`
	Target    string        `json:"target,omitempty"`
	Paginate  *PaginateSpec `json:"paginate,omitempty"`
	DependsOn []string      `json:"depends_on,omitempty"`
	Steps     []StepSpec    `json:"steps"`
}

// PaginateSpec configures a paginating rule.
type PaginateSpec struct {
	From    string `json:"from"`     // dependency rule whose binding is paged
	PerPage int    `json:"per_page"` // items per page, > 0
	First   string `json:"first"`    // output of page 1
	Pattern string `json:"pattern"`  // output of page n >= 2, with one %d verb
}

// StepSpec names a stock step and its arguments.
//
// A step written as a bare string ("read") has neither Arg nor Options.
// A step written as {template: "layouts/post.html"} has Arg set.
// A step written as {route: {extension: "html"}} has Options set.
type StepSpec struct {
	Name    string            `json:"name"`
	Arg     string            `json:"arg,omitempty"`
	Options map[string]string `json:"options,omitempty"`
}

// Option returns the named option, falling back to Arg when the step was
// written in its short form.
func (s StepSpec) Option(key string) string {
	if v, ok := s.Options[key]; ok {
		return v
	}
	return s.Arg
}
