package engine

import (
	"time"

	"github.com/roach88/kiln/internal/site"
)

// RuleState is the terminal state of a rule in one build.
type RuleState string

const (
	// RulePublished: the rule ran and its binding is visible to dependents.
	RulePublished RuleState = "published"
	// RuleFailed: the rule ran but its binding was withheld (fail-fast item
	// failure, selection error, or output collision).
	RuleFailed RuleState = "failed"
	// RuleSkipped: a dependency did not publish, so the rule never ran.
	RuleSkipped RuleState = "skipped"
	// RuleCancelled: the build was cancelled before the rule could finish.
	RuleCancelled RuleState = "cancelled"
)

// RuleResult summarizes one rule's execution.
type RuleResult struct {
	Name  string    `json:"name"`
	Mode  string    `json:"mode"`
	State RuleState `json:"state"`

	Selected  int `json:"selected"`  // items created by selection
	Committed int `json:"committed"` // items in the published binding
	Skipped   int `json:"skipped"`   // items dropped by a retain step
	Failed    int `json:"failed"`    // items with a hard failure
	Cancelled int `json:"cancelled"` // items abandoned by fail-fast or cancellation

	Outputs []string `json:"outputs,omitempty"`
	Digest  string   `json:"digest,omitempty"`
	Reason  string   `json:"reason,omitempty"`

	StartSeq   int64 `json:"start_seq,omitempty"`
	PublishSeq int64 `json:"publish_seq,omitempty"`

	binding *site.Binding
}

// Binding returns the published binding, or nil if the rule did not publish.
func (r *RuleResult) Binding() *site.Binding { return r.binding }

// Failure records one item (or rule-level) failure.
type Failure struct {
	Rule    string `json:"rule"`
	Source  string `json:"source,omitempty"`
	Step    string `json:"step"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

// Collision records an output path claimed by more than one item.
type Collision struct {
	Path   string       `json:"path"`
	Claims []site.Claim `json:"claims"`
}

// Report is the aggregate result of a build.
//
// Rules are in registration order. Failures are grouped by rule in
// registration order and in discovery order within a rule, regardless of the order
// in which they actually happened.
type Report struct {
	BuildID    string        `json:"build_id"`
	Rules      []*RuleResult `json:"rules"`
	Failures   []Failure     `json:"failures,omitempty"`
	Collisions []Collision   `json:"collisions,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
	Cancelled  bool          `json:"cancelled,omitempty"`
	Trace      []Event       `json:"-"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Rule returns the result for the named rule.
func (r *Report) Rule(name string) (*RuleResult, bool) {
	for _, rr := range r.Rules {
		if rr.Name == name {
			return rr, true
		}
	}
	return nil, false
}

// Outputs returns the number of committed items across published rules.
func (r *Report) Outputs() int {
	n := 0
	for _, rr := range r.Rules {
		if rr.State == RulePublished {
			n += rr.Committed
		}
	}
	return n
}

// Err returns the aggregate build error, or nil if the build succeeded.
//
// A build fails when it was cancelled, when any output collided, or when
// any rule did not publish. Item failures in rules that still published
// fail the build only in strict mode.
func (r *Report) Err(strict bool) error {
	be := &BuildError{Cancelled: r.Cancelled, Collisions: len(r.Collisions)}
	for _, rr := range r.Rules {
		if rr.State != RulePublished {
			be.Rules = append(be.Rules, rr.Name)
		}
	}
	if strict || len(be.Rules) > 0 || be.Collisions > 0 {
		be.Failures = len(r.Failures)
	}
	if r.Cancelled || be.Collisions > 0 || len(be.Rules) > 0 || (strict && be.Failures > 0) {
		return be
	}
	return nil
}

// OK reports whether the build succeeded under the given strictness.
func (r *Report) OK(strict bool) bool {
	return r.Err(strict) == nil
}
