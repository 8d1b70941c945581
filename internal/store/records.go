package store

import "time"

// BuildRecord is one row of the builds table.
type BuildRecord struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	OK         bool      `json:"ok"`
	Strict     bool      `json:"strict"`
	Cancelled  bool      `json:"cancelled"`
	Rules      int       `json:"rules"`
	Outputs    int       `json:"outputs"`
	Failures   int       `json:"failures"`
	Collisions int       `json:"collisions"`
	Warnings   int       `json:"warnings"`
}

// Duration returns the wall time the build took.
func (b BuildRecord) Duration() time.Duration {
	return b.Finished.Sub(b.Started)
}

// RuleRecord is the stored result of one rule in one build.
type RuleRecord struct {
	BuildID   string `json:"build_id"`
	Position  int    `json:"position"`
	Name      string `json:"name"`
	Mode      string `json:"mode"`
	State     string `json:"state"`
	Selected  int    `json:"selected"`
	Committed int    `json:"committed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Cancelled int    `json:"cancelled"`
	Digest    string `json:"digest,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// OutputRecord is one committed output path.
type OutputRecord struct {
	BuildID string `json:"build_id"`
	Rule    string `json:"rule"`
	Path    string `json:"path"`
}

// FailureRecord is one stored failure.
type FailureRecord struct {
	BuildID  string `json:"build_id"`
	Position int    `json:"position"`
	Rule     string `json:"rule"`
	Source   string `json:"source,omitempty"`
	Step     string `json:"step"`
	Message  string `json:"message"`
}

// RuleFilter narrows RuleResults. Empty fields match everything.
type RuleFilter struct {
	Name  string
	State string
}

// FailureFilter narrows Failures. Empty fields match everything.
type FailureFilter struct {
	Rule string
	Step string
}
