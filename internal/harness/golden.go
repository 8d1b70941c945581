package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"unicode/utf8"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/kiln/internal/engine"
)

// Snapshot is the deterministic part of a scenario run: everything but
// timestamps, seqs and digests.
type Snapshot struct {
	Scenario   string            `json:"scenario"`
	OK         bool              `json:"ok"`
	Rules      []RuleSnapshot    `json:"rules"`
	Failures   []FailureSnapshot `json:"failures,omitempty"`
	Collisions []string          `json:"collisions,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	Outputs    map[string]string `json:"outputs"`
}

// RuleSnapshot is one rule's result without its digest and seqs.
type RuleSnapshot struct {
	Name      string   `json:"name"`
	Mode      string   `json:"mode"`
	State     string   `json:"state"`
	Selected  int      `json:"selected"`
	Committed int      `json:"committed"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Cancelled int      `json:"cancelled"`
	Outputs   []string `json:"outputs,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// FailureSnapshot is one reported failure.
type FailureSnapshot struct {
	Rule   string `json:"rule"`
	Source string `json:"source,omitempty"`
	Step   string `json:"step"`
	Error  string `json:"error"`
}

// NewSnapshot captures a finished run. Outputs that are not valid UTF-8
// are recorded as "(binary)".
func NewSnapshot(name string, result *Result, strict bool) Snapshot {
	snap := Snapshot{
		Scenario: name,
		Rules:    []RuleSnapshot{},
		Outputs:  make(map[string]string, len(result.Outputs)),
	}
	for path, content := range result.Outputs {
		if !utf8.ValidString(content) {
			content = "(binary)"
		}
		snap.Outputs[path] = content
	}

	report := result.Report
	if report == nil {
		return snap
	}
	snap.OK = report.OK(strict)
	for _, rr := range report.Rules {
		snap.Rules = append(snap.Rules, ruleSnapshot(rr))
	}
	for _, f := range report.Failures {
		snap.Failures = append(snap.Failures, FailureSnapshot{
			Rule:   f.Rule,
			Source: f.Source,
			Step:   f.Step,
			Error:  f.Message,
		})
	}
	for _, c := range report.Collisions {
		snap.Collisions = append(snap.Collisions, c.Path)
	}
	snap.Warnings = report.Warnings
	return snap
}

func ruleSnapshot(rr *engine.RuleResult) RuleSnapshot {
	return RuleSnapshot{
		Name:      rr.Name,
		Mode:      rr.Mode,
		State:     string(rr.State),
		Selected:  rr.Selected,
		Committed: rr.Committed,
		Skipped:   rr.Skipped,
		Failed:    rr.Failed,
		Cancelled: rr.Cancelled,
		Outputs:   rr.Outputs,
		Reason:    rr.Reason,
	}
}

// MarshalSnapshot renders a snapshot as indented JSON. Map keys are
// sorted and HTML is not escaped, so golden files stay readable.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, scenario.Config.Strict); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result, strict bool) error {
	t.Helper()

	data, err := MarshalSnapshot(NewSnapshot(name, result, strict))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
