package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines one build test: a site, its definition, the settings
// it is built with, and assertions on the result.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named
	// after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config holds the build settings.
	Config BuildConfig `yaml:"config,omitempty"`

	// Files are written under the input root before the build. Keys are
	// slash-separated paths.
	Files map[string]string `yaml:"files,omitempty"`

	// Definition is the CUE site definition. Exactly one of Definition
	// and DefinitionFile is set.
	Definition string `yaml:"definition,omitempty"`

	// DefinitionFile is a path to a CUE file, relative to the scenario
	// file.
	DefinitionFile string `yaml:"definition_file,omitempty"`

	// ExpectError, when set, makes the scenario expect the definition or
	// graph to be rejected with an error containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the finished build.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// BuildConfig mirrors the build settings of a project configuration.
type BuildConfig struct {
	Jobs     int      `yaml:"jobs,omitempty"`
	FailFast bool     `yaml:"fail_fast,omitempty"`
	Strict   bool     `yaml:"strict,omitempty"`
	Preview  bool     `yaml:"preview,omitempty"`
	Ignore   []string `yaml:"ignore,omitempty"`
}

// Assertion validates the report, the trace, the manifest or the output
// tree.
type Assertion struct {
	// Type selects the check; see the package documentation.
	Type string `yaml:"type"`

	// OK is the expected build outcome (build_ok).
	OK *bool `yaml:"ok,omitempty"`

	// Event is a trace event type such as rule_published (trace_contains,
	// trace_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected event order, each "<type> <rule>"
	// (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Rule, Source and Step narrow trace and failure assertions.
	Rule   string `yaml:"rule,omitempty"`
	Source string `yaml:"source,omitempty"`
	Step   string `yaml:"step,omitempty"`

	// Count is the expected number of events (trace_count).
	Count *int `yaml:"count,omitempty"`

	// Path is an output path (output_*, collision).
	Path string `yaml:"path,omitempty"`

	// Contains is a substring (output_contains, warning_contains).
	Contains string `yaml:"contains,omitempty"`

	// Table is a manifest table name (final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertBuildOK         = "build_ok"
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
	AssertFinalState      = "final_state"
	AssertOutputExists    = "output_exists"
	AssertOutputAbsent    = "output_absent"
	AssertOutputContains  = "output_contains"
	AssertFailure         = "failure"
	AssertCollision       = "collision"
	AssertWarningContains = "warning_contains"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// DefinitionFile is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.DefinitionFile != "" && !filepath.IsAbs(scenario.DefinitionFile) {
		scenario.DefinitionFile = filepath.Join(filepath.Dir(path), scenario.DefinitionFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by file
// name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, n := range names {
		s, err := LoadScenario(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// definitionSource returns the CUE text and the file name used in error
// positions.
func (s *Scenario) definitionSource() (string, string, error) {
	if s.DefinitionFile == "" {
		return s.Definition, s.Name + ".cue", nil
	}
	data, err := os.ReadFile(s.DefinitionFile)
	if err != nil {
		return "", "", fmt.Errorf("failed to read definition: %w", err)
	}
	return string(data), s.DefinitionFile, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Definition == "" && s.DefinitionFile == "":
		return fmt.Errorf("definition or definition_file is required")
	case s.Definition != "" && s.DefinitionFile != "":
		return fmt.Errorf("definition and definition_file are mutually exclusive")
	}

	if s.DefinitionFile != "" {
		if _, err := os.Stat(s.DefinitionFile); os.IsNotExist(err) {
			return fmt.Errorf("definition file not found: %s", s.DefinitionFile)
		}
	}

	if s.Config.Jobs < 0 {
		return fmt.Errorf("config.jobs must be >= 0")
	}

	for name := range s.Files {
		if name == "" || filepath.IsAbs(name) || strings.HasPrefix(filepath.ToSlash(filepath.Clean(name)), "../") {
			return fmt.Errorf("files: invalid path %q", name)
		}
	}

	if s.ExpectError == "" && len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	require := func(ok bool, field string) error {
		if !ok {
			return fmt.Errorf("assertions[%d]: %s is required for %s", index, field, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertBuildOK:
		return require(a.OK != nil, "ok")
	case AssertTraceContains:
		if err := require(a.Event != "", "event"); err != nil {
			return err
		}
		return require(a.Rule != "", "rule")
	case AssertTraceOrder:
		if err := require(len(a.Events) > 0, "events"); err != nil {
			return err
		}
		for _, e := range a.Events {
			if _, _, ok := strings.Cut(e, " "); !ok {
				return fmt.Errorf("assertions[%d]: event %q must be \"<type> <rule>\"", index, e)
			}
		}
		return nil
	case AssertTraceCount:
		if err := require(a.Event != "", "event"); err != nil {
			return err
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
		return nil
	case AssertFinalState:
		if err := require(a.Table != "", "table"); err != nil {
			return err
		}
		return require(len(a.Expect) > 0, "expect")
	case AssertOutputExists, AssertOutputAbsent, AssertCollision:
		return require(a.Path != "", "path")
	case AssertOutputContains:
		if err := require(a.Path != "", "path"); err != nil {
			return err
		}
		return require(a.Contains != "", "contains")
	case AssertFailure:
		return require(a.Rule != "", "rule")
	case AssertWarningContains:
		return require(a.Contains != "", "contains")
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
}
