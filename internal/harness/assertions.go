package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/kiln/internal/engine"
	"github.com/roach88/kiln/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Trace    []engine.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, formatEvent(event))
		}
	}

	return buf.String()
}

func formatEvent(e engine.Event) string {
	if e.Source != "" {
		return fmt.Sprintf("%s %s %s", e.Type, e.Rule, e.Source)
	}
	return fmt.Sprintf("%s %s", e.Type, e.Rule)
}

// assertTraceContains checks if the trace contains an event of the given
// type for the rule, and for the source when one is named.
func assertTraceContains(trace []engine.Event, assertion Assertion) error {
	for _, event := range trace {
		if matchEvent(event, assertion) {
			return nil
		}
	}

	want := fmt.Sprintf("%s %s", assertion.Event, assertion.Rule)
	if assertion.Source != "" {
		want += " " + assertion.Source
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: want,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func matchEvent(event engine.Event, a Assertion) bool {
	if string(event.Type) != a.Event {
		return false
	}
	if a.Rule != "" && event.Rule != a.Rule {
		return false
	}
	return a.Source == "" || event.Source == a.Source
}

// assertTraceOrder checks if events appear in the specified order.
// Events don't need to be consecutive (intervening events are allowed).
func assertTraceOrder(trace []engine.Event, assertion Assertion) error {
	// First position of each expected event, 1-indexed so 0 means missing.
	positions := make(map[string]int)
	for i, event := range trace {
		key := fmt.Sprintf("%s %s", event.Type, event.Rule)
		if positions[key] == 0 {
			positions[key] = i + 1
		}
	}

	for _, want := range assertion.Events {
		if positions[want] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", assertion.Events),
				Actual:   fmt.Sprintf("missing event: %s", want),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Events); i++ {
		prev := assertion.Events[i-1]
		curr := assertion.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the event appears exactly the specified number of times.
func assertTraceCount(trace []engine.Event, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchEvent(event, assertion) {
			count++
		}
	}

	if count != *assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s %s appears %d time(s)", assertion.Event, assertion.Rule, *assertion.Count),
			Actual:   fmt.Sprintf("appears %d time(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks that exactly one manifest row of the build
// matches Where and that it carries the Expect values.
//
// Table and column names are validated by the store's query compiler;
// values are always bound as parameters.
func assertFinalState(ctx context.Context, st *store.Store, buildID string, assertion Assertion) error {
	columns := sortedKeys(assertion.Expect)

	var preds []store.Predicate
	if assertion.Table != "builds" {
		preds = append(preds, store.Equals{Field: "build_id", Value: buildID})
	} else {
		preds = append(preds, store.Equals{Field: "id", Value: buildID})
	}
	for _, k := range sortedKeys(assertion.Where) {
		preds = append(preds, store.Equals{Field: k, Value: assertion.Where[k]})
	}

	rows, err := st.Select(ctx, store.Query{
		From:    assertion.Table,
		Columns: columns,
		Filter:  store.And{Predicates: preds},
		Order:   columns,
		Limit:   2,
	})
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	for i, col := range columns {
		expected := assertion.Expect[col]
		if !stateValuesEqual(expected, values[i]) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", col, expected, expected),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", col, values[i], values[i]),
			}
		}
	}

	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares an expected YAML value with a value scanned
// from SQLite, which returns integers as int64, booleans as 0/1 and text
// as string or []byte.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}

	switch exp := expected.(type) {
	case string:
		s, ok := actual.(string)
		return ok && exp == s
	case int:
		n, ok := actual.(int64)
		return ok && int64(exp) == n
	case int64:
		n, ok := actual.(int64)
		return ok && exp == n
	case bool:
		if b, ok := actual.(bool); ok {
			return exp == b
		}
		n, ok := actual.(int64)
		return ok && exp == (n != 0)
	}

	return reflect.DeepEqual(expected, actual)
}

func assertBuildOK(report *engine.Report, strict bool, assertion Assertion) error {
	got := report.OK(strict)
	if got == *assertion.OK {
		return nil
	}
	actual := "build succeeded"
	if err := report.Err(strict); err != nil {
		actual = err.Error()
	}
	return &AssertionError{
		Type:     AssertBuildOK,
		Expected: fmt.Sprintf("ok = %t", *assertion.OK),
		Actual:   actual,
		Trace:    report.Trace,
	}
}

func assertOutput(outputs map[string]string, assertion Assertion) error {
	content, exists := outputs[assertion.Path]
	switch assertion.Type {
	case AssertOutputExists:
		if !exists {
			return &AssertionError{
				Type:     assertion.Type,
				Expected: fmt.Sprintf("output %s", assertion.Path),
				Actual:   fmt.Sprintf("not written; outputs: %v", outputPaths(outputs)),
			}
		}
	case AssertOutputAbsent:
		if exists {
			return &AssertionError{
				Type:     assertion.Type,
				Expected: fmt.Sprintf("no output %s", assertion.Path),
				Actual:   "output was written",
			}
		}
	case AssertOutputContains:
		if !exists {
			return &AssertionError{
				Type:     assertion.Type,
				Expected: fmt.Sprintf("output %s containing %q", assertion.Path, assertion.Contains),
				Actual:   "not written",
			}
		}
		if !strings.Contains(content, assertion.Contains) {
			return &AssertionError{
				Type:     assertion.Type,
				Expected: fmt.Sprintf("output %s containing %q", assertion.Path, assertion.Contains),
				Actual:   fmt.Sprintf("content %q", content),
			}
		}
	}
	return nil
}

func outputPaths(outputs map[string]string) []string {
	paths := make([]string, 0, len(outputs))
	for p := range outputs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func assertFailure(report *engine.Report, assertion Assertion) error {
	for _, f := range report.Failures {
		if f.Rule != assertion.Rule {
			continue
		}
		if assertion.Source != "" && f.Source != assertion.Source {
			continue
		}
		if assertion.Step != "" && f.Step != assertion.Step {
			continue
		}
		return nil
	}

	got := make([]string, len(report.Failures))
	for i, f := range report.Failures {
		got[i] = fmt.Sprintf("%s:%s at %s", f.Rule, f.Source, f.Step)
	}
	return &AssertionError{
		Type:     AssertFailure,
		Expected: fmt.Sprintf("failure in %s source=%q step=%q", assertion.Rule, assertion.Source, assertion.Step),
		Actual:   fmt.Sprintf("failures: %v", got),
	}
}

func assertCollision(report *engine.Report, assertion Assertion) error {
	paths := make([]string, len(report.Collisions))
	for i, c := range report.Collisions {
		if c.Path == assertion.Path {
			return nil
		}
		paths[i] = c.Path
	}
	return &AssertionError{
		Type:     AssertCollision,
		Expected: fmt.Sprintf("collision at %s", assertion.Path),
		Actual:   fmt.Sprintf("collisions: %v", paths),
	}
}

func assertWarningContains(report *engine.Report, assertion Assertion) error {
	for _, w := range report.Warnings {
		if strings.Contains(w, assertion.Contains) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertWarningContains,
		Expected: fmt.Sprintf("warning containing %q", assertion.Contains),
		Actual:   fmt.Sprintf("warnings: %v", report.Warnings),
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store   *store.Store
	Ctx     context.Context
	BuildID string
	Strict  bool
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides manifest access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		if result.Report == nil {
			errs = append(errs, fmt.Sprintf("assertion[%d]: %s: build did not run", i, assertion.Type))
			continue
		}

		switch assertion.Type {
		case AssertBuildOK:
			strict := actx != nil && actx.Strict
			err = assertBuildOK(result.Report, strict, assertion)
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires manifest context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, actx.BuildID, assertion)
			}
		case AssertOutputExists, AssertOutputAbsent, AssertOutputContains:
			err = assertOutput(result.Outputs, assertion)
		case AssertFailure:
			err = assertFailure(result.Report, assertion)
		case AssertCollision:
			err = assertCollision(result.Report, assertion)
		case AssertWarningContains:
			err = assertWarningContains(result.Report, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
