package engine

import (
	"errors"
	"fmt"
	"strings"
)

// GraphError represents a problem with the rule graph itself.
//
// Graph errors are fatal and are returned before any rule runs:
//   - Duplicate: two rules registered under one name
//   - Unresolved: a rule depends on a name that was never registered
//   - Cycle: the dependency relation is not acyclic (includes self-dependency)
type GraphError struct {
	// Code identifies the error category.
	Code GraphErrorCode

	// Message is a human-readable description.
	Message string

	// Rules names the offending rules. For cycles this is the cycle path,
	// first rule repeated at the end.
	Rules []string
}

// GraphErrorCode categorizes graph errors.
type GraphErrorCode string

const (
	// ErrCodeDuplicate indicates a rule name was registered twice.
	ErrCodeDuplicate GraphErrorCode = "DUPLICATE_RULE"

	// ErrCodeUnresolved indicates a dependency on an unknown rule.
	ErrCodeUnresolved GraphErrorCode = "UNRESOLVED_DEPENDENCY"

	// ErrCodeCycle indicates a dependency cycle.
	ErrCodeCycle GraphErrorCode = "DEPENDENCY_CYCLE"

	// ErrCodeEmpty indicates a rule without a name.
	ErrCodeEmpty GraphErrorCode = "EMPTY_RULE_NAME"
)

// Error implements the error interface.
func (e *GraphError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCycleError returns true if the error is a dependency cycle error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Code == ErrCodeCycle
	}
	return false
}

// IsUnresolvedError returns true if the error is an unresolved dependency.
func IsUnresolvedError(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Code == ErrCodeUnresolved
	}
	return false
}

// IsGraphError returns true for any graph error.
func IsGraphError(err error) bool {
	var ge *GraphError
	return errors.As(err, &ge)
}

// NewCycleError creates a GraphError for a cycle path such as
// ["a", "b", "a"].
func NewCycleError(path []string) *GraphError {
	return &GraphError{
		Code:    ErrCodeCycle,
		Message: "cycle: " + strings.Join(path, " -> "),
		Rules:   path,
	}
}

// NewUnresolvedError creates a GraphError for rule depending on missing.
func NewUnresolvedError(rule, missing string) *GraphError {
	return &GraphError{
		Code:    ErrCodeUnresolved,
		Message: fmt.Sprintf("rule %q depends on unregistered rule %q", rule, missing),
		Rules:   []string{rule, missing},
	}
}

// NewDuplicateError creates a GraphError for a repeated rule name.
func NewDuplicateError(rule string) *GraphError {
	return &GraphError{
		Code:    ErrCodeDuplicate,
		Message: fmt.Sprintf("rule %q is already registered", rule),
		Rules:   []string{rule},
	}
}

// SkippedError marks a rule that never ran because a dependency failed
// or was itself skipped.
type SkippedError struct {
	Rule       string
	Dependency string
}

func (e *SkippedError) Error() string {
	return fmt.Sprintf("rule %q skipped: dependency %q failed", e.Rule, e.Dependency)
}

// BuildError is the aggregate error of a finished build.
type BuildError struct {
	Cancelled  bool
	Failures   int
	Collisions int
	Rules      []string // failed or skipped rules
}

func (e *BuildError) Error() string {
	var parts []string
	if e.Cancelled {
		parts = append(parts, "cancelled")
	}
	if e.Failures > 0 {
		parts = append(parts, fmt.Sprintf("%d item failure(s)", e.Failures))
	}
	if e.Collisions > 0 {
		parts = append(parts, fmt.Sprintf("%d output collision(s)", e.Collisions))
	}
	if len(e.Rules) > 0 {
		parts = append(parts, "rules not published: "+strings.Join(e.Rules, ", "))
	}
	if len(parts) == 0 {
		return "build failed"
	}
	return "build failed: " + strings.Join(parts, "; ")
}
