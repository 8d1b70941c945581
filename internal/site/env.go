package site

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Env is the read-only environment a build hands to every item.
// It replaces any global site registry: everything a step needs to know
// about the build travels with the item.
type Env struct {
	InputRoot  string
	OutputRoot string

	// Preview includes draft content that would otherwise be retained out.
	Preview bool

	// Outputs records which item claimed each output path in this build.
	Outputs *OutputLedger
}

// Claim identifies the item that owns an output path.
type Claim struct {
	Rule   string `json:"rule"`
	Source string `json:"source"`
}

func (c Claim) String() string {
	return c.Rule + ":" + c.Source
}

// CollisionError reports two or more items resolving to the same output
// path. Collisions always fail the build; nothing is silently overwritten.
type CollisionError struct {
	Path   string
	Claims []Claim
}

func (e *CollisionError) Error() string {
	parts := make([]string, len(e.Claims))
	for i, c := range e.Claims {
		parts[i] = c.String()
	}
	return fmt.Sprintf("output collision at %q: %s", e.Path, strings.Join(parts, ", "))
}

// IsCollision reports whether err is (or wraps) a CollisionError.
func IsCollision(err error) bool {
	var ce *CollisionError
	return errors.As(err, &ce)
}

// OutputLedger is the build-wide table of claimed output paths.
// Safe for concurrent use.
type OutputLedger struct {
	mu     sync.Mutex
	claims map[string]Claim
}

// NewOutputLedger creates an empty ledger.
func NewOutputLedger() *OutputLedger {
	return &OutputLedger{claims: make(map[string]Claim)}
}

// Claim records that item owns its output path. Claiming the same path
// twice for the same item is allowed; a claim by any other item fails with
// a CollisionError and leaves the first claim in place.
func (l *OutputLedger) Claim(item *Item) error {
	return l.ClaimPath(item.Output, Claim{Rule: item.Owner.Rule, Source: item.Source})
}

// ClaimPath records c as the owner of an output path other than the
// item's own, such as a precompressed sibling. The rules are the same as
// for Claim.
func (l *OutputLedger) ClaimPath(path string, c Claim) error {
	out, err := CleanOutput(path)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.claims[out]; ok {
		if prev == c {
			return nil
		}
		return &CollisionError{Path: out, Claims: []Claim{prev, c}}
	}
	l.claims[out] = c
	return nil
}

// Owner returns the claim on path, if any.
func (l *OutputLedger) Owner(path string) (Claim, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.claims[path]
	return c, ok
}

// Paths returns all claimed paths in sorted order.
func (l *OutputLedger) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	paths := make([]string, 0, len(l.claims))
	for p := range l.claims {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// FindCollisions groups items by output path and returns one error per
// path claimed by more than one item. Items without an output are ignored.
// Results are ordered by path.
func FindCollisions(items []*Item) []*CollisionError {
	byPath := make(map[string][]Claim)
	for _, it := range items {
		if it.Output == "" {
			continue
		}
		out, err := CleanOutput(it.Output)
		if err != nil {
			continue
		}
		byPath[out] = append(byPath[out], Claim{Rule: it.Owner.Rule, Source: it.Source})
	}

	var errs []*CollisionError
	for p, claims := range byPath {
		if len(claims) > 1 {
			errs = append(errs, &CollisionError{Path: p, Claims: claims})
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })
	return errs
}
