package site

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// BindingRef locates an item inside a published Binding.
//
// It is deliberately a value, not a pointer: an item never holds a live
// alias to another rule's binding. Resolve it through Dependencies.Resolve
// or the engine's published table.
type BindingRef struct {
	Rule  string `json:"rule"`
	Index int    `json:"index"` // -1 until the item is committed
}

func (r BindingRef) String() string {
	return fmt.Sprintf("%s[%d]", r.Rule, r.Index)
}

// Item is one artifact moving through a rule's chain.
//
// Items are mutated only by the chain of the rule that owns them, one step
// at a time. Once committed into a Binding they must be treated as read-only.
type Item struct {
	// Source is the slash-separated identifier relative to the input root,
	// or the synthetic target of a creation rule.
	Source string

	// Body is nil until a compiler populates it.
	Body []byte

	// Meta holds parsed front matter and values injected by steps.
	Meta Metadata

	// Output is the slash-separated path relative to the output root.
	// Empty until a router step sets it.
	Output string

	// Owner identifies the rule that owns this item.
	Owner BindingRef

	// Env is the read-only build environment.
	Env *Env
}

// NewItem creates an uncommitted item owned by rule.
func NewItem(rule, source string, env *Env) *Item {
	return &Item{
		Source: source,
		Meta:   Metadata{},
		Owner:  BindingRef{Rule: rule, Index: -1},
		Env:    env,
	}
}

// InputPath returns the item's location on disk under the input root.
func (i *Item) InputPath() string {
	if i.Env == nil || i.Env.InputRoot == "" {
		return filepath.FromSlash(i.Source)
	}
	return filepath.Join(i.Env.InputRoot, filepath.FromSlash(i.Source))
}

// OutputPath returns the item's destination on disk under the output root.
// Fails if no router has run or if the routed path would escape the root.
func (i *Item) OutputPath() (string, error) {
	if i.Output == "" {
		return "", fmt.Errorf("item %q has no output path", i.Source)
	}
	rel, err := CleanOutput(i.Output)
	if err != nil {
		return "", err
	}
	root := ""
	if i.Env != nil {
		root = i.Env.OutputRoot
	}
	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

// CleanOutput normalizes a routed output path and rejects paths that are
// absolute or climb out of the output root.
func CleanOutput(p string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(p, `\`, "/"))
	switch {
	case cleaned == "." || cleaned == "":
		return "", fmt.Errorf("empty output path")
	case path.IsAbs(cleaned) || filepath.IsAbs(p):
		return "", fmt.Errorf("output path %q is absolute", p)
	case cleaned == ".." || strings.HasPrefix(cleaned, "../"):
		return "", fmt.Errorf("output path %q escapes the output root", p)
	}
	return cleaned, nil
}

func (i *Item) String() string {
	if i.Output != "" {
		return fmt.Sprintf("%s -> %s", i.Source, i.Output)
	}
	return i.Source
}
