// Package site defines the build data model shared by every other package.
//
// An Item is one artifact moving through a rule's pipeline. A Compiler is a
// single transformation over an Item; a Chain is an ordered list of compilers
// and is itself a Compiler. A Router computes an item's output path. A Rule
// pairs an input selection policy with a chain and a set of dependency rule
// names. When a rule finishes, its items are frozen into a Binding that
// dependent rules read through Dependencies.
//
// This package contains no scheduling logic; see internal/engine.
//
// Key constraints:
//   - A compiler mutates only the item it is given
//   - A published Binding is never mutated
//   - Item.Owner is a (rule, index) reference, never a pointer to a Binding
package site
