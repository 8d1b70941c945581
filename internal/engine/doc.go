// Package engine resolves the rule graph of a site build and executes it.
//
// ARCHITECTURE:
//
// Graph:
// Rules are indexed by registration order. BuildGraph rejects duplicate
// names, unresolved dependencies and cycles before anything runs, so a bad
// graph never produces partial output.
//
// Scheduling:
// A single coordinator goroutine owns the build state. It keeps a ready set
// of rules whose dependencies have all published and starts each one in
// its own goroutine. Finished rules report back over a channel; the
// coordinator publishes the binding and releases dependents, or skips
// every transitive dependent of a rule that did not publish.
//
// Items:
// Within a rule, items run in parallel. A build-wide weighted semaphore
// bounds the number of items in flight across all rules.
//
// Failure policy:
//   - continue-on-error (default): failed items are dropped and reported,
//     the rule still publishes what succeeded
//   - fail-fast: the first hard failure cancels the rest of the rule and
//     the rule does not publish
//   - collisions always fail the rule
//
// Ordering:
// Trace events are stamped by a logical Clock. A rule's start seq is always
// greater than the publish seq of every rule it depends on.
package engine
