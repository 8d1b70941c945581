// Package ir provides the declarative representation of a site definition
// and the deterministic digests used to compare build results.
//
// This package contains types and pure functions only. All other internal
// packages may import ir; ir imports nothing internal. This keeps the
// definition format the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Definitions are data: rule specs name steps, they never hold functions
//   - All JSON tags use snake_case
//   - Digests are computed over deterministic CBOR, never over map iteration order
package ir
