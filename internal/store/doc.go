// Package store provides the SQLite-backed build manifest.
//
// Every finished build is recorded once, in a single transaction:
//   - builds: one row per build with its outcome counters and the full
//     report encoded as deterministic CBOR
//   - rule_results: the terminal state of every rule
//   - outputs: every output path committed by a published rule
//   - failures: every item or rule failure, in report order
//
// # Ordering
//
// Builds are numbered by a store-assigned seq, never by wall time. Every
// query has an explicit ORDER BY with a deterministic tiebreaker, so two
// reads of the same manifest always agree.
//
// # Queries
//
// Filtered reads go through a small query form (Query, Equals, And) that
// compiles to parameterized SQL. Values are never interpolated.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
