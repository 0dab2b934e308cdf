// Package store provides SQLite-backed storage for synthesized
// sanitation systems and their mass-flow summaries.
//
// Systems are content-addressed: the structure hash (see
// tech.StructureHash) is UNIQUE, so writing the same structure twice
// is a no-op and enumeration batches can be re-run idempotently.
// Summaries are derived data and one row per system; rewriting a
// summary replaces it.
//
// Determinism rules:
//   - All ordering uses seq INTEGER (insertion order), never wall time.
//   - Multi-row reads ORDER BY seq ASC, hash COLLATE BINARY ASC so
//     identical databases always list identically.
//   - Empty result sets are empty slices, not nil.
//
// Database configuration:
//   - WAL mode for concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
