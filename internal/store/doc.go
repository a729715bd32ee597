// Package store provides SQLite-backed durable storage for session
// history and streak state.
//
// The store persists two things:
//   - session_records: the append-only history log, one row per
//     completed or abandoned session instance
//   - streak_state: the single-row derived streak, saved on every
//     change and rebuildable from the log at any time
//
// # Critical Patterns
//
// Content-addressed appends
//   - record IDs are SHA-256 hashes over the record's canonical JSON
//     (see internal/session), inserted with ON CONFLICT(id) DO NOTHING
//   - replaying an append is a no-op instead of a duplicate row
//
// Logical identity and time
//   - all ordering uses seq INTEGER (the engine's logical clock),
//     never timestamps
//   - identical command sequences produce identical history regardless
//     of wall time
//
// Deterministic query results
//   - every list query orders by seq ASC, id ASC COLLATE BINARY
//   - ensures identical results across reopen and replay
//
// Derived state is disposable
//   - streak_state can always be rebuilt by replaying completed
//     records through the streak rule (RebuildStreak); the log is the
//     source of truth
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
