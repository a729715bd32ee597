// Package session defines the value types shared by the timer engine,
// the history store, and the catalog compiler.
//
// The package is a leaf: it depends on nothing else in this module, so
// the engine, store, harness, and CLI can all exchange these types
// without import cycles.
//
// Contents:
//   - Spec, FlowDefinition, Catalog: the immutable configuration shapes
//     (session-type durations and ordered flow steps)
//   - Snapshot, Status, FlowContext: the observable state of the one
//     active session
//   - Record: the append-only history entry, content-addressed via
//     RecordID (see hash.go)
//   - StreakState and AdvanceStreak: the consecutive-day streak rule
//   - Value and MarshalCanonical: the canonical JSON profile used for
//     record IDs and golden traces
//
// # Canonical JSON
//
// Record IDs and trace snapshots must be byte-stable across platforms
// and replays. MarshalCanonical follows the RFC 8785 profile the rest
// of this module relies on:
//   - Object keys sorted by UTF-16 code units
//   - Strings NFC-normalized before escaping
//   - Integers only (no floats), no nulls
//   - No HTML escaping
//
// # Calendar days
//
// Streaks are keyed on local calendar dates rendered as "YYYY-MM-DD"
// day keys. DayOf derives the key from a timestamp in that timestamp's
// location; DaysBetween compares two keys. The streak rule never
// inspects wall-clock instants directly.
package session
