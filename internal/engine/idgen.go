package engine

import "github.com/google/uuid"

// IDGenerator produces opaque session IDs. A fresh ID is issued every
// time a new session instance begins: a new type is started or a flow
// step starts. IDs are never reused.
//
// Implemented by UUIDv7Generator (production) and the fixed/sequence
// generators in internal/testutil (deterministic tests).
type IDGenerator interface {
	NewSessionID() string
}

// UUIDv7Generator generates time-ordered UUIDv7 session IDs.
//
// UUIDv7 embeds a millisecond timestamp, so IDs sort roughly by
// creation time, which keeps history listings readable.
//
// Thread-safety: uuid.NewV7 is safe for concurrent use.
type UUIDv7Generator struct{}

// NewSessionID returns a new UUIDv7 string.
//
// Panics only if the system entropy source fails, which is not a
// recoverable condition.
func (UUIDv7Generator) NewSessionID() string {
	return uuid.Must(uuid.NewV7()).String()
}
