package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DomainRecord is the domain prefix for record identity hashing.
// The version suffix allows a future algorithm migration without
// colliding with existing IDs.
const DomainRecord = "solitude/record/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte
// separator prevents ambiguity between domain and payload bytes.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordID computes the content-addressed ID for a record from every
// field except ID itself. The same record always hashes to the same ID,
// which is what makes store appends idempotent: replaying an append is
// a no-op instead of a duplicate row.
//
// Timestamps are rendered in RFC 3339 with nanoseconds, normalized to
// UTC so the ID does not depend on the producing host's zone database.
func RecordID(r Record) (string, error) {
	obj := ObjectValue{
		"session_id":       StringValue(r.SessionID),
		"type":             StringValue(r.Type),
		"flow_id":          StringValue(r.FlowID),
		"step_index":       IntValue(r.StepIndex),
		"started_at":       StringValue(r.StartedAt.UTC().Format(time.RFC3339Nano)),
		"duration_seconds": IntValue(r.DurationSeconds),
		"completed":        BoolValue(r.Completed),
		"focus_quality":    IntValue(r.FocusQuality),
		"recorded_at":      StringValue(r.RecordedAt.UTC().Format(time.RFC3339Nano)),
		"seq":              IntValue(r.Seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RecordID: %w", err)
	}

	return hashWithDomain(DomainRecord, canonical), nil
}

// MustRecordID is RecordID panicking on error. Record fields cannot
// actually fail to marshal, so engine paths use this form.
func MustRecordID(r Record) string {
	id, err := RecordID(r)
	if err != nil {
		panic(err)
	}
	return id
}
