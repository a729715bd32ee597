package session

import "time"

// QualityUnset marks a record whose focus quality was never rated.
// Rated records carry a value in [0, QualityMax].
const (
	QualityUnset = -1
	QualityMax   = 10
)

// NoStep marks a record produced outside any flow.
const NoStep = -1

// Record is one append-only history entry, created exactly once per
// completed or abandoned session. Immutable once written.
//
// ID is content-addressed over every other field (see RecordID), so
// re-appending the same record is idempotent at the store layer.
// Seq is the engine's logical clock value at append time; all history
// ordering uses Seq, never wall-clock timestamps.
type Record struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Type      string `json:"type"`

	// FlowID and StepIndex tie the record to a flow run.
	// Empty / NoStep outside flows.
	FlowID    string `json:"flow_id,omitempty"`
	StepIndex int    `json:"step_index"`

	StartedAt       time.Time `json:"started_at"`
	DurationSeconds int       `json:"duration_seconds"`
	Completed       bool      `json:"completed"`

	// FocusQuality is an optional 0-10 self-rating, QualityUnset when
	// never provided.
	FocusQuality int `json:"focus_quality"`

	RecordedAt time.Time `json:"recorded_at"`
	Seq        int64     `json:"seq"`
}

// HasQuality reports whether the record carries a focus rating.
func (r Record) HasQuality() bool {
	return r.FocusQuality != QualityUnset
}

// Day returns the calendar day key the record counts toward.
func (r Record) Day() string {
	return DayOf(r.RecordedAt)
}
