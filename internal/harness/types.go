package harness

import (
	"time"

	"github.com/mue864/solitude-sub000/internal/engine"
)

// TraceEvent is one engine event flattened for the trace. Pointer
// fields are populated per kind: the record summary on record_appended
// and the completed/abandoned kinds, the streak summary on
// streak_updated, the flow summary on flow_completed.
type TraceEvent struct {
	Kind        string `json:"kind"`
	Seq         int64  `json:"seq"`
	At          string `json:"at,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	SessionType string `json:"session_type,omitempty"`
	FlowID      string `json:"flow_id,omitempty"`
	StepIndex   int    `json:"step_index"`

	RecordID        string `json:"record_id,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Completed       *bool  `json:"completed,omitempty"`

	CurrentStreak *int   `json:"current_streak,omitempty"`
	LastDay       string `json:"last_day,omitempty"`

	TotalSteps     *int `json:"total_steps,omitempty"`
	CompletedSteps *int `json:"completed_steps,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success. True until a step or
	// expectation check fails.
	Pass bool `json:"pass"`

	// Trace contains every engine event in emission order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and expectation failure messages. Empty if
	// Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEventTrace flattens one engine event onto the trace.
func (r *Result) AddEventTrace(ev engine.Event) {
	te := TraceEvent{
		Kind:        string(ev.Kind),
		Seq:         ev.Seq,
		SessionID:   ev.SessionID,
		SessionType: ev.SessionType,
		FlowID:      ev.FlowID,
		StepIndex:   ev.StepIndex,
	}
	if !ev.At.IsZero() {
		te.At = ev.At.UTC().Format(time.RFC3339Nano)
	}
	if ev.Record != nil {
		te.RecordID = ev.Record.ID
		te.DurationSeconds = ev.Record.DurationSeconds
		completed := ev.Record.Completed
		te.Completed = &completed
	}
	if ev.Streak != nil {
		streak := ev.Streak.CurrentStreak
		te.CurrentStreak = &streak
		te.LastDay = ev.Streak.LastCreditedDay
	}
	if ev.FlowCompletion != nil {
		total := ev.FlowCompletion.TotalSteps
		done := ev.FlowCompletion.CompletedSteps
		te.TotalSteps = &total
		te.CompletedSteps = &done
	}
	r.Trace = append(r.Trace, te)
}

// EventKinds returns the kind sequence of the whole trace, in order.
func (r *Result) EventKinds() []string {
	kinds := make([]string, len(r.Trace))
	for i, ev := range r.Trace {
		kinds[i] = ev.Kind
	}
	return kinds
}
