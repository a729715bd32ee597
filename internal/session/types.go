package session

// Status is the lifecycle state of the active session.
type Status string

const (
	// StatusIdle means no countdown is armed.
	StatusIdle Status = "idle"

	// StatusRunning means the countdown is armed and decrementing.
	StatusRunning Status = "running"

	// StatusPaused means the countdown is disarmed with remaining
	// seconds preserved.
	StatusPaused Status = "paused"
)

// Spec describes one timed session type: a name and its default
// duration. Specs come from the catalog and are immutable.
type Spec struct {
	Type            string `json:"type"`
	DurationSeconds int    `json:"duration_seconds"`
}

// FlowDefinition is a named ordered sequence of session specs executed
// back-to-back. Authored definitions always have at least one step;
// the compiler enforces this.
//
// AutoAdvance controls what happens when a step completes with more
// steps remaining: true starts the next step immediately, false holds
// the run until an explicit Advance command.
type FlowDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AutoAdvance bool   `json:"auto_advance"`
	Steps       []Spec `json:"steps"`
}

// FlowContext locates the active session inside a flow run.
// Present on a Snapshot only while a flow is in progress.
type FlowContext struct {
	FlowID    string `json:"flow_id"`
	StepIndex int    `json:"step_index"`

	// Waiting is true when the previous step completed and the run is
	// holding for an Advance command (AutoAdvance=false flows only).
	Waiting bool `json:"waiting,omitempty"`
}

// Snapshot is a copy of the engine's active-session state, safe for
// external readers. Mutation happens only inside the engine.
type Snapshot struct {
	// SessionID is an opaque token regenerated every time a new session
	// instance begins (a new type is started or a flow step starts).
	// Never reused. Empty before the first session.
	SessionID string `json:"session_id"`

	Type             string       `json:"type"`
	RemainingSeconds int          `json:"remaining_seconds"`
	Status           Status       `json:"status"`
	Flow             *FlowContext `json:"flow,omitempty"`
}

// InFlow reports whether the snapshot belongs to a flow run.
func (s Snapshot) InFlow() bool {
	return s.Flow != nil
}

// StreakState is the derived consecutive-day streak. It is never set
// directly; AdvanceStreak is the only transition.
type StreakState struct {
	// CurrentStreak counts consecutive calendar days with at least one
	// completed session. Zero before the first completion.
	CurrentStreak int `json:"current_streak"`

	// LastCreditedDay is the day key ("YYYY-MM-DD") of the most recent
	// credited completion. Empty before the first completion.
	LastCreditedDay string `json:"last_credited_day"`
}

// FlowCompletionEvent is emitted when the final step of a flow run
// completes. CompletedSteps counts steps that actually finished, which
// equals TotalSteps for an uninterrupted run.
type FlowCompletionEvent struct {
	FlowID         string `json:"flow_id"`
	TotalSteps     int    `json:"total_steps"`
	CompletedSteps int    `json:"completed_steps"`
}
