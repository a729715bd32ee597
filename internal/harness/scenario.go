package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mue864/solitude-sub000/internal/engine"
)

// Scenario defines one deterministic engine test: a catalog, a scripted
// command sequence, and an optional expectation on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// fixture name.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description"`

	// Start is the RFC 3339 instant the manual clock is frozen at
	// before the first step. Empty means DefaultStart.
	Start string `yaml:"start,omitempty"`

	// Catalog is an inline catalog merged over the built-ins. A
	// scenario without one runs against the built-in catalog alone.
	Catalog CatalogSpec `yaml:"catalog,omitempty"`

	// Steps is the command script, executed in order.
	Steps []Step `yaml:"steps"`

	// Expect checks the final engine state after the last step. Nil
	// skips the check; trace content is then covered by golden
	// comparison alone.
	Expect *Expect `yaml:"expect,omitempty"`
}

// CatalogSpec is the inline catalog block. Field names match authored
// CUE catalogs so definitions can move between the two formats.
type CatalogSpec struct {
	Session map[string]SessionSpec `yaml:"session,omitempty"`
	Flow    map[string]FlowSpec    `yaml:"flow,omitempty"`
}

// SessionSpec declares one session type.
type SessionSpec struct {
	DurationSeconds int `yaml:"durationSeconds"`
}

// FlowSpec declares one flow. Steps name session types, resolved
// against the scenario catalog merged over the built-ins. AutoAdvance
// defaults to true when omitted.
type FlowSpec struct {
	Name        string   `yaml:"name"`
	AutoAdvance *bool    `yaml:"autoAdvance,omitempty"`
	Steps       []string `yaml:"steps"`
}

// Step is one scripted command. Exactly one command field must be set;
// WantError optionally rides along with any command.
type Step struct {
	// StartSession begins a standalone session of the named type.
	StartSession string `yaml:"start_session,omitempty"`

	// StartFlow begins a run of the named flow.
	StartFlow string `yaml:"start_flow,omitempty"`

	// Tick advances the clock by this many seconds, delivering one
	// countdown beat per second.
	Tick int `yaml:"tick,omitempty"`

	// Pause pauses the running session.
	Pause bool `yaml:"pause,omitempty"`

	// Resume resumes the paused session.
	Resume bool `yaml:"resume,omitempty"`

	// Advance starts the next step of a flow holding between steps.
	Advance bool `yaml:"advance,omitempty"`

	// Abandon ends the in-progress session or flow.
	Abandon bool `yaml:"abandon,omitempty"`

	// AdvanceTime moves the clock by a Go duration string ("26h",
	// "5m30s") without delivering countdown beats. Models idle gaps
	// between sittings.
	AdvanceTime string `yaml:"advance_time,omitempty"`

	// Record appends an externally built history record.
	Record *RecordStep `yaml:"record,omitempty"`

	// WantError names the error kind this step's command must fail
	// with. Empty means the command must succeed.
	WantError string `yaml:"want_error,omitempty"`
}

// RecordStep is the payload of a record command. Timestamps are
// RFC 3339 and may carry zone offsets; streak credit follows the local
// calendar day of recorded_at.
type RecordStep struct {
	SessionID       string `yaml:"session_id"`
	Type            string `yaml:"type"`
	FlowID          string `yaml:"flow_id,omitempty"`
	StepIndex       *int   `yaml:"step_index,omitempty"`
	StartedAt       string `yaml:"started_at"`
	DurationSeconds int    `yaml:"duration_seconds"`
	Completed       bool   `yaml:"completed"`
	FocusQuality    *int   `yaml:"focus_quality,omitempty"`
	RecordedAt      string `yaml:"recorded_at"`
}

// Expect checks the final engine state. Unset fields are skipped, so a
// scenario asserts only what it cares about.
type Expect struct {
	// Status is the final lifecycle state: idle, running, or paused.
	Status string `yaml:"status,omitempty"`

	// Type is the final active session type.
	Type string `yaml:"type,omitempty"`

	// Remaining is the final countdown value in seconds.
	Remaining *int `yaml:"remaining,omitempty"`

	// StepIndex is the flow step the run ended on. Fails when no flow
	// is in progress.
	StepIndex *int `yaml:"step_index,omitempty"`

	// Waiting asserts whether the flow is holding for an advance
	// command. Fails when no flow is in progress.
	Waiting *bool `yaml:"waiting,omitempty"`

	// Streak is the final consecutive-day streak count.
	Streak *int `yaml:"streak,omitempty"`

	// LastDay is the day key of the most recent streak credit.
	LastDay string `yaml:"last_day,omitempty"`

	// Events is the exact event-kind sequence of the whole trace.
	Events []string `yaml:"events,omitempty"`

	// Records is the number of history rows in the store after the
	// last step.
	Records *int `yaml:"records,omitempty"`
}

// Error kind names accepted in want_error.
const (
	ErrorUnknownSessionType = "unknown_session_type"
	ErrorFlowNotFound       = "flow_not_found"
	ErrorInvalidTransition  = "invalid_transition"
	ErrorInvalidRecord      = "invalid_record"
)

// DefaultStart is the clock instant scenarios begin at when they do
// not pin one. A Monday morning keeps day arithmetic in fixtures easy
// to follow.
const DefaultStart = "2025-01-06T09:00:00Z"

var errorKinds = map[string]bool{
	ErrorUnknownSessionType: true,
	ErrorFlowNotFound:       true,
	ErrorInvalidTransition:  true,
	ErrorInvalidRecord:      true,
}

var eventKinds = map[string]bool{
	string(engine.EventSessionStarted):   true,
	string(engine.EventSessionCompleted): true,
	string(engine.EventSessionAbandoned): true,
	string(engine.EventFlowAdvanced):     true,
	string(engine.EventFlowCompleted):    true,
	string(engine.EventFlowAbandoned):    true,
	string(engine.EventRecordAppended):   true,
	string(engine.EventStreakUpdated):    true,
	string(engine.EventPromptFired):      true,
}

// LoadScenario reads and parses a scenario YAML file. Returns an error
// if the file doesn't exist, is malformed, contains unknown fields
// (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML from memory. Tests embed scenario
// text directly instead of shipping a file per case.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks required fields and rejects scripts the
// runner could not execute deterministically.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Start != "" {
		if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
			return fmt.Errorf("start: not an RFC 3339 instant: %w", err)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	if s.Expect != nil {
		if err := validateExpect(s.Expect); err != nil {
			return err
		}
	}

	return nil
}

// validateStep enforces the one-command-per-step rule and per-command
// argument shape.
func validateStep(index int, step *Step) error {
	commands := 0
	if step.StartSession != "" {
		commands++
	}
	if step.StartFlow != "" {
		commands++
	}
	if step.Tick != 0 {
		if step.Tick < 0 {
			return fmt.Errorf("steps[%d]: tick must be positive, got %d", index, step.Tick)
		}
		commands++
	}
	if step.Pause {
		commands++
	}
	if step.Resume {
		commands++
	}
	if step.Advance {
		commands++
	}
	if step.Abandon {
		commands++
	}
	if step.AdvanceTime != "" {
		if _, err := time.ParseDuration(step.AdvanceTime); err != nil {
			return fmt.Errorf("steps[%d]: advance_time: %w", index, err)
		}
		commands++
	}
	if step.Record != nil {
		if err := validateRecordStep(index, step.Record); err != nil {
			return err
		}
		commands++
	}

	if commands != 1 {
		return fmt.Errorf("steps[%d]: exactly one command per step, got %d", index, commands)
	}

	if step.WantError != "" && !errorKinds[step.WantError] {
		return fmt.Errorf("steps[%d]: unknown want_error kind %q", index, step.WantError)
	}

	return nil
}

func validateRecordStep(index int, rec *RecordStep) error {
	if rec.Type == "" {
		return fmt.Errorf("steps[%d].record: type is required", index)
	}
	if rec.StartedAt == "" {
		return fmt.Errorf("steps[%d].record: started_at is required", index)
	}
	if _, err := time.Parse(time.RFC3339, rec.StartedAt); err != nil {
		return fmt.Errorf("steps[%d].record: started_at: %w", index, err)
	}
	if rec.RecordedAt == "" {
		return fmt.Errorf("steps[%d].record: recorded_at is required", index)
	}
	if _, err := time.Parse(time.RFC3339, rec.RecordedAt); err != nil {
		return fmt.Errorf("steps[%d].record: recorded_at: %w", index, err)
	}
	return nil
}

func validateExpect(e *Expect) error {
	switch e.Status {
	case "", "idle", "running", "paused":
	default:
		return fmt.Errorf("expect.status: unknown status %q", e.Status)
	}

	for i, kind := range e.Events {
		if !eventKinds[kind] {
			return fmt.Errorf("expect.events[%d]: unknown event kind %q", i, kind)
		}
	}

	return nil
}
