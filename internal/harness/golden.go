package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/mue864/solitude-sub000/internal/session"
)

// TraceSnapshot captures the complete trace of a scenario execution
// for golden comparison. Serialization is canonical JSON, so two runs
// of the same scenario produce identical fixture bytes.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalValue converts the snapshot into the canonical value
// tree. Absent fields are dropped so fixtures stay small.
func (s *TraceSnapshot) toCanonicalValue() session.Value {
	trace := make(session.ArrayValue, len(s.Trace))
	for i, ev := range s.Trace {
		trace[i] = traceEventValue(ev)
	}
	return session.ObjectValue{
		"scenario_name": session.StringValue(s.ScenarioName),
		"trace":         trace,
	}
}

// traceEventValue flattens one trace event. Record content hashes stay
// out of fixtures; the session package's hash tests pin those bytes.
func traceEventValue(ev TraceEvent) session.ObjectValue {
	obj := session.ObjectValue{
		"kind": session.StringValue(ev.Kind),
		"seq":  session.IntValue(ev.Seq),
	}
	if ev.At != "" {
		obj["at"] = session.StringValue(ev.At)
	}
	if ev.SessionID != "" {
		obj["session_id"] = session.StringValue(ev.SessionID)
	}
	if ev.SessionType != "" {
		obj["session_type"] = session.StringValue(ev.SessionType)
	}
	if ev.FlowID != "" {
		obj["flow_id"] = session.StringValue(ev.FlowID)
	}
	if ev.StepIndex != session.NoStep {
		obj["step_index"] = session.IntValue(int64(ev.StepIndex))
	}
	if ev.Completed != nil {
		obj["completed"] = session.BoolValue(*ev.Completed)
		obj["duration_seconds"] = session.IntValue(int64(ev.DurationSeconds))
	}
	if ev.CurrentStreak != nil {
		obj["current_streak"] = session.IntValue(int64(*ev.CurrentStreak))
		obj["last_day"] = session.StringValue(ev.LastDay)
	}
	if ev.TotalSteps != nil {
		obj["total_steps"] = session.IntValue(int64(*ev.TotalSteps))
		obj["completed_steps"] = session.IntValue(int64(*ev.CompletedSteps))
	}
	return obj
}

// CanonicalTrace renders a scenario trace as canonical JSON, the byte
// form stored in golden fixtures. The CLI test command uses this for
// its own fixture comparison outside of go test.
func CanonicalTrace(scenarioName string, trace []TraceEvent) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        trace,
	}
	return session.MarshalCanonical(snapshot.toCanonicalValue())
}

// RunWithGolden executes a scenario and compares its trace against the
// golden fixture testdata/golden/{scenario.Name}.golden.
//
// To regenerate fixtures, run:
//
//	go test ./internal/harness -update
//
// Returns an error if scenario execution fails; a trace mismatch fails
// the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-obtained result's trace against the
// named golden fixture.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := CanonicalTrace(scenarioName, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
