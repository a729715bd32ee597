package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mue864/solitude-sub000/internal/session"
)

func TestAssertGolden_SprintCompletes(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "sprint_completes.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.NoError(t, AssertGolden(t, scenario.Name, result))
}

func TestRunWithGolden_FlowAutoAdvance(t *testing.T) {
	scenario := parseTestScenario(t, `
name: flow_auto_advance
description: "An auto-advancing two-step flow emits the full event chain"
start: "2025-06-02T09:00:00Z"
catalog:
  session:
    sprint: { durationSeconds: 2 }
    rest: { durationSeconds: 1 }
  flow:
    cycle:
      name: "Cycle"
      steps: [sprint, rest]
steps:
  - start_flow: cycle
  - tick: 3
expect:
  status: idle
  streak: 1
  records: 2
`)

	require.NoError(t, RunWithGolden(t, scenario))
}

func TestTraceSnapshot_CanonicalBytesAreDeterministic(t *testing.T) {
	completed := true
	streak := 1
	snapshot := TraceSnapshot{
		ScenarioName: "repeatable",
		Trace: []TraceEvent{
			{Kind: "session_started", Seq: 1, At: "2025-06-02T09:00:00Z", SessionID: "session-000001", SessionType: "focus", StepIndex: session.NoStep},
			{Kind: "record_appended", Seq: 3, At: "2025-06-02T09:25:00Z", SessionID: "session-000001", SessionType: "focus", StepIndex: session.NoStep, DurationSeconds: 1500, Completed: &completed},
			{Kind: "streak_updated", Seq: 4, At: "2025-06-02T09:25:00Z", SessionID: "session-000001", StepIndex: session.NoStep, CurrentStreak: &streak, LastDay: "2025-06-02"},
		},
	}

	first, err := session.MarshalCanonical(snapshot.toCanonicalValue())
	require.NoError(t, err)
	second, err := session.MarshalCanonical(snapshot.toCanonicalValue())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestTraceSnapshot_ExcludesRecordHashes(t *testing.T) {
	result := runTestScenario(t, `
name: hash_free_fixture
description: "Stored record hashes never leak into fixture bytes"
catalog:
  session:
    sprint: { durationSeconds: 1 }
steps:
  - start_session: sprint
  - tick: 1
`)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	var appended *TraceEvent
	for i := range result.Trace {
		if result.Trace[i].Kind == "record_appended" {
			appended = &result.Trace[i]
		}
	}
	require.NotNil(t, appended)
	assert.NotEmpty(t, appended.RecordID, "the trace itself keeps the hash")

	snapshot := TraceSnapshot{ScenarioName: "hash_free_fixture", Trace: result.Trace}
	data, err := session.MarshalCanonical(snapshot.toCanonicalValue())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "record_id")
	assert.NotContains(t, string(data), appended.RecordID)
}

func TestTraceEventValue_OmitsUnsetFields(t *testing.T) {
	obj := traceEventValue(TraceEvent{
		Kind:      "prompt_fired",
		Seq:       2,
		StepIndex: session.NoStep,
	})

	assert.Len(t, obj, 2)
	assert.Contains(t, obj, "kind")
	assert.Contains(t, obj, "seq")
	assert.NotContains(t, obj, "step_index")
	assert.NotContains(t, obj, "at")
}

func TestTraceEventValue_KeepsFlowStepZero(t *testing.T) {
	obj := traceEventValue(TraceEvent{
		Kind:      "session_started",
		Seq:       1,
		SessionID: "session-000001",
		FlowID:    "cycle",
		StepIndex: 0,
	})

	require.Contains(t, obj, "step_index")
	assert.Equal(t, session.IntValue(0), obj["step_index"])
}
