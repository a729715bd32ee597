package engine

import (
	"log/slog"

	"github.com/mue864/solitude-sub000/internal/session"
)

// flowRun tracks one pass through a flow definition. The definition is
// captured at start, so editing the catalog mid-run never changes the
// steps of a run already underway.
//
// stepIndex is the step currently running, or the step pending start
// while waiting between steps. completedSteps counts steps whose
// countdown reached zero; an abandoned run keeps the count it earned.
type flowRun struct {
	def            session.FlowDefinition
	stepIndex      int
	completedSteps int
	waiting        bool
}

func newFlowRun(def session.FlowDefinition) *flowRun {
	return &flowRun{def: def}
}

// startStepLocked begins step i of the current flow run as a fresh
// session instance with its own session ID.
func (e *Engine) startStepLocked(i int) {
	f := e.flow
	step := f.def.Steps[i]

	now := e.clock.Now()
	id := e.idgen.NewSessionID()

	e.active = activeSession{
		id:          id,
		sessionType: step.Type,
		remaining:   step.DurationSeconds,
		total:       step.DurationSeconds,
		startedAt:   now,
		status:      session.StatusRunning,
		stepIndex:   i,
	}
	f.stepIndex = i
	f.waiting = false
	e.armLocked()

	slog.Info("flow step started",
		"flow_id", f.def.ID,
		"step_index", i,
		"session_id", id,
		"type", step.Type,
		"duration", step.DurationSeconds,
	)

	kind := EventFlowAdvanced
	if i == 0 {
		kind = EventSessionStarted
	}
	e.emitLocked(Event{
		Kind:        kind,
		SessionID:   id,
		SessionType: step.Type,
		FlowID:      f.def.ID,
		StepIndex:   i,
	})

	e.evaluatePromptLocked(id, f.def.ID, now)
}

// advanceFlowLocked moves the run forward after a step's countdown
// completed. The final step ends the run and emits the flow completion
// summary; earlier steps either chain immediately or hold for Advance.
func (e *Engine) advanceFlowLocked() {
	f := e.flow
	f.completedSteps++

	next := f.stepIndex + 1
	if next < len(f.def.Steps) {
		if f.def.AutoAdvance {
			e.startStepLocked(next)
			return
		}

		f.stepIndex = next
		f.waiting = true

		// Preview the pending step so status readers see what comes
		// next; no session ID is issued until Advance.
		step := f.def.Steps[next]
		e.active.id = ""
		e.active.sessionType = step.Type
		e.active.remaining = step.DurationSeconds
		e.active.total = step.DurationSeconds
		e.active.status = session.StatusIdle
		e.active.stepIndex = next

		slog.Info("flow waiting",
			"flow_id", f.def.ID,
			"step_index", next,
			"type", step.Type,
		)
		return
	}

	completion := &session.FlowCompletionEvent{
		FlowID:         f.def.ID,
		TotalSteps:     len(f.def.Steps),
		CompletedSteps: f.completedSteps,
	}

	slog.Info("flow completed",
		"flow_id", f.def.ID,
		"total_steps", completion.TotalSteps,
		"completed_steps", completion.CompletedSteps,
	)

	e.emitLocked(Event{
		Kind:           EventFlowCompleted,
		SessionID:      e.active.id,
		FlowID:         f.def.ID,
		StepIndex:      f.stepIndex,
		FlowCompletion: completion,
	})

	e.flow = nil
	e.active.status = session.StatusIdle
	e.active.stepIndex = session.NoStep
}
