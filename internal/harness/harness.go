package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mue864/solitude-sub000/internal/compiler"
	"github.com/mue864/solitude-sub000/internal/engine"
	"github.com/mue864/solitude-sub000/internal/session"
	"github.com/mue864/solitude-sub000/internal/store"
	"github.com/mue864/solitude-sub000/internal/testutil"
)

// Harness drives one scenario through a real engine with deterministic
// collaborators.
type Harness struct {
	engine *engine.Engine
	store  *store.Store
	clock  *testutil.ManualClock
	logger *slog.Logger
}

// FinalState is the engine and store state after the last step, handed
// to expectation evaluation.
type FinalState struct {
	Snapshot session.Snapshot
	Streak   session.StreakState
	Records  int
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh in-memory database, a manual clock frozen at
// the scenario's start instant, and sequential session IDs, so the
// trace is reproducible byte for byte.
//
// Execution flow:
//  1. Build the catalog (inline block merged over the built-ins)
//  2. Wire engine, store, clock, and ID generator
//  3. Execute steps, draining events into the trace after each
//  4. Evaluate the expect block against the final state
func Run(scenario *Scenario) (*Result, error) {
	start, err := startInstant(scenario)
	if err != nil {
		return nil, err
	}

	catalog, err := BuildCatalog(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewManualClock(start)
	eng := engine.New(catalog,
		engine.WithClock(clock),
		engine.WithIDGenerator(testutil.NewSequenceIDGenerator("")),
		engine.WithHistory(st),
	)
	defer eng.Close()

	h := &Harness{
		engine: eng,
		store:  st,
		clock:  clock,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(i, step, result); err != nil {
			return nil, err
		}
		h.drainEvents(result)
	}

	if scenario.Expect != nil {
		final, err := h.finalState()
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		for _, msg := range EvaluateExpect(result, scenario.Expect, final) {
			result.AddError(msg)
		}
	}

	return result, nil
}

// startInstant resolves the scenario's clock start.
func startInstant(scenario *Scenario) (time.Time, error) {
	start := scenario.Start
	if start == "" {
		start = DefaultStart
	}
	t, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, fmt.Errorf("scenario %s: invalid start %q: %w", scenario.Name, start, err)
	}
	return t, nil
}

// BuildCatalog turns an inline catalog block into the engine catalog:
// authored entries validated, flow steps resolved, built-ins merged
// underneath. The CLI loader does the same for CUE catalogs; inline
// blocks skip CUE so scenarios stay self-contained.
func BuildCatalog(cs CatalogSpec) (session.Catalog, error) {
	authored := session.NewCatalog()
	for sessionType, spec := range cs.Session {
		authored.Specs[sessionType] = session.Spec{
			Type:            sessionType,
			DurationSeconds: spec.DurationSeconds,
		}
	}

	resolve := session.Builtin().Merge(authored)
	for flowID, fs := range cs.Flow {
		def := session.FlowDefinition{
			ID:          flowID,
			Name:        fs.Name,
			AutoAdvance: true,
		}
		if fs.AutoAdvance != nil {
			def.AutoAdvance = *fs.AutoAdvance
		}
		for _, stepType := range fs.Steps {
			spec, ok := resolve.Spec(stepType)
			if !ok {
				return session.Catalog{}, fmt.Errorf("flow %s: unknown session type %q", flowID, stepType)
			}
			def.Steps = append(def.Steps, spec)
		}
		authored.Flows[flowID] = def
	}

	if verrs := compiler.Validate(authored); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, verr := range verrs {
			msgs[i] = verr.Error()
		}
		return session.Catalog{}, fmt.Errorf("invalid catalog: %s", strings.Join(msgs, "; "))
	}

	return session.Builtin().Merge(authored), nil
}

// executeStep runs one scripted command and checks its error against
// want_error. Command-level mismatches fail the result; only broken
// scripts fail the run itself.
func (h *Harness) executeStep(i int, step Step, result *Result) error {
	var command string
	var cmdErr error

	switch {
	case step.StartSession != "":
		command = "start_session"
		cmdErr = h.engine.Start(step.StartSession)

	case step.StartFlow != "":
		command = "start_flow"
		cmdErr = h.engine.StartFlow(step.StartFlow)

	case step.Tick > 0:
		command = "tick"
		for n := 0; n < step.Tick; n++ {
			h.clock.Advance(time.Second)
			h.engine.Tick()
		}

	case step.Pause:
		command = "pause"
		cmdErr = h.engine.Pause()

	case step.Resume:
		command = "resume"
		cmdErr = h.engine.Resume()

	case step.Advance:
		command = "advance"
		cmdErr = h.engine.Advance()

	case step.Abandon:
		command = "abandon"
		cmdErr = h.engine.Abandon()

	case step.AdvanceTime != "":
		command = "advance_time"
		d, err := time.ParseDuration(step.AdvanceTime)
		if err != nil {
			return fmt.Errorf("step %d: invalid advance_time %q: %w", i, step.AdvanceTime, err)
		}
		h.clock.Advance(d)

	case step.Record != nil:
		command = "record"
		rec, err := buildRecord(step.Record)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		_, cmdErr = h.engine.AppendRecord(rec)

	default:
		return fmt.Errorf("step %d: no command", i)
	}

	h.checkStepError(i, command, step.WantError, cmdErr, result)

	h.logger.Info("step executed",
		"step", i,
		"command", command,
	)
	return nil
}

// checkStepError reconciles a command's error with the step's
// want_error declaration.
func (h *Harness) checkStepError(i int, command, want string, err error, result *Result) {
	switch {
	case want == "" && err != nil:
		result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i, command, err))
	case want != "" && err == nil:
		result.AddError(fmt.Sprintf("step %d (%s): expected %s error, command succeeded", i, command, want))
	case want != "" && !matchesErrorKind(err, want):
		result.AddError(fmt.Sprintf("step %d (%s): expected %s error, got: %v", i, command, want, err))
	}
}

// matchesErrorKind maps want_error names onto the engine's error
// predicates.
func matchesErrorKind(err error, kind string) bool {
	switch kind {
	case ErrorUnknownSessionType:
		return engine.IsUnknownSessionType(err)
	case ErrorFlowNotFound:
		return engine.IsFlowNotFound(err)
	case ErrorInvalidTransition:
		return engine.IsInvalidTransition(err)
	case ErrorInvalidRecord:
		return engine.IsInvalidRecord(err)
	default:
		return false
	}
}

// buildRecord converts a record command payload into a history record.
// Seq and ID are left zero; the engine assigns both on append.
func buildRecord(rs *RecordStep) (session.Record, error) {
	startedAt, err := time.Parse(time.RFC3339, rs.StartedAt)
	if err != nil {
		return session.Record{}, fmt.Errorf("record: invalid started_at %q: %w", rs.StartedAt, err)
	}
	recordedAt, err := time.Parse(time.RFC3339, rs.RecordedAt)
	if err != nil {
		return session.Record{}, fmt.Errorf("record: invalid recorded_at %q: %w", rs.RecordedAt, err)
	}

	stepIndex := session.NoStep
	if rs.StepIndex != nil {
		stepIndex = *rs.StepIndex
	}
	quality := session.QualityUnset
	if rs.FocusQuality != nil {
		quality = *rs.FocusQuality
	}

	return session.Record{
		SessionID:       rs.SessionID,
		Type:            rs.Type,
		FlowID:          rs.FlowID,
		StepIndex:       stepIndex,
		StartedAt:       startedAt,
		DurationSeconds: rs.DurationSeconds,
		Completed:       rs.Completed,
		FocusQuality:    quality,
		RecordedAt:      recordedAt,
	}, nil
}

// drainEvents moves every pending engine event onto the trace.
func (h *Harness) drainEvents(result *Result) {
	for _, ev := range h.engine.Events().Drain() {
		result.AddEventTrace(ev)
	}
}

// finalState captures the engine and store state after the last step.
func (h *Harness) finalState() (FinalState, error) {
	records, err := h.store.ListRecords(context.Background(), store.Filter{})
	if err != nil {
		return FinalState{}, fmt.Errorf("failed to list records: %w", err)
	}
	return FinalState{
		Snapshot: h.engine.Snapshot(),
		Streak:   h.engine.Streak(),
		Records:  len(records),
	}, nil
}
