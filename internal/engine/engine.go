package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mue864/solitude-sub000/internal/session"
)

// HistorySink is the persistence collaborator. The engine defines the
// shape and calls it synchronously under its own lock; durable storage
// mechanics live behind the interface (see internal/store).
//
// Sink failures are logged and processing continues: completion and
// streak updates are local deterministic operations, and retrying
// would make replay non-deterministic. In-memory state stays
// authoritative for the process lifetime.
type HistorySink interface {
	AppendRecord(ctx context.Context, rec session.Record) error
	SaveStreak(ctx context.Context, st session.StreakState) error
}

// Engine owns the active session, the flow run, the streak state, and
// the prompt gate. One instance per process, constructed explicitly
// with its collaborators and passed by handle; nothing here is global.
//
// Thread-safety model:
//   - all commands and queries are safe from any goroutine
//   - every mutation happens under mu; commands run to completion
//     without yielding mid-mutation
//   - the ticker pump re-enters only through mu with a generation
//     guard (see timer.go)
//
// INVARIANTS:
//   - remaining seconds never increase while running and never go
//     negative; zero triggers completion exactly once per session ID
//   - at most one armed ticker exists at any time
//   - streak state changes only through session.AdvanceStreak
type Engine struct {
	mu      sync.Mutex
	catalog session.Catalog
	clock   Clock
	idgen   IDGenerator
	history HistorySink
	queue   *EventQueue
	seq     atomic.Int64

	active  activeSession
	flow    *flowRun
	streak  session.StreakState
	prompts promptScheduler

	// Countdown arming state; see timer.go.
	timerGen   uint64
	tickerStop chan struct{}
}

// activeSession is the engine-private mutable state behind Snapshot.
// stepIndex is the flow step this session instance belongs to, or
// session.NoStep for a standalone session.
type activeSession struct {
	id          string
	sessionType string
	remaining   int
	total       int
	startedAt   time.Time
	status      session.Status
	stepIndex   int
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithClock replaces the system clock, for deterministic tests and the
// scenario harness.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator replaces the UUIDv7 session ID generator.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.idgen = g
	}
}

// WithHistory attaches the persistence collaborator. Without it the
// engine still tracks streak state in memory; nothing is durable.
func WithHistory(h HistorySink) EngineOption {
	return func(e *Engine) {
		e.history = h
	}
}

// WithInitialStreak seeds the streak state, typically from
// store.LoadStreak at process start.
func WithInitialStreak(st session.StreakState) EngineOption {
	return func(e *Engine) {
		e.streak = st
	}
}

// WithInitialSeq seeds the logical clock, typically from store.MaxSeq,
// so records appended after a restart continue the existing order.
func WithInitialSeq(seq int64) EngineOption {
	return func(e *Engine) {
		e.seq.Store(seq)
	}
}

// New creates an engine over the given catalog. The catalog is cloned
// at construction; replacing entries in the caller's catalog afterwards
// does not affect the engine, and a flow run additionally captures its
// definition at StartFlow.
func New(catalog session.Catalog, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog: catalog.Clone(),
		clock:   SystemClock{},
		idgen:   UUIDv7Generator{},
		queue:   newEventQueue(),
	}
	e.active.status = session.StatusIdle
	e.active.stepIndex = session.NoStep

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start begins a standalone session of the given type.
//
// Semantics follow the timer contract:
//   - unknown type: UnknownSessionTypeError, state unchanged
//   - already running the same type outside a flow: silent no-op
//     (idempotent re-start never arms a second ticker)
//   - paused on the same type outside a flow: resumes the preserved
//     countdown
//   - anything else in progress (different type, or a flow): the
//     in-progress work is recorded as abandoned, then the new session
//     begins with a fresh session ID
func (e *Engine) Start(sessionType string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	spec, ok := e.catalog.Spec(sessionType)
	if !ok {
		return &UnknownSessionTypeError{SessionType: sessionType}
	}

	if e.flow == nil && e.active.sessionType == sessionType {
		switch e.active.status {
		case session.StatusRunning:
			// Idempotent: never arm a second ticker.
			return nil
		case session.StatusPaused:
			e.resumeLocked()
			return nil
		}
	}

	e.abandonInProgressLocked()
	e.beginSessionLocked(spec)
	return nil
}

// StartFlow begins a run of the named flow. The first step starts
// immediately; entering a flow never waits in idle.
//
// An unknown flow ID fails with FlowNotFoundError before any state is
// touched. Any in-progress session or flow is recorded as abandoned
// first. A zero-step definition completes immediately with a
// FlowCompletionEvent{0,0}.
func (e *Engine) StartFlow(flowID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	def, ok := e.catalog.Flow(flowID)
	if !ok {
		return &FlowNotFoundError{FlowID: flowID}
	}

	e.abandonInProgressLocked()

	if len(def.Steps) == 0 {
		slog.Info("flow completed empty", "flow_id", flowID)
		e.emitLocked(Event{
			Kind:      EventFlowCompleted,
			FlowID:    flowID,
			StepIndex: session.NoStep,
			FlowCompletion: &session.FlowCompletionEvent{
				FlowID:         flowID,
				TotalSteps:     0,
				CompletedSteps: 0,
			},
		})
		return nil
	}

	e.flow = newFlowRun(def)
	e.startStepLocked(0)
	return nil
}

// Pause disarms the countdown and preserves the remaining seconds
// exactly. Fails with InvalidTransitionError unless running.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active.status != session.StatusRunning {
		return &InvalidTransitionError{Command: "pause", Status: e.active.status}
	}

	e.disarmLocked()
	e.active.status = session.StatusPaused

	slog.Info("session paused",
		"session_id", e.active.id,
		"type", e.active.sessionType,
		"remaining", e.active.remaining,
	)
	return nil
}

// Resume re-arms the countdown from the preserved remaining seconds.
// Fails with InvalidTransitionError unless paused.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active.status != session.StatusPaused {
		return &InvalidTransitionError{Command: "resume", Status: e.active.status}
	}

	e.resumeLocked()
	return nil
}

func (e *Engine) resumeLocked() {
	e.active.status = session.StatusRunning
	e.armLocked()

	slog.Info("session resumed",
		"session_id", e.active.id,
		"type", e.active.sessionType,
		"remaining", e.active.remaining,
	)
}

// Advance starts the next step of a flow that is holding between steps
// (AutoAdvance disabled). Fails with InvalidTransitionError when no
// flow is waiting.
func (e *Engine) Advance() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.flow == nil || !e.flow.waiting {
		return &InvalidTransitionError{Command: "advance", Status: e.active.status}
	}

	e.startStepLocked(e.flow.stepIndex)
	return nil
}

// Abandon ends the in-progress session or flow. A live session is
// recorded with Completed=false; abandoned work never affects the
// streak. Fails with InvalidTransitionError when nothing is in
// progress.
func (e *Engine) Abandon() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.inProgressLocked() {
		return &InvalidTransitionError{Command: "abandon", Status: e.active.status}
	}

	e.abandonInProgressLocked()
	return nil
}

// inProgressLocked reports whether a session or flow run is live.
func (e *Engine) inProgressLocked() bool {
	if e.active.status == session.StatusRunning || e.active.status == session.StatusPaused {
		return true
	}
	return e.flow != nil && e.flow.waiting
}

// abandonInProgressLocked cancels whatever is in progress, recording a
// live session as abandoned. Safe to call when idle.
func (e *Engine) abandonInProgressLocked() {
	live := e.active.status == session.StatusRunning || e.active.status == session.StatusPaused

	if live {
		e.disarmLocked()

		rec := e.appendRecordLocked(e.buildRecordLocked(false))

		e.emitLocked(Event{
			Kind:        EventSessionAbandoned,
			SessionID:   rec.SessionID,
			SessionType: rec.Type,
			FlowID:      rec.FlowID,
			StepIndex:   rec.StepIndex,
			Record:      &rec,
		})

		slog.Info("session abandoned",
			"session_id", rec.SessionID,
			"type", rec.Type,
			"elapsed", rec.DurationSeconds,
		)
	}

	if e.flow != nil {
		slog.Info("flow abandoned",
			"flow_id", e.flow.def.ID,
			"step_index", e.flow.stepIndex,
			"completed_steps", e.flow.completedSteps,
		)
		e.emitLocked(Event{
			Kind:      EventFlowAbandoned,
			SessionID: e.active.id,
			FlowID:    e.flow.def.ID,
			StepIndex: e.flow.stepIndex,
		})
		e.flow = nil
	}

	e.active.status = session.StatusIdle
	e.active.remaining = 0
	e.active.total = 0
	e.active.stepIndex = session.NoStep
}

// beginSessionLocked starts a fresh standalone session instance.
func (e *Engine) beginSessionLocked(spec session.Spec) {
	now := e.clock.Now()
	id := e.idgen.NewSessionID()

	e.active = activeSession{
		id:          id,
		sessionType: spec.Type,
		remaining:   spec.DurationSeconds,
		total:       spec.DurationSeconds,
		startedAt:   now,
		status:      session.StatusRunning,
		stepIndex:   session.NoStep,
	}
	e.armLocked()

	slog.Info("session started",
		"session_id", id,
		"type", spec.Type,
		"duration", spec.DurationSeconds,
	)

	e.emitLocked(Event{
		Kind:        EventSessionStarted,
		SessionID:   id,
		SessionType: spec.Type,
		StepIndex:   session.NoStep,
	})

	e.evaluatePromptLocked(id, "", now)
}

// Snapshot returns a copy of the active-session state. External
// readers only ever observe snapshots; they never see or mutate engine
// internals.
func (e *Engine) Snapshot() session.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := session.Snapshot{
		SessionID:        e.active.id,
		Type:             e.active.sessionType,
		RemainingSeconds: e.active.remaining,
		Status:           e.active.status,
	}
	if e.flow != nil {
		snap.Flow = &session.FlowContext{
			FlowID:    e.flow.def.ID,
			StepIndex: e.flow.stepIndex,
			Waiting:   e.flow.waiting,
		}
	}
	return snap
}

// Streak returns the current streak state.
func (e *Engine) Streak() session.StreakState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streak
}

// Events returns the outbound event stream. The presentation layer
// consumes it with TryDequeue/Wait; the engine never blocks on it.
func (e *Engine) Events() *EventQueue {
	return e.queue
}

// Seq returns the current logical clock value without advancing it.
func (e *Engine) Seq() int64 {
	return e.seq.Load()
}

// Close disarms any countdown and closes the event stream. The engine
// must not be used afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	e.disarmLocked()
	e.mu.Unlock()

	e.queue.Close()
}

// nextSeq advances the logical clock.
func (e *Engine) nextSeq() int64 {
	return e.seq.Add(1)
}

// emitLocked stamps and publishes an event. The queue is unbounded, so
// this never blocks inside the critical section.
func (e *Engine) emitLocked(ev Event) {
	ev.Seq = e.nextSeq()
	ev.At = e.clock.Now()
	e.queue.enqueue(ev)
}

// evaluatePromptLocked runs the engagement prompt gate for a freshly
// issued session ID.
func (e *Engine) evaluatePromptLocked(sessionID, flowID string, now time.Time) {
	if e.prompts.shouldPrompt(sessionID, flowID, now) {
		slog.Info("engagement prompt fired",
			"session_id", sessionID,
			"flow_id", flowID,
		)
		e.emitLocked(Event{
			Kind:      EventPromptFired,
			SessionID: sessionID,
			FlowID:    flowID,
			StepIndex: session.NoStep,
		})
	}
}
