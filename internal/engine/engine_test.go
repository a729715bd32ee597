package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mue864/solitude-sub000/internal/session"
)

// stubClock is a test-only clock frozen until the test moves it. Its
// tickers never fire; tests drive the countdown with explicit Tick
// calls.
type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock(now time.Time) *stubClock {
	return &stubClock{now: now}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *stubClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *stubClock) NewTicker(time.Duration) Ticker {
	return inertTicker{}
}

type inertTicker struct{}

func (inertTicker) C() <-chan time.Time { return nil }
func (inertTicker) Stop()               {}

// stubIDGen issues "prefix-1", "prefix-2", ... session IDs.
type stubIDGen struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func newStubIDGen(prefix string) *stubIDGen {
	return &stubIDGen{prefix: prefix}
}

func (g *stubIDGen) NewSessionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// captureSink records every history call in memory.
type captureSink struct {
	mu        sync.Mutex
	records   []session.Record
	streaks   []session.StreakState
	appendErr error
	saveErr   error
}

func (s *captureSink) AppendRecord(_ context.Context, rec session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *captureSink) SaveStreak(_ context.Context, st session.StreakState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.streaks = append(s.streaks, st)
	return nil
}

func (s *captureSink) recorded() []session.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]session.Record(nil), s.records...)
}

var testStart = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

// testCatalog keeps countdowns short so tests tick to completion in a
// handful of calls.
func testCatalog() session.Catalog {
	focus := session.Spec{Type: "focus", DurationSeconds: 3}
	rest := session.Spec{Type: "shortBreak", DurationSeconds: 2}

	cat := session.NewCatalog()
	cat.Specs["focus"] = focus
	cat.Specs["shortBreak"] = rest
	cat.Flows["duo"] = session.FlowDefinition{
		ID:          "duo",
		Name:        "Duo",
		AutoAdvance: true,
		Steps:       []session.Spec{focus, rest},
	}
	cat.Flows["manual"] = session.FlowDefinition{
		ID:          "manual",
		Name:        "Manual Duo",
		AutoAdvance: false,
		Steps:       []session.Spec{focus, rest},
	}
	return cat
}

func newTestEngine(t *testing.T) (*Engine, *stubClock, *captureSink) {
	t.Helper()

	clock := newStubClock(testStart)
	sink := &captureSink{}
	e := New(testCatalog(),
		WithClock(clock),
		WithIDGenerator(newStubIDGen("t")),
		WithHistory(sink),
	)
	t.Cleanup(e.Close)
	return e, clock, sink
}

// kinds flattens the queue for order assertions.
func drainKinds(e *Engine) []EventKind {
	events := e.Events().Drain()
	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func TestEngine_New_StartsIdle(t *testing.T) {
	e, _, _ := newTestEngine(t)

	snap := e.Snapshot()
	assert.Equal(t, session.StatusIdle, snap.Status)
	assert.Empty(t, snap.SessionID)
	assert.Nil(t, snap.Flow)
	assert.Zero(t, e.Streak().CurrentStreak)
}

func TestEngine_Start_BeginsCountdown(t *testing.T) {
	e, _, _ := newTestEngine(t)

	require.NoError(t, e.Start("focus"))

	snap := e.Snapshot()
	assert.Equal(t, "t-1", snap.SessionID)
	assert.Equal(t, "focus", snap.Type)
	assert.Equal(t, 3, snap.RemainingSeconds)
	assert.Equal(t, session.StatusRunning, snap.Status)
	assert.Nil(t, snap.Flow)

	kinds := drainKinds(e)
	assert.Contains(t, kinds, EventSessionStarted)
}

func TestEngine_Start_UnknownType(t *testing.T) {
	e, _, sink := newTestEngine(t)

	err := e.Start("deepWork")
	require.Error(t, err)
	assert.True(t, IsUnknownSessionType(err))
	assert.EqualError(t, err, `session type "deepWork" not found in catalog`)

	// State untouched.
	assert.Equal(t, session.StatusIdle, e.Snapshot().Status)
	assert.Empty(t, sink.recorded())
}

func TestEngine_Start_WhileRunningSameType_NoOp(t *testing.T) {
	e, _, _ := newTestEngine(t)

	require.NoError(t, e.Start("focus"))
	e.Tick()
	e.Events().Drain()

	require.NoError(t, e.Start("focus"))

	snap := e.Snapshot()
	assert.Equal(t, "t-1", snap.SessionID, "no new session issued")
	assert.Equal(t, 2, snap.RemainingSeconds, "countdown not reset")
	assert.Empty(t, e.Events().Drain(), "no events from the no-op")
}

func TestEngine_Start_WhilePausedSameType_Resumes(t *testing.T) {
	e, _, _ := newTestEngine(t)

	require.NoError(t, e.Start("focus"))
	e.Tick()
	require.NoError(t, e.Pause())

	require.NoError(t, e.Start("focus"))

	snap := e.Snapshot()
	assert.Equal(t, "t-1", snap.SessionID)
	assert.Equal(t, session.StatusRunning, snap.Status)
	assert.Equal(t, 2, snap.RemainingSeconds, "preserved remaining, not reset")
}

func TestEngine_Start_DifferentType_AbandonsCurrent(t *testing.T) {
	e, _, sink := newTestEngine(t)

	require.NoError(t, e.Start("focus"))
	e.Tick()
	e.Tick()

	require.NoError(t, e.Start("shortBreak"))

	snap := e.Snapshot()
	assert.Equal(t, "t-2", snap.SessionID)
	assert.Equal(t, "shortBreak", snap.Type)
	assert.Equal(t, 2, snap.RemainingSeconds)

	recs := sink.recorded()
	require.Len(t, recs, 1)
	assert.Equal(t, "t-1", recs[0].SessionID)
	assert.False(t, recs[0].Completed)
	assert.Equal(t, 2, recs[0].DurationSeconds, "elapsed seconds, not planned")

	kinds := drainKinds(e)
	assert.Contains(t, kinds, EventSessionAbandoned)
}

func TestEngine_PauseResume_PreservesRemaining(t *testing.T) {
	e, clock, _ := newTestEngine(t)

	require.NoError(t, e.Start("focus"))
	e.Tick()
	require.NoError(t, e.Pause())

	// Wall time passing while paused changes nothing.
	clock.advance(time.Hour)
	snap := e.Snapshot()
	assert.Equal(t, session.StatusPaused, snap.Status)
	assert.Equal(t, 2, snap.RemainingSeconds)

	require.NoError(t, e.Resume())
	snap = e.Snapshot()
	assert.Equal(t, session.StatusRunning, snap.Status)
	assert.Equal(t, 2, snap.RemainingSeconds)
}

func TestEngine_Pause_WhileIdle(t *testing.T) {
	e, _, _ := newTestEngine(t)

	err := e.Pause()
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
	assert.EqualError(t, err, "cannot pause while idle")
}

func TestEngine_Resume_WhileRunning(t *testing.T) {
	e, _, _ := newTestEngine(t)

	require.NoError(t, e.Start("focus"))
	err := e.Resume()
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
}

func TestEngine_Abandon_RecordsIncomplete(t *testing.T) {
	e, _, sink := newTestEngine(t)

	require.NoError(t, e.Start("focus"))
	e.Tick()
	require.NoError(t, e.Abandon())

	snap := e.Snapshot()
	assert.Equal(t, session.StatusIdle, snap.Status)
	assert.Zero(t, snap.RemainingSeconds)

	recs := sink.recorded()
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Completed)
	assert.Equal(t, 1, recs[0].DurationSeconds)
	assert.NotEmpty(t, recs[0].ID)
	assert.Equal(t, session.NoStep, recs[0].StepIndex)

	assert.Zero(t, e.Streak().CurrentStreak, "abandoned work never credits")
}

func TestEngine_Abandon_WhilePaused(t *testing.T) {
	e, _, sink := newTestEngine(t)

	require.NoError(t, e.Start("focus"))
	e.Tick()
	require.NoError(t, e.Pause())
	require.NoError(t, e.Abandon())

	recs := sink.recorded()
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].DurationSeconds)
}

func TestEngine_Abandon_WhileIdle(t *testing.T) {
	e, _, _ := newTestEngine(t)

	err := e.Abandon()
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
}

func TestEngine_CompleteSession_CreditsStreak(t *testing.T) {
	e, _, sink := newTestEngine(t)

	require.NoError(t, e.Start("focus"))
	e.Tick()
	e.Tick()
	e.Tick()

	snap := e.Snapshot()
	assert.Equal(t, session.StatusIdle, snap.Status)
	assert.Zero(t, snap.RemainingSeconds)

	recs := sink.recorded()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Completed)
	assert.Equal(t, 3, recs[0].DurationSeconds, "planned duration on completion")

	st := e.Streak()
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, "2025-06-02", st.LastCreditedDay)

	kinds := drainKinds(e)
	assert.Contains(t, kinds, EventSessionCompleted)
	assert.Contains(t, kinds, EventStreakUpdated)
	assert.Contains(t, kinds, EventRecordAppended)
}

func TestEngine_StreakAcrossDays(t *testing.T) {
	e, clock, _ := newTestEngine(t)

	complete := func() {
		require.NoError(t, e.Start("focus"))
		e.Tick()
		e.Tick()
		e.Tick()
	}

	complete()
	assert.Equal(t, 1, e.Streak().CurrentStreak)

	// Second completion the same day is idempotent.
	complete()
	assert.Equal(t, 1, e.Streak().CurrentStreak)

	// Next day increments.
	clock.set(testStart.AddDate(0, 0, 1))
	complete()
	assert.Equal(t, 2, e.Streak().CurrentStreak)

	// Skipping a day resets to 1.
	clock.set(testStart.AddDate(0, 0, 3))
	complete()
	st := e.Streak()
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, "2025-06-05", st.LastCreditedDay)
}

func TestEngine_CompletedDurationIgnoresPauses(t *testing.T) {
	e, clock, sink := newTestEngine(t)

	require.NoError(t, e.Start("focus"))
	e.Tick()
	require.NoError(t, e.Pause())
	clock.advance(30 * time.Minute)
	require.NoError(t, e.Resume())
	e.Tick()
	e.Tick()

	recs := sink.recorded()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Completed)
	assert.Equal(t, 3, recs[0].DurationSeconds)
}

func TestEngine_Snapshot_IsACopy(t *testing.T) {
	e, _, _ := newTestEngine(t)

	require.NoError(t, e.StartFlow("duo"))
	snap := e.Snapshot()
	require.NotNil(t, snap.Flow)

	snap.Flow.StepIndex = 99
	snap.RemainingSeconds = -5

	fresh := e.Snapshot()
	assert.Equal(t, 0, fresh.Flow.StepIndex)
	assert.Equal(t, 3, fresh.RemainingSeconds)
}

func TestEngine_CatalogClonedAtConstruction(t *testing.T) {
	cat := testCatalog()
	e := New(cat,
		WithClock(newStubClock(testStart)),
		WithIDGenerator(newStubIDGen("t")),
	)
	t.Cleanup(e.Close)

	// Replacing the caller's entry after construction has no effect.
	cat.Specs["focus"] = session.Spec{Type: "focus", DurationSeconds: 999}

	require.NoError(t, e.Start("focus"))
	assert.Equal(t, 3, e.Snapshot().RemainingSeconds)
}

func TestEngine_SeqSeeding(t *testing.T) {
	clock := newStubClock(testStart)
	e := New(testCatalog(),
		WithClock(clock),
		WithIDGenerator(newStubIDGen("t")),
		WithInitialSeq(100),
	)
	t.Cleanup(e.Close)

	require.NoError(t, e.Start("focus"))
	events := e.Events().Drain()
	require.NotEmpty(t, events)
	assert.Greater(t, events[0].Seq, int64(100))
}

func TestEngine_InitialStreakSeeding(t *testing.T) {
	seed := session.StreakState{CurrentStreak: 4, LastCreditedDay: "2025-06-01"}
	e := New(testCatalog(),
		WithClock(newStubClock(testStart)),
		WithIDGenerator(newStubIDGen("t")),
		WithInitialStreak(seed),
	)
	t.Cleanup(e.Close)

	assert.Equal(t, seed, e.Streak())

	// A completion the next local day extends the seeded run.
	require.NoError(t, e.Start("focus"))
	e.Tick()
	e.Tick()
	e.Tick()
	assert.Equal(t, 5, e.Streak().CurrentStreak)
}

func TestEngine_Close_ClosesEventStream(t *testing.T) {
	e := New(testCatalog(),
		WithClock(newStubClock(testStart)),
		WithIDGenerator(newStubIDGen("t")),
	)

	e.Close()
	assert.True(t, e.Events().Closed())
}
