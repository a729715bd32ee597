package engine

import (
	"sync"
	"time"

	"github.com/mue864/solitude-sub000/internal/session"
)

// EventKind distinguishes engine event kinds on the outbound stream.
type EventKind string

const (
	// EventSessionStarted fires when a new session instance begins,
	// whether standalone or as a flow step.
	EventSessionStarted EventKind = "session_started"

	// EventSessionCompleted fires when a countdown reaches zero.
	// Exactly once per session ID.
	EventSessionCompleted EventKind = "session_completed"

	// EventSessionAbandoned fires when a live session is abandoned
	// before completing.
	EventSessionAbandoned EventKind = "session_abandoned"

	// EventFlowAdvanced fires when a flow moves to its next step.
	EventFlowAdvanced EventKind = "flow_advanced"

	// EventFlowCompleted fires when the final step of a flow completes.
	EventFlowCompleted EventKind = "flow_completed"

	// EventFlowAbandoned fires when a flow run ends before its final
	// step completed.
	EventFlowAbandoned EventKind = "flow_abandoned"

	// EventRecordAppended fires for every history record accepted,
	// completed and abandoned alike.
	EventRecordAppended EventKind = "record_appended"

	// EventStreakUpdated fires when a completed record changes the
	// streak state.
	EventStreakUpdated EventKind = "streak_updated"

	// EventPromptFired fires when the engagement prompt scheduler
	// decides a prompt should surface.
	EventPromptFired EventKind = "prompt_fired"
)

// Event is one observable engine occurrence. The presentation layer
// reacts to these (completion summary, sound, prompt display); the
// engine never blocks on consumers.
//
// Seq is the engine's logical clock value; events are delivered in seq
// order. StepIndex is session.NoStep outside flows. The pointer fields
// are populated per kind: Record on record_appended and the
// completed/abandoned kinds, Streak on streak_updated, FlowCompletion
// on flow_completed.
type Event struct {
	Kind EventKind
	Seq  int64
	At   time.Time

	SessionID   string
	SessionType string
	FlowID      string
	StepIndex   int

	Record         *session.Record
	Streak         *session.StreakState
	FlowCompletion *session.FlowCompletionEvent
}

// EventQueue is a thread-safe FIFO stream of engine events.
//
// The queue is unbounded so the engine never blocks mid-command on a
// slow consumer; a flow completion can emit several events in one
// critical section.
//
// The signal channel (buffered, size 1) coalesces availability
// notifications and enables context-aware waiting in consumers.
type EventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *EventQueue {
	return &EventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// enqueue appends an event and signals availability.
// Returns false if the queue is closed.
func (q *EventQueue) enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking send: the buffer of 1 coalesces repeated signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes and returns the front event without blocking.
// Returns (Event{}, false) when the queue is empty.
func (q *EventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the backing array does not retain the
	// event's Record/Streak pointers until reallocation.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Drain removes and returns all pending events in order.
// Returns an empty slice, not nil, when nothing is pending.
func (q *EventQueue) Drain() []Event {
	drained := []Event{}
	for {
		e, ok := q.TryDequeue()
		if !ok {
			return drained
		}
		drained = append(drained, e)
	}
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // TryDequeue until empty
//	}
//
// The channel closes when the queue closes, so waiters wake on
// shutdown.
func (q *EventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether the queue has been closed.
func (q *EventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close marks the stream finished and wakes all waiters. Events already
// queued remain dequeuable; further publishes are dropped.
func (q *EventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
