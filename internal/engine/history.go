package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/mue864/solitude-sub000/internal/session"
)

// History is append-only: the engine writes one record per
// completed-or-abandoned session instance and never edits or deletes.
// Streak credit is derived from completed records only, through
// session.AdvanceStreak, and is idempotent within a calendar day.

// completeLocked finishes the active session after its countdown
// reached zero. It records the completion, credits the streak, and
// then hands control to the flow run, if any.
func (e *Engine) completeLocked() {
	rec := e.appendRecordLocked(e.buildRecordLocked(true))
	e.creditStreakLocked(rec)

	slog.Info("session completed",
		"session_id", rec.SessionID,
		"type", rec.Type,
		"duration", rec.DurationSeconds,
		"streak", e.streak.CurrentStreak,
	)

	e.emitLocked(Event{
		Kind:        EventSessionCompleted,
		SessionID:   rec.SessionID,
		SessionType: rec.Type,
		FlowID:      rec.FlowID,
		StepIndex:   rec.StepIndex,
		Record:      &rec,
	})

	if e.flow != nil {
		e.advanceFlowLocked()
		return
	}

	e.active.status = session.StatusIdle
}

// buildRecordLocked captures the active session as a history record.
// Completed sessions carry the full planned duration; abandoned ones
// carry the seconds actually elapsed.
func (e *Engine) buildRecordLocked(completed bool) session.Record {
	duration := e.active.total
	if !completed {
		duration = e.active.total - e.active.remaining
	}

	flowID := ""
	if e.flow != nil {
		flowID = e.flow.def.ID
	}

	return session.Record{
		SessionID:       e.active.id,
		Type:            e.active.sessionType,
		FlowID:          flowID,
		StepIndex:       e.active.stepIndex,
		StartedAt:       e.active.startedAt,
		DurationSeconds: duration,
		Completed:       completed,
		FocusQuality:    session.QualityUnset,
		RecordedAt:      e.clock.Now(),
	}
}

// appendRecordLocked finalizes a record and appends it to history. The
// logical clock stamps the order and the content hash becomes the
// record ID, so replaying the same append is a no-op at the store.
func (e *Engine) appendRecordLocked(rec session.Record) session.Record {
	rec.Seq = e.nextSeq()
	rec.ID = session.MustRecordID(rec)

	if e.history != nil {
		if err := e.history.AppendRecord(context.Background(), rec); err != nil {
			slog.Warn("history append failed",
				"record_id", rec.ID,
				"session_id", rec.SessionID,
				"error", err,
			)
		}
	}

	e.emitLocked(Event{
		Kind:        EventRecordAppended,
		SessionID:   rec.SessionID,
		SessionType: rec.Type,
		FlowID:      rec.FlowID,
		StepIndex:   rec.StepIndex,
		Record:      &rec,
	})

	return rec
}

// creditStreakLocked applies the daily streak rule for a completed
// record. Abandoned records and repeat completions on an already
// credited day leave the streak untouched.
func (e *Engine) creditStreakLocked(rec session.Record) {
	if !rec.Completed {
		return
	}

	next := session.AdvanceStreak(e.streak, rec.Day())
	if next == e.streak {
		return
	}
	e.streak = next

	if e.history != nil {
		if err := e.history.SaveStreak(context.Background(), next); err != nil {
			slog.Warn("streak save failed",
				"current_streak", next.CurrentStreak,
				"error", err,
			)
		}
	}

	e.emitLocked(Event{
		Kind:      EventStreakUpdated,
		SessionID: rec.SessionID,
		StepIndex: rec.StepIndex,
		Streak:    &next,
	})
}

// AppendRecord validates and appends an externally built record, such
// as a completion imported from another device, and returns the streak
// state after any credit. The engine assigns the sequence number and
// content hash; values supplied for them are ignored.
//
// Malformed data fails with InvalidRecordError and is not stored; the
// streak is unaffected.
func (e *Engine) AppendRecord(rec session.Record) (session.StreakState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := validateRecord(rec, e.clock.Now()); err != nil {
		slog.Warn("record rejected",
			"session_id", rec.SessionID,
			"error", err,
		)
		return e.streak, err
	}

	stored := e.appendRecordLocked(rec)
	e.creditStreakLocked(stored)
	return e.streak, nil
}

// validateRecord enforces the data-quality guard on externally built
// records. Engine-built records satisfy these rules by construction.
func validateRecord(rec session.Record, now time.Time) error {
	if rec.Type == "" {
		return &InvalidRecordError{
			Reason:    "session type is empty",
			SessionID: rec.SessionID,
		}
	}
	if rec.Completed && rec.DurationSeconds <= 0 {
		return &InvalidRecordError{
			Reason:    "completed session requires a positive duration",
			SessionID: rec.SessionID,
		}
	}
	if rec.RecordedAt.After(now) {
		return &InvalidRecordError{
			Reason:    "recorded_at is in the future",
			SessionID: rec.SessionID,
		}
	}
	if rec.FocusQuality != session.QualityUnset &&
		(rec.FocusQuality < 0 || rec.FocusQuality > session.QualityMax) {
		return &InvalidRecordError{
			Reason:    "focus quality out of range",
			SessionID: rec.SessionID,
		}
	}
	return nil
}
