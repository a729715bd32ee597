package store

import (
	"context"
	"fmt"

	"github.com/mue864/solitude-sub000/internal/session"
)

// AppendRecord inserts a history record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - the ID is the
// content hash, so replaying the same append is silently ignored.
// Other constraint violations (e.g., NOT NULL) will still return errors.
//
// Timestamps are stored as fixed-width UTC TEXT; the record's zone is
// not preserved, only the instant. The calendar day the record counts
// toward is captured separately in recorded_day, in the record's own
// zone, because it cannot be re-derived from the UTC instant.
func (s *Store) AppendRecord(ctx context.Context, rec session.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_records
		(id, session_id, session_type, flow_id, step_index, started_at,
		 duration_seconds, completed, focus_quality, recorded_at,
		 recorded_day, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.SessionID,
		rec.Type,
		rec.FlowID,
		rec.StepIndex,
		encodeTime(rec.StartedAt),
		rec.DurationSeconds,
		encodeBool(rec.Completed),
		rec.FocusQuality,
		encodeTime(rec.RecordedAt),
		rec.Day(),
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}

	return nil
}

// SaveStreak upserts the single streak row. The table's CHECK pins
// id = 1, so this can never grow a second row.
func (s *Store) SaveStreak(ctx context.Context, st session.StreakState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO streak_state (id, current_streak, last_credited_day)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_streak = excluded.current_streak,
			last_credited_day = excluded.last_credited_day
	`,
		st.CurrentStreak,
		st.LastCreditedDay,
	)
	if err != nil {
		return fmt.Errorf("save streak: %w", err)
	}

	return nil
}
