package store

import (
	"context"
	"fmt"

	"github.com/mue864/solitude-sub000/internal/session"
)

// ComputeStreak replays every completed record through the streak rule
// in logical clock order and returns the result without persisting it.
//
// The replay reads the recorded_day column rather than re-deriving
// days from the stored UTC instants, so the computation credits
// exactly the days the live engine credited. Callers use this to
// compare the canonical streak against the stored row.
func (s *Store) ComputeStreak(ctx context.Context) (session.StreakState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recorded_day
		FROM session_records
		WHERE completed = 1
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return session.StreakState{}, fmt.Errorf("compute streak: %w", err)
	}
	defer rows.Close()

	var st session.StreakState
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return session.StreakState{}, fmt.Errorf("compute streak: %w", err)
		}
		st = session.AdvanceStreak(st, day)
	}
	if err := rows.Err(); err != nil {
		return session.StreakState{}, fmt.Errorf("compute streak: %w", err)
	}

	return st, nil
}

// RebuildStreak recomputes the streak from scratch, then persists and
// returns the result. The history log is the source of truth; use this
// when streak_state is missing or suspected stale, such as after
// restoring a database from backup or importing records from another
// device.
func (s *Store) RebuildStreak(ctx context.Context) (session.StreakState, error) {
	st, err := s.ComputeStreak(ctx)
	if err != nil {
		return session.StreakState{}, fmt.Errorf("rebuild streak: %w", err)
	}

	if err := s.SaveStreak(ctx, st); err != nil {
		return session.StreakState{}, fmt.Errorf("rebuild streak: %w", err)
	}

	return st, nil
}
