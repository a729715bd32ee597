package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mue864/solitude-sub000/internal/session"
)

// Filter narrows ListRecords. Zero values match everything.
type Filter struct {
	// Type matches session_type exactly when non-empty.
	Type string

	// FlowID matches flow_id exactly when non-empty.
	FlowID string

	// Completed matches the completion flag when non-nil.
	Completed *bool

	// Since keeps records with recorded_at at or after the instant.
	Since time.Time

	// Limit caps the result length when positive.
	Limit int
}

const recordColumns = `id, session_id, session_type, flow_id, step_index, started_at,
	duration_seconds, completed, focus_quality, recorded_at, seq`

// ListRecords returns history records matching the filter.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC
// COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListRecords(ctx context.Context, f Filter) ([]session.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM session_records`
	var args []any

	clauses := []string{}
	if f.Type != "" {
		clauses = append(clauses, "session_type = ?")
		args = append(args, f.Type)
	}
	if f.FlowID != "" {
		clauses = append(clauses, "flow_id = ?")
		args = append(args, f.FlowID)
	}
	if f.Completed != nil {
		clauses = append(clauses, "completed = ?")
		args = append(args, encodeBool(*f.Completed))
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "recorded_at >= ?")
		args = append(args, encodeTime(f.Since))
	}

	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}

	query += " ORDER BY seq ASC, id COLLATE BINARY ASC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []session.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	// Return empty slice instead of nil
	if records == nil {
		records = []session.Record{}
	}

	return records, nil
}

// ReadRecord retrieves a single record by its content-addressed ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRecord(ctx context.Context, id string) (session.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM session_records WHERE id = ?`, id)

	var (
		rec            session.Record
		startedAt      string
		recordedAt     string
		completedValue int
	)
	err := row.Scan(
		&rec.ID, &rec.SessionID, &rec.Type, &rec.FlowID, &rec.StepIndex,
		&startedAt, &rec.DurationSeconds, &completedValue, &rec.FocusQuality,
		&recordedAt, &rec.Seq,
	)
	if err != nil {
		return session.Record{}, err
	}

	return finishRecord(rec, startedAt, recordedAt, completedValue)
}

// LoadStreak returns the persisted streak state. The boolean reports
// whether a streak has ever been saved; a missing row is not an error.
func (s *Store) LoadStreak(ctx context.Context) (session.StreakState, bool, error) {
	var st session.StreakState
	err := s.db.QueryRowContext(ctx, `
		SELECT current_streak, last_credited_day
		FROM streak_state
		WHERE id = 1
	`).Scan(&st.CurrentStreak, &st.LastCreditedDay)
	if errors.Is(err, sql.ErrNoRows) {
		return session.StreakState{}, false, nil
	}
	if err != nil {
		return session.StreakState{}, false, fmt.Errorf("load streak: %w", err)
	}
	return st, true, nil
}

// MaxSeq returns the highest logical clock value in the history log,
// or zero for an empty log. The engine seeds its clock from this at
// startup so appends after a restart extend the existing order.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var maxSeq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM session_records`).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return maxSeq, nil
}

// scanRecord scans a rows cursor into a Record.
func scanRecord(rows *sql.Rows) (session.Record, error) {
	var (
		rec            session.Record
		startedAt      string
		recordedAt     string
		completedValue int
	)
	if err := rows.Scan(
		&rec.ID, &rec.SessionID, &rec.Type, &rec.FlowID, &rec.StepIndex,
		&startedAt, &rec.DurationSeconds, &completedValue, &rec.FocusQuality,
		&recordedAt, &rec.Seq,
	); err != nil {
		return session.Record{}, fmt.Errorf("scan record: %w", err)
	}

	return finishRecord(rec, startedAt, recordedAt, completedValue)
}

// finishRecord decodes the TEXT/INTEGER columns into their Go types.
func finishRecord(rec session.Record, startedAt, recordedAt string, completedValue int) (session.Record, error) {
	var err error
	rec.StartedAt, err = decodeTime(startedAt)
	if err != nil {
		return session.Record{}, fmt.Errorf("record %s started_at: %w", rec.ID, err)
	}
	rec.RecordedAt, err = decodeTime(recordedAt)
	if err != nil {
		return session.Record{}, fmt.Errorf("record %s recorded_at: %w", rec.ID, err)
	}
	rec.Completed = decodeBool(completedValue)
	return rec, nil
}
