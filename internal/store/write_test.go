package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mue864/solitude-sub000/internal/session"
)

func TestAppendRecord_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	rec := session.Record{
		ID:              "rec-123",
		SessionID:       "sess-abc",
		Type:            "focus",
		FlowID:          "classic",
		StepIndex:       0,
		StartedAt:       time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		DurationSeconds: 1500,
		Completed:       true,
		FocusQuality:    7,
		RecordedAt:      time.Date(2025, 6, 2, 9, 25, 0, 0, time.UTC),
		Seq:             1,
	}

	err = s.AppendRecord(context.Background(), rec)
	if err != nil {
		t.Fatalf("AppendRecord() failed: %v", err)
	}

	// Verify stored correctly
	var storedID, sessionID, sessionType, flowID string
	var stepIndex, duration, completed, quality int
	var seq int64
	err = s.db.QueryRow(`
		SELECT id, session_id, session_type, flow_id, step_index,
		       duration_seconds, completed, focus_quality, seq
		FROM session_records
		WHERE id = ?
	`, rec.ID).Scan(&storedID, &sessionID, &sessionType, &flowID, &stepIndex,
		&duration, &completed, &quality, &seq)

	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	if storedID != rec.ID {
		t.Errorf("id = %q, want %q", storedID, rec.ID)
	}
	if sessionID != rec.SessionID {
		t.Errorf("session_id = %q, want %q", sessionID, rec.SessionID)
	}
	if sessionType != rec.Type {
		t.Errorf("session_type = %q, want %q", sessionType, rec.Type)
	}
	if flowID != rec.FlowID {
		t.Errorf("flow_id = %q, want %q", flowID, rec.FlowID)
	}
	if stepIndex != rec.StepIndex {
		t.Errorf("step_index = %d, want %d", stepIndex, rec.StepIndex)
	}
	if duration != rec.DurationSeconds {
		t.Errorf("duration_seconds = %d, want %d", duration, rec.DurationSeconds)
	}
	if completed != 1 {
		t.Errorf("completed = %d, want 1", completed)
	}
	if quality != rec.FocusQuality {
		t.Errorf("focus_quality = %d, want %d", quality, rec.FocusQuality)
	}
	if seq != rec.Seq {
		t.Errorf("seq = %d, want %d", seq, rec.Seq)
	}
}

func TestAppendRecord_TimestampsAreFixedWidthUTC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// A zoned instant must land in the column as its UTC rendering
	zone := time.FixedZone("UTC+2", 2*60*60)
	rec := createTestRecord("rec-123", 1)
	rec.StartedAt = time.Date(2025, 6, 2, 11, 0, 0, 0, zone)
	rec.RecordedAt = time.Date(2025, 6, 2, 11, 25, 0, 500, zone)

	if err := s.AppendRecord(context.Background(), rec); err != nil {
		t.Fatalf("AppendRecord() failed: %v", err)
	}

	var startedAt, recordedAt string
	err = s.db.QueryRow(
		"SELECT started_at, recorded_at FROM session_records WHERE id = ?", rec.ID,
	).Scan(&startedAt, &recordedAt)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	if startedAt != "2025-06-02T09:00:00.000000000Z" {
		t.Errorf("started_at = %q, want %q", startedAt, "2025-06-02T09:00:00.000000000Z")
	}
	if recordedAt != "2025-06-02T09:25:00.000000500Z" {
		t.Errorf("recorded_at = %q, want %q", recordedAt, "2025-06-02T09:25:00.000000500Z")
	}
}

func TestAppendRecord_CapturesLocalDay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// 00:30 on June 3rd in UTC+2 is still June 2nd in UTC. The stored
	// recorded_day must be the recorder's day, not the UTC one.
	zone := time.FixedZone("UTC+2", 2*60*60)
	rec := createTestRecord("rec-123", 1)
	rec.RecordedAt = time.Date(2025, 6, 3, 0, 30, 0, 0, zone)

	if err := s.AppendRecord(context.Background(), rec); err != nil {
		t.Fatalf("AppendRecord() failed: %v", err)
	}

	var day, recordedAt string
	err = s.db.QueryRow(
		"SELECT recorded_day, recorded_at FROM session_records WHERE id = ?", rec.ID,
	).Scan(&day, &recordedAt)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	if day != "2025-06-03" {
		t.Errorf("recorded_day = %q, want %q", day, "2025-06-03")
	}
	if recordedAt != "2025-06-02T22:30:00.000000000Z" {
		t.Errorf("recorded_at = %q, want %q", recordedAt, "2025-06-02T22:30:00.000000000Z")
	}
}

func TestAppendRecord_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	rec := createTestRecord("rec-123", 1)

	// Write twice - should not error
	err = s.AppendRecord(context.Background(), rec)
	if err != nil {
		t.Fatalf("first AppendRecord() failed: %v", err)
	}

	err = s.AppendRecord(context.Background(), rec)
	if err != nil {
		t.Fatalf("second AppendRecord() failed: %v", err)
	}

	// Verify only one row exists
	var count int
	s.db.QueryRow("SELECT COUNT(*) FROM session_records WHERE id = ?", rec.ID).Scan(&count)
	if count != 1 {
		t.Errorf("count = %d, want 1 (idempotent write)", count)
	}
}

func TestAppendRecord_ReplayKeepsFirstWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	rec := createTestRecord("rec-123", 1)
	if err := s.AppendRecord(context.Background(), rec); err != nil {
		t.Fatalf("first AppendRecord() failed: %v", err)
	}

	// Same ID with different fields is ignored, not overwritten
	altered := rec
	altered.DurationSeconds = 9999
	if err := s.AppendRecord(context.Background(), altered); err != nil {
		t.Fatalf("replay AppendRecord() failed: %v", err)
	}

	var duration int
	s.db.QueryRow("SELECT duration_seconds FROM session_records WHERE id = ?", rec.ID).Scan(&duration)
	if duration != 1500 {
		t.Errorf("duration_seconds = %d, want 1500 (first write wins)", duration)
	}
}

func TestAppendRecord_AbandonedSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	rec := createTestRecord("rec-123", 1)
	rec.Completed = false
	rec.DurationSeconds = 340

	if err := s.AppendRecord(context.Background(), rec); err != nil {
		t.Fatalf("AppendRecord() failed: %v", err)
	}

	var completed, duration int
	err = s.db.QueryRow(
		"SELECT completed, duration_seconds FROM session_records WHERE id = ?", rec.ID,
	).Scan(&completed, &duration)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	if completed != 0 {
		t.Errorf("completed = %d, want 0", completed)
	}
	if duration != 340 {
		t.Errorf("duration_seconds = %d, want 340", duration)
	}
}

func TestAppendMultipleRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	for i := 1; i <= 5; i++ {
		rec := createTestRecord("rec-"+string(rune('0'+i)), int64(i))
		if err := s.AppendRecord(context.Background(), rec); err != nil {
			t.Fatalf("AppendRecord() %d failed: %v", i, err)
		}
	}

	var count int
	s.db.QueryRow("SELECT COUNT(*) FROM session_records").Scan(&count)
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
}

func TestSaveStreak_InsertsRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	st := session.StreakState{CurrentStreak: 3, LastCreditedDay: "2025-06-02"}
	if err := s.SaveStreak(context.Background(), st); err != nil {
		t.Fatalf("SaveStreak() failed: %v", err)
	}

	var current int
	var day string
	err = s.db.QueryRow(
		"SELECT current_streak, last_credited_day FROM streak_state WHERE id = 1",
	).Scan(&current, &day)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	if current != 3 {
		t.Errorf("current_streak = %d, want 3", current)
	}
	if day != "2025-06-02" {
		t.Errorf("last_credited_day = %q, want %q", day, "2025-06-02")
	}
}

func TestSaveStreak_UpsertsSingleRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Save twice - second write must replace, not add
	first := session.StreakState{CurrentStreak: 3, LastCreditedDay: "2025-06-02"}
	if err := s.SaveStreak(context.Background(), first); err != nil {
		t.Fatalf("first SaveStreak() failed: %v", err)
	}

	second := session.StreakState{CurrentStreak: 4, LastCreditedDay: "2025-06-03"}
	if err := s.SaveStreak(context.Background(), second); err != nil {
		t.Fatalf("second SaveStreak() failed: %v", err)
	}

	var count int
	s.db.QueryRow("SELECT COUNT(*) FROM streak_state").Scan(&count)
	if count != 1 {
		t.Errorf("count = %d, want 1 (single row table)", count)
	}

	var current int
	var day string
	s.db.QueryRow("SELECT current_streak, last_credited_day FROM streak_state").Scan(&current, &day)
	if current != 4 {
		t.Errorf("current_streak = %d, want 4", current)
	}
	if day != "2025-06-03" {
		t.Errorf("last_credited_day = %q, want %q", day, "2025-06-03")
	}
}

func TestSaveStreak_ZeroStateAllowed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// A rebuild over an empty log persists the zero state
	if err := s.SaveStreak(context.Background(), session.StreakState{}); err != nil {
		t.Fatalf("SaveStreak() failed: %v", err)
	}

	var current int
	var day string
	err = s.db.QueryRow(
		"SELECT current_streak, last_credited_day FROM streak_state WHERE id = 1",
	).Scan(&current, &day)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	if current != 0 {
		t.Errorf("current_streak = %d, want 0", current)
	}
	if day != "" {
		t.Errorf("last_credited_day = %q, want empty", day)
	}
}
