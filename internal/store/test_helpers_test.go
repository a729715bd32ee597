package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mue864/solitude-sub000/internal/session"
)

// createTestStore creates a file-backed store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a completed focus record with minimal required fields.
func createTestRecord(id string, seq int64) session.Record {
	started := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	return session.Record{
		ID:              id,
		SessionID:       "session-" + id,
		Type:            "focus",
		StepIndex:       session.NoStep,
		StartedAt:       started,
		DurationSeconds: 1500,
		Completed:       true,
		FocusQuality:    session.QualityUnset,
		RecordedAt:      started.Add(25 * time.Minute),
		Seq:             seq,
	}
}
