package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mue864/solitude-sub000/internal/session"
	"github.com/mue864/solitude-sub000/internal/store"
)

// seedStreakDays appends one completed focus session per given day so
// the replayed streak is deterministic.
func seedStreakDays(t *testing.T, dbPath string, days ...time.Time) {
	t.Helper()

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for i, day := range days {
		rec := session.Record{
			ID:              fmt.Sprintf("rec-%d", i+1),
			SessionID:       fmt.Sprintf("session-%d", i+1),
			Type:            session.TypeFocus,
			StepIndex:       session.NoStep,
			StartedAt:       day.Add(-25 * time.Minute),
			DurationSeconds: 1500,
			Completed:       true,
			FocusQuality:    session.QualityUnset,
			RecordedAt:      day,
			Seq:             int64(i + 1),
		}
		require.NoError(t, st.AppendRecord(ctx, rec))
	}
}

// saveStoredStreak writes a streak row directly, bypassing the engine.
func saveStoredStreak(t *testing.T, dbPath string, state session.StreakState) {
	t.Helper()

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.SaveStreak(context.Background(), state))
}

func TestStreakMissingDatabaseFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewStreakCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{}) // Missing --db flag

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestStreakNonExistentDatabase(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewStreakCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", "/nonexistent/path/test.db"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestStreakEmptyDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	st.Close()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewStreakCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	// No stored row and no history agree on the zero state
	err = cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Streak: 0 day(s)")
}

func TestStreakHealthy(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	seedStreakDays(t, dbPath,
		time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	saveStoredStreak(t, dbPath, session.StreakState{CurrentStreak: 2, LastCreditedDay: "2025-06-02"})

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewStreakCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Streak: 2 day(s), last credited 2025-06-02")
	assert.NotContains(t, buf.String(), "drift")
}

func TestStreakDriftDetected(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	seedStreakDays(t, dbPath,
		time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	saveStoredStreak(t, dbPath, session.StreakState{CurrentStreak: 5, LastCreditedDay: "2025-01-01"})

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewStreakCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "streak drift detected")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ Streak drift detected")
	assert.Contains(t, output, "stored:   5 day(s), last credited 2025-01-01")
	assert.Contains(t, output, "computed: 2 day(s), last credited 2025-06-02")
	assert.Contains(t, output, "Run with --rebuild to repair.")
}

func TestStreakDriftWhenNeverSaved(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	seedStreakDays(t, dbPath, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewStreakCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	// History says 1 day but no row was ever persisted
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "computed: 1 day(s), last credited 2025-06-02")
}

func TestStreakRebuild(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	seedStreakDays(t, dbPath,
		time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	saveStoredStreak(t, dbPath, session.StreakState{CurrentStreak: 5, LastCreditedDay: "2025-01-01"})

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewStreakCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--rebuild"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Streak rebuilt: 2 day(s), last credited 2025-06-02")

	// The repaired state is persisted
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	stored, found, err := st.LoadStreak(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, session.StreakState{CurrentStreak: 2, LastCreditedDay: "2025-06-02"}, stored)
}

func TestStreakDriftJSON(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	seedStreakDays(t, dbPath,
		time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	saveStoredStreak(t, dbPath, session.StreakState{CurrentStreak: 5, LastCreditedDay: "2025-01-01"})

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewStreakCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_STREAK_DRIFT", resp.Error.Code)

	dataMap, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, dataMap["drift"])

	storedMap, ok := dataMap["stored"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(5), storedMap["current_streak"])

	computedMap, ok := dataMap["computed"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), computedMap["current_streak"])
	assert.Equal(t, "2025-06-02", computedMap["last_credited_day"])
}

func TestStreakHealthyJSON(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	st.Close()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewStreakCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	err = cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	dataMap, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, dataMap["drift"])
}

func TestStreakVerbose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	seedStreakDays(t, dbPath, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	saveStoredStreak(t, dbPath, session.StreakState{CurrentStreak: 1, LastCreditedDay: "2025-06-02"})

	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true}
	cmd := NewStreakCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"--db", dbPath})

	err := cmd.Execute()
	require.NoError(t, err)

	errOutput := errBuf.String()
	assert.Contains(t, errOutput, "Stored streak: 1 day(s) (row present: true)")
	assert.Contains(t, errOutput, "Computed streak: 1 day(s)")
}

func TestStreakHelpText(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewStreakCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "--rebuild")
	assert.Contains(t, output, "drift")
}

func TestFormatStreakLine(t *testing.T) {
	assert.Equal(t, "0 day(s)", formatStreakLine(session.StreakState{}))
	assert.Equal(t, "3 day(s), last credited 2025-06-02",
		formatStreakLine(session.StreakState{CurrentStreak: 3, LastCreditedDay: "2025-06-02"}))
}
