package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mue864/solitude-sub000/internal/engine"
	"github.com/mue864/solitude-sub000/internal/session"
	"github.com/mue864/solitude-sub000/internal/store"
)

// RecordOptions holds record command configuration
type RecordOptions struct {
	*RootOptions
	Database    string
	SessionType string
	Duration    int
	Completed   bool
	Quality     int
	SessionID   string
	Started     string
	Recorded    string
}

// RecordResult is the record command's output payload: the stored
// record with its engine-assigned ID and sequence, and the streak
// after any credit.
type RecordResult struct {
	Record session.Record      `json:"record"`
	Streak session.StreakState `json:"streak"`
}

// NewRecordCommand creates the record command
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Append a session record to history",
		Long: `Append an externally built session record to the history log.

Records built here go through the same validation, sequencing, and
streak crediting as records written by a foreground run. Use this to
backfill sessions from another device or to log a rated focus session
after a prompt.

Each appended record is assigned the next sequence number and a
content-hash ID derived from its fields.

Exit codes:
  0 - Record appended
  1 - Record rejected (validation failure)
  2 - Command error (bad flags, database unreachable)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the history database (required)")
	cmd.Flags().StringVar(&opts.SessionType, "type", "", "session type to record (required)")
	cmd.Flags().IntVar(&opts.Duration, "duration", 0, "duration in seconds (defaults to the built-in duration for the type)")
	cmd.Flags().BoolVar(&opts.Completed, "completed", true, "whether the session ran to completion")
	cmd.Flags().IntVar(&opts.Quality, "quality", session.QualityUnset, "focus quality rating 0-10")
	cmd.Flags().StringVar(&opts.SessionID, "session-id", "", "session identifier (defaults to a new UUIDv7)")
	cmd.Flags().StringVar(&opts.Started, "started", "", "session start time, RFC3339 (defaults to recorded time minus duration)")
	cmd.Flags().StringVar(&opts.Recorded, "recorded", "", "recording time, RFC3339 (defaults to now)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runRecord(opts *RecordOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	rec, err := buildRecord(opts)
	if err != nil {
		_ = formatter.Error("E_BAD_FLAG", "Invalid record flags", err.Error())
		return NewExitError(ExitCommandError, err.Error())
	}

	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error("E_DB_OPEN", "Failed to open database", err.Error())
		return NewExitError(ExitCommandError, fmt.Sprintf("failed to open database: %v", err))
	}
	defer func() { _ = st.Close() }()

	streak, _, err := st.LoadStreak(ctx)
	if err != nil {
		_ = formatter.Error("E_DB_READ", "Failed to load streak state", err.Error())
		return NewExitError(ExitCommandError, fmt.Sprintf("failed to load streak state: %v", err))
	}
	maxSeq, err := st.MaxSeq(ctx)
	if err != nil {
		_ = formatter.Error("E_DB_READ", "Failed to read history sequence", err.Error())
		return NewExitError(ExitCommandError, fmt.Sprintf("failed to read history sequence: %v", err))
	}

	eng := engine.New(session.Builtin(),
		engine.WithHistory(st),
		engine.WithInitialStreak(streak),
		engine.WithInitialSeq(maxSeq),
	)
	defer eng.Close()

	newStreak, err := eng.AppendRecord(rec)
	if err != nil {
		if engine.IsInvalidRecord(err) {
			_ = formatter.Error("E_RECORD_INVALID", "Record rejected", err.Error())
			return NewExitError(ExitFailure, err.Error())
		}
		_ = formatter.Error("E_RECORD_FAILED", "Failed to append record", err.Error())
		return NewExitError(ExitCommandError, err.Error())
	}

	stored, ok := dequeueAppended(eng)
	if !ok {
		_ = formatter.Error("E_RECORD_FAILED", "Record was accepted but not emitted", nil)
		return NewExitError(ExitCommandError, "record was accepted but not emitted")
	}

	// The engine treats the history sink as best-effort, so confirm
	// the row landed before reporting success.
	if _, err := st.ReadRecord(ctx, stored.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = formatter.Error("E_DB_WRITE", "Record was not persisted", stored.ID)
			return NewExitError(ExitCommandError, "record was not persisted")
		}
		_ = formatter.Error("E_DB_READ", "Failed to confirm record", err.Error())
		return NewExitError(ExitCommandError, fmt.Sprintf("failed to confirm record: %v", err))
	}

	formatter.VerboseLog("Appended record %s at seq %d", stored.ID, stored.Seq)

	return outputRecord(formatter, RecordResult{Record: stored, Streak: newStreak})
}

// buildRecord assembles a record from flags. The engine assigns the
// sequence number and content-hash ID on append, so both are left
// zero here.
func buildRecord(opts *RecordOptions) (session.Record, error) {
	recorded := time.Now()
	if opts.Recorded != "" {
		t, err := time.Parse(time.RFC3339, opts.Recorded)
		if err != nil {
			return session.Record{}, fmt.Errorf("--recorded must be RFC3339, got %q", opts.Recorded)
		}
		recorded = t
	}

	duration := opts.Duration
	if duration == 0 && opts.Completed {
		spec, ok := session.Builtin().Spec(opts.SessionType)
		if !ok {
			return session.Record{}, fmt.Errorf("--duration is required for type %q", opts.SessionType)
		}
		duration = spec.DurationSeconds
	}

	started := recorded.Add(-time.Duration(duration) * time.Second)
	if opts.Started != "" {
		t, err := time.Parse(time.RFC3339, opts.Started)
		if err != nil {
			return session.Record{}, fmt.Errorf("--started must be RFC3339, got %q", opts.Started)
		}
		started = t
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = engine.UUIDv7Generator{}.NewSessionID()
	}

	return session.Record{
		SessionID:       sessionID,
		Type:            opts.SessionType,
		StepIndex:       session.NoStep,
		StartedAt:       started,
		DurationSeconds: duration,
		Completed:       opts.Completed,
		FocusQuality:    opts.Quality,
		RecordedAt:      recorded,
	}, nil
}

// dequeueAppended drains the engine queue and returns the record
// carried by the append event.
func dequeueAppended(eng *engine.Engine) (session.Record, bool) {
	for {
		ev, ok := eng.Events().TryDequeue()
		if !ok {
			return session.Record{}, false
		}
		if ev.Kind == engine.EventRecordAppended && ev.Record != nil {
			return *ev.Record, true
		}
	}
}

// outputRecord reports a stored record.
func outputRecord(formatter *OutputFormatter, result RecordResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, "✓ Record appended")
	formatRecordLine(formatter.Writer, result.Record, formatter.Verbose)
	fmt.Fprintf(formatter.Writer, "Streak: %s\n", formatStreakLine(result.Streak))
	return nil
}
