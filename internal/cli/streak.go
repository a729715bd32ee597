package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mue864/solitude-sub000/internal/session"
	"github.com/mue864/solitude-sub000/internal/store"
)

// StreakOptions holds streak command configuration
type StreakOptions struct {
	*RootOptions
	Database string
	Rebuild  bool
}

// StreakResult is the streak command's output payload. Stored is nil
// when the database has never saved a streak row.
type StreakResult struct {
	Stored   *session.StreakState `json:"stored,omitempty"`
	Computed session.StreakState  `json:"computed"`
	Drift    bool                 `json:"drift"`
	Rebuilt  bool                 `json:"rebuilt,omitempty"`
}

// NewStreakCommand creates the streak command
func NewStreakCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StreakOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Show the consecutive-day streak",
		Long: `Show the consecutive-day streak and check it against history.

The stored streak row is compared with a replay of the completed
records in the history log. A mismatch means the row went stale,
usually after a restored backup or a hand-edited database.

Exit codes:
  0 - Streak matches history (or was rebuilt)
  1 - Streak drift detected
  2 - Command error (database unreadable)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStreak(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the history database (required)")
	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false, "recompute the streak from history and persist it")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runStreak(opts *StreakOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error("E_DB_OPEN", "Failed to open database", err.Error())
		return NewExitError(ExitCommandError, fmt.Sprintf("failed to open database: %v", err))
	}
	defer func() { _ = st.Close() }()

	stored, found, err := st.LoadStreak(ctx)
	if err != nil {
		_ = formatter.Error("E_DB_READ", "Failed to load streak state", err.Error())
		return NewExitError(ExitCommandError, fmt.Sprintf("failed to load streak state: %v", err))
	}

	computed, err := st.ComputeStreak(ctx)
	if err != nil {
		_ = formatter.Error("E_DB_READ", "Failed to compute streak from history", err.Error())
		return NewExitError(ExitCommandError, fmt.Sprintf("failed to compute streak: %v", err))
	}

	formatter.VerboseLog("Stored streak: %d day(s) (row present: %t)", stored.CurrentStreak, found)
	formatter.VerboseLog("Computed streak: %d day(s)", computed.CurrentStreak)

	// An absent row counts as the zero state, so a fresh database with
	// no completed sessions reports no drift.
	drift := stored != computed

	result := StreakResult{
		Computed: computed,
		Drift:    drift,
	}
	if found {
		result.Stored = &stored
	}

	if opts.Rebuild {
		rebuilt, err := st.RebuildStreak(ctx)
		if err != nil {
			_ = formatter.Error("E_DB_WRITE", "Failed to rebuild streak", err.Error())
			return NewExitError(ExitCommandError, fmt.Sprintf("failed to rebuild streak: %v", err))
		}
		result.Computed = rebuilt
		result.Rebuilt = true
		return outputStreakRebuilt(formatter, result)
	}

	if drift {
		return outputStreakDrift(formatter, result, stored, computed)
	}

	return outputStreak(formatter, result)
}

// outputStreak reports a healthy streak.
func outputStreak(formatter *OutputFormatter, result StreakResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "Streak: %s\n", formatStreakLine(result.Computed))
	return nil
}

// outputStreakRebuilt reports a rebuilt and persisted streak.
func outputStreakRebuilt(formatter *OutputFormatter, result StreakResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Streak rebuilt: %s\n", formatStreakLine(result.Computed))
	return nil
}

// outputStreakDrift reports a stored row that disagrees with history.
func outputStreakDrift(formatter *OutputFormatter, result StreakResult, stored, computed session.StreakState) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    "E_STREAK_DRIFT",
				Message: "stored streak does not match history",
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Drift is a data failure, not a command error
		return NewExitError(ExitFailure, "streak drift detected")
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Streak drift detected")
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "  stored:   %s\n", formatStreakLine(stored))
	fmt.Fprintf(formatter.Writer, "  computed: %s\n", formatStreakLine(computed))
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintln(formatter.Writer, "Run with --rebuild to repair.")

	return NewExitError(ExitFailure, "streak drift detected")
}

// formatStreakLine renders a streak state for text output.
func formatStreakLine(st session.StreakState) string {
	if st.LastCreditedDay == "" {
		return fmt.Sprintf("%d day(s)", st.CurrentStreak)
	}
	return fmt.Sprintf("%d day(s), last credited %s", st.CurrentStreak, st.LastCreditedDay)
}
