package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mue864/solitude-sub000/internal/engine"
	"github.com/mue864/solitude-sub000/internal/session"
	"github.com/mue864/solitude-sub000/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	SessionType string
	FlowID      string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [catalog-dir]",
		Short: "Run a session or flow in the foreground",
		Long: `Run a focus session or flow against the system clock.

The engine loads the catalog (built-ins merged under any authored
definitions in the given directory), opens the SQLite history database
(creating it if needed), seeds the streak and logical clock from it,
and counts the session down in the foreground. Completions and
abandonments are appended to the history and credit the streak.

Ctrl-C abandons whatever is in progress before exiting, so interrupted
work still leaves an abandoned record. For flows defined with
autoAdvance: false, press Enter to start the next step when the flow
holds.

Examples:
  solitude run --db ./solitude.db
  solitude run --db ./solitude.db --type shortBreak
  solitude run --db ./solitude.db --flow classic
  solitude run --db ./solitude.db --flow deepCycle ./catalog --verbose`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runSession(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionType, "type", session.TypeFocus, "session type to start")
	cmd.Flags().StringVar(&opts.FlowID, "flow", "", "flow to start instead of a single session")

	return cmd
}

func runSession(opts *RunOptions, catalogDir string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	if cmd.Flags().Changed("type") && cmd.Flags().Changed("flow") {
		return NewExitError(ExitCommandError, "--type and --flow are mutually exclusive")
	}

	// Build the effective catalog
	catalog := session.Builtin()
	if catalogDir != "" {
		slog.Info("loading catalog", "dir", catalogDir)
		authored, err := loadRunCatalog(catalogDir)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load catalog", err)
		}
		catalog = catalog.Merge(authored)
	}
	slog.Info("catalog ready", "types", len(catalog.Specs), "flows", len(catalog.Flows))

	// Open database (create if not exists)
	slog.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	// Seed the engine from the persisted history
	streak, _, err := st.LoadStreak(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load streak state", err)
	}
	maxSeq, err := st.MaxSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history sequence", err)
	}
	slog.Info("database ready", "streak", streak.CurrentStreak, "max_seq", maxSeq)

	eng := engine.New(catalog,
		engine.WithHistory(st),
		engine.WithInitialStreak(streak),
		engine.WithInitialSeq(maxSeq),
	)
	defer eng.Close()

	// Setup signal handling: Ctrl-C abandons the in-progress work
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, abandoning", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	// Start the requested work
	if cmd.Flags().Changed("flow") {
		if err := eng.StartFlow(opts.FlowID); err != nil {
			return WrapExitError(ExitCommandError, "failed to start flow", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Flow %s started. Press Ctrl-C to abandon.\n", opts.FlowID)
	} else {
		if err := eng.Start(opts.SessionType); err != nil {
			return WrapExitError(ExitCommandError, "failed to start session", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s started. Press Ctrl-C to abandon.\n", opts.SessionType)
	}

	// Enter advances a holding flow; other input is ignored.
	go func() {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			if err := eng.Advance(); err != nil {
				slog.Debug("advance ignored", "error", err)
			}
		}
	}()

	if err := streamEvents(ctx, eng, cmd.OutOrStdout()); err != nil {
		return err
	}

	slog.Info("session runner stopped")
	return nil
}

// loadRunCatalog loads and validates an authored catalog directory.
func loadRunCatalog(dir string) (session.Catalog, error) {
	loadResult, loadErrors := LoadCatalog(dir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return session.Catalog{}, loadErrors[0]
	}
	return loadResult.Catalog, nil
}

// streamEvents consumes the engine's event queue until the started
// session or flow reaches a terminal event, printing each observable
// moment. Context cancellation abandons in-progress work first so the
// final events still land in the history.
func streamEvents(ctx context.Context, eng *engine.Engine, w io.Writer) error {
	progress := time.NewTicker(30 * time.Second)
	defer progress.Stop()

	holdNotified := false
	for {
		select {
		case <-ctx.Done():
			if err := eng.Abandon(); err != nil && !engine.IsInvalidTransition(err) {
				return WrapExitError(ExitFailure, "abandon failed", err)
			}
			flushEvents(eng, w)
			return nil

		case <-progress.C:
			snap := eng.Snapshot()
			if snap.Status == session.StatusRunning {
				slog.Debug("countdown",
					"type", snap.Type,
					"remaining_seconds", snap.RemainingSeconds,
				)
			}

		case <-eng.Events().Wait():
			if done := flushEvents(eng, w); done {
				return nil
			}

			snap := eng.Snapshot()
			waiting := snap.InFlow() && snap.Flow.Waiting
			if waiting && !holdNotified {
				fmt.Fprintln(w, "Flow holding. Press Enter to start the next step.")
			}
			holdNotified = waiting
		}
	}
}

// flushEvents drains and prints every pending event. Reports whether a
// terminal event for the run was seen.
func flushEvents(eng *engine.Engine, w io.Writer) bool {
	done := false
	for {
		ev, ok := eng.Events().TryDequeue()
		if !ok {
			return done
		}
		printEvent(w, ev)
		if isTerminalEvent(ev) {
			done = true
		}
	}
}

// isTerminalEvent reports whether the run command should exit after
// this event. A flow run ends on its flow event; a standalone session
// ends on its own completion or abandonment.
func isTerminalEvent(ev engine.Event) bool {
	switch ev.Kind {
	case engine.EventFlowCompleted, engine.EventFlowAbandoned:
		return true
	case engine.EventSessionCompleted, engine.EventSessionAbandoned:
		return ev.FlowID == ""
	default:
		return false
	}
}

// printEvent renders one engine event as a progress line.
func printEvent(w io.Writer, ev engine.Event) {
	switch ev.Kind {
	case engine.EventSessionStarted:
		if ev.FlowID != "" {
			fmt.Fprintf(w, "→ %s started (flow %s, step %d)\n", ev.SessionType, ev.FlowID, ev.StepIndex+1)
		} else {
			fmt.Fprintf(w, "→ %s started\n", ev.SessionType)
		}

	case engine.EventSessionCompleted:
		if ev.Record != nil {
			fmt.Fprintf(w, "✓ %s completed (%ds)\n", ev.SessionType, ev.Record.DurationSeconds)
		} else {
			fmt.Fprintf(w, "✓ %s completed\n", ev.SessionType)
		}

	case engine.EventSessionAbandoned:
		if ev.Record != nil {
			fmt.Fprintf(w, "✗ %s abandoned (%ds elapsed)\n", ev.SessionType, ev.Record.DurationSeconds)
		} else {
			fmt.Fprintf(w, "✗ %s abandoned\n", ev.SessionType)
		}

	case engine.EventFlowAdvanced:
		fmt.Fprintf(w, "→ flow %s advanced to step %d\n", ev.FlowID, ev.StepIndex+1)

	case engine.EventFlowCompleted:
		if ev.FlowCompletion != nil {
			fmt.Fprintf(w, "✓ flow %s completed (%d/%d steps)\n",
				ev.FlowID, ev.FlowCompletion.CompletedSteps, ev.FlowCompletion.TotalSteps)
		} else {
			fmt.Fprintf(w, "✓ flow %s completed\n", ev.FlowID)
		}

	case engine.EventFlowAbandoned:
		fmt.Fprintf(w, "✗ flow %s abandoned\n", ev.FlowID)

	case engine.EventStreakUpdated:
		if ev.Streak != nil {
			fmt.Fprintf(w, "Streak: %d day(s), last credited %s\n",
				ev.Streak.CurrentStreak, ev.Streak.LastCreditedDay)
		}

	case engine.EventPromptFired:
		fmt.Fprintln(w, "Prompt: rate your focus with 'solitude record --quality <0-10>'")

	case engine.EventRecordAppended:
		// History bookkeeping; the engine logs it, no progress line.
	}
}
