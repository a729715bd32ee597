package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mue864/solitude-sub000/internal/session"
	"github.com/mue864/solitude-sub000/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database  string
	Type      string
	FlowID    string
	Completed string // tri-state: "", "true", "false"
	Since     string
	Limit     int
}

// HistoryStats holds summary statistics for a history listing.
type HistoryStats struct {
	Total        int `json:"total"`
	Completed    int `json:"completed"`
	Abandoned    int `json:"abandoned"`
	TotalSeconds int `json:"total_seconds"`
}

// HistoryResult holds the complete history output.
type HistoryResult struct {
	Records []session.Record `json:"records"`
	Stats   HistoryStats     `json:"stats"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the session history log",
		Long: `List history records from the database in logical clock order.

Each record is one completed or abandoned session. Filters combine with
AND; --since accepts an RFC3339 timestamp or a YYYY-MM-DD day.

Examples:
  solitude history --db ./solitude.db
  solitude history --db ./solitude.db --type focus --completed true
  solitude history --db ./solitude.db --since 2026-08-01 --limit 20
  solitude history --db ./solitude.db --flow classic --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Type, "type", "", "filter by session type")
	cmd.Flags().StringVar(&opts.FlowID, "flow", "", "filter by flow id")
	cmd.Flags().StringVar(&opts.Completed, "completed", "", "filter by completion (true|false)")
	cmd.Flags().StringVar(&opts.Since, "since", "", "keep records at or after this instant")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum records to return (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	filter, err := buildHistoryFilter(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	records, err := st.ListRecords(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list records", err)
	}

	result := HistoryResult{
		Records: records,
		Stats:   calculateHistoryStats(records),
	}

	if opts.Format == "json" {
		return outputHistoryJSON(cmd, result)
	}

	return outputHistoryText(cmd, result, opts.Verbose)
}

// buildHistoryFilter translates command flags into a store filter.
func buildHistoryFilter(opts *HistoryOptions) (store.Filter, error) {
	filter := store.Filter{
		Type:   opts.Type,
		FlowID: opts.FlowID,
		Limit:  opts.Limit,
	}

	if opts.Completed != "" {
		completed, err := strconv.ParseBool(opts.Completed)
		if err != nil {
			return store.Filter{}, fmt.Errorf("--completed must be true or false, got %q", opts.Completed)
		}
		filter.Completed = &completed
	}

	if opts.Since != "" {
		since, err := parseSince(opts.Since)
		if err != nil {
			return store.Filter{}, err
		}
		filter.Since = since
	}

	return filter, nil
}

// parseSince accepts an RFC3339 instant or a bare day key.
func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := session.ParseDay(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--since must be RFC3339 or YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

// calculateHistoryStats computes the summary over a listing.
func calculateHistoryStats(records []session.Record) HistoryStats {
	stats := HistoryStats{Total: len(records)}
	for _, rec := range records {
		if rec.Completed {
			stats.Completed++
		} else {
			stats.Abandoned++
		}
		stats.TotalSeconds += rec.DurationSeconds
	}
	return stats
}

// outputHistoryJSON outputs the history result as JSON.
func outputHistoryJSON(cmd *cobra.Command, result HistoryResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputHistoryText outputs the history result as text.
func outputHistoryText(cmd *cobra.Command, result HistoryResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if len(result.Records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return nil
	}

	fmt.Fprintf(w, "History: %d record(s)\n\n", result.Stats.Total)

	for _, rec := range result.Records {
		formatRecordLine(w, rec, verbose)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d completed, %d abandoned, %ds recorded\n",
		result.Stats.Completed, result.Stats.Abandoned, result.Stats.TotalSeconds)

	return nil
}

// formatRecordLine formats a single record for text output.
func formatRecordLine(w io.Writer, rec session.Record, verbose bool) {
	mark := "✓"
	if !rec.Completed {
		mark = "✗"
	}

	fmt.Fprintf(w, "  [%d] %s %s %ds at %s",
		rec.Seq, mark, rec.Type, rec.DurationSeconds,
		rec.RecordedAt.UTC().Format(time.RFC3339))

	if rec.FlowID != "" {
		fmt.Fprintf(w, " (flow %s, step %d)", rec.FlowID, rec.StepIndex+1)
	}
	if rec.HasQuality() {
		fmt.Fprintf(w, ", quality %d", rec.FocusQuality)
	}
	fmt.Fprintln(w)

	if verbose {
		fmt.Fprintf(w, "       id: %s  session: %s\n",
			truncateID(rec.ID), truncateID(rec.SessionID))
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
