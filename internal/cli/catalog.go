package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mue864/solitude-sub000/internal/session"
)

// CatalogOptions holds flags for the catalog command.
type CatalogOptions struct {
	*RootOptions
	Output string // output file path
}

// CatalogResult holds the effective catalog in deterministic order.
type CatalogResult struct {
	Types []session.Spec           `json:"types"`
	Flows []session.FlowDefinition `json:"flows"`
}

// CatalogStats holds summary statistics.
type CatalogStats struct {
	TypeCount  int
	FlowCount  int
	TotalSteps int
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog [catalog-dir]",
		Short: "Show the effective session catalog",
		Long: `Show the effective session catalog: built-in types and flows with any
authored definitions merged on top, exactly as the engine will see them.

With no directory argument, shows the built-in catalog alone.

Examples:
  solitude catalog
  solitude catalog ./catalog
  solitude catalog ./catalog --output effective.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runCatalog(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCatalog(opts *CatalogOptions, catalogDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	effective := session.Builtin()

	if catalogDir != "" {
		loadResult, loadErrors := LoadCatalog(catalogDir, LoadModeFailFast)
		if len(loadErrors) > 0 {
			var loadErr *LoadError
			if errors.As(loadErrors[0], &loadErr) {
				return outputCatalogError(formatter, loadErr.Code, loadErr.Message)
			}
			return outputCatalogError(formatter, ErrCodeGeneric, loadErrors[0].Error())
		}

		formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, catalogDir)
		formatter.VerboseLog("Merging %d authored type(s) and %d flow(s) over built-ins",
			len(loadResult.Catalog.Specs), len(loadResult.Catalog.Flows))

		effective = effective.Merge(loadResult.Catalog)
	}

	result := buildCatalogResult(effective)
	stats := calculateCatalogStats(result)

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeCatalogToFile(result, opts.Output); err != nil {
			return outputCatalogError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCatalogSuccess(formatter, result, stats, opts.Output)
}

// buildCatalogResult flattens a catalog into sorted slices.
func buildCatalogResult(c session.Catalog) *CatalogResult {
	result := &CatalogResult{
		Types: make([]session.Spec, 0, len(c.Specs)),
		Flows: make([]session.FlowDefinition, 0, len(c.Flows)),
	}
	for _, typeName := range c.SpecTypes() {
		result.Types = append(result.Types, c.Specs[typeName])
	}
	for _, flowID := range c.FlowIDs() {
		result.Flows = append(result.Flows, c.Flows[flowID])
	}
	return result
}

// calculateCatalogStats computes summary statistics.
func calculateCatalogStats(result *CatalogResult) CatalogStats {
	stats := CatalogStats{
		TypeCount: len(result.Types),
		FlowCount: len(result.Flows),
	}
	for _, def := range result.Flows {
		stats.TotalSteps += len(def.Steps)
	}
	return stats
}

// outputCatalogSuccess outputs the effective catalog.
func outputCatalogSuccess(formatter *OutputFormatter, result *CatalogResult, stats CatalogStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Catalog: %d type(s), %d flow(s)\n\n",
		stats.TypeCount, stats.FlowCount)

	if len(result.Types) > 0 {
		fmt.Fprintln(formatter.Writer, "Session types:")
		for _, spec := range result.Types {
			fmt.Fprintf(formatter.Writer, "  %s: %ds\n", spec.Type, spec.DurationSeconds)
		}
		fmt.Fprintln(formatter.Writer)
	}

	if len(result.Flows) > 0 {
		fmt.Fprintln(formatter.Writer, "Flows:")
		for _, def := range result.Flows {
			fmt.Fprintf(formatter.Writer, "  %s: %q, %d step(s), %s\n",
				def.ID, def.Name, len(def.Steps), advanceMode(def.AutoAdvance))
			fmt.Fprintf(formatter.Writer, "    %s\n", formatStepChain(def.Steps))
		}
		fmt.Fprintln(formatter.Writer)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote catalog to %s\n", outputFile)
	}

	return nil
}

// advanceMode renders the flow's step-transition behavior.
func advanceMode(auto bool) string {
	if auto {
		return "auto-advance"
	}
	return "manual advance"
}

// formatStepChain renders flow steps as "focus → shortBreak → focus".
func formatStepChain(steps []session.Spec) string {
	names := make([]string, len(steps))
	for i, step := range steps {
		names[i] = step.Type
	}
	return strings.Join(names, " → ")
}

// outputCatalogError outputs a single catalog error.
func outputCatalogError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Catalog errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// writeCatalogToFile writes the effective catalog to a file as
// indented JSON. This is a human artifact, not a hashed one, so it
// uses encoding/json rather than the canonical form.
func writeCatalogToFile(result *CatalogResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
