// ABOUTME: CLI commands for the ingest history kept in SQLite
// ABOUTME: history lists recent runs, export writes them to YAML or markdown
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent ingestion runs",
		Long: `List recent ingestion runs, newest first.

Examples:
  libqa history
  libqa history --limit 20 --format json`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum runs to show")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(historyLimit, "limit"); err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.IngestLog.Recent(historyLimit)
	if err != nil {
		return fmt.Errorf("reading ingest history: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		return printJSON(out, runs)
	}
	if len(runs) == 0 {
		if !quiet {
			fmt.Fprintln(out, "No ingestion runs recorded")
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "STARTED\tSTATUS\tDOCS\tCHUNKS\tDIR\tRUN ID\n")
	fmt.Fprintf(w, "-------\t------\t----\t------\t---\t------\n")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			formatTime(run.StartedAt), run.Status, run.Documents, run.Chunks,
			truncate(run.Dir, 30), run.ID)
	}
	return w.Flush()
}

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	var (
		output string
		format string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ingest history",
		Long: `Export ingestion runs and their per-document outcomes.

Formats:
  yaml      Structured data (default)
  markdown  Human-readable report

Examples:
  libqa export -o history.yaml
  libqa export -f markdown -o history.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}
			if err := validatePositiveInt(limit, "limit"); err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			switch strings.ToLower(format) {
			case "yaml", "yml":
				err = a.IngestLog.ExportToYAML(output, limit)
			case "markdown", "md":
				err = a.IngestLog.ExportToMarkdown(output, limit)
			default:
				return fmt.Errorf("unknown export format %q (use yaml or markdown)", format)
			}
			if err != nil {
				return err
			}

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported ingest history to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path")
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Export format (yaml, markdown)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum runs to export")

	return cmd
}
