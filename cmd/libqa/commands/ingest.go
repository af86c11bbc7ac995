// ABOUTME: CLI command to ingest a directory of policy documents
// ABOUTME: Rebuilds the vector store and prints a per-document report
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/harper/libraryqa/internal/app"
	"github.com/harper/libraryqa/internal/core"
	"github.com/spf13/cobra"
)

var (
	ingestWorkers   int
	ingestIfChanged bool
	ingestCheck     bool
	ingestWatch     time.Duration
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Ingest policy documents into the vector store",
		Long: `Ingest every PDF, text and markdown file in a directory.

Documents are split into sections, classified and embedded. The new
contents replace the vector store only when at least one chunk was
produced, so a failed run never wipes a working store. The directory
defaults to LIBQA_DOCS_DIR.

Each run records a content hash per document. --check lists new,
modified and removed documents without ingesting, --if-changed skips the
rebuild when nothing changed, and --watch repeats that check on an
interval until interrupted.

Examples:
  libqa ingest
  libqa ingest ./pdfs --workers 8
  libqa ingest --check
  libqa ingest --if-changed
  libqa ingest --watch 5m ./pdfs
  libqa ingest --format json ./pdfs`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().IntVar(&ingestWorkers, "workers", 4, "Documents processed in parallel")
	cmd.Flags().BoolVar(&ingestIfChanged, "if-changed", false, "Skip the rebuild when no document changed")
	cmd.Flags().BoolVar(&ingestCheck, "check", false, "List changed documents without ingesting")
	cmd.Flags().DurationVar(&ingestWatch, "watch", 0, "Re-check for changes on this interval until interrupted")
	cmd.MarkFlagsMutuallyExclusive("check", "if-changed", "watch")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(ingestWorkers, "workers"); err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	dir := a.Config.DocumentsDir
	if len(args) == 1 {
		dir = args[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Ingestor.SetWorkers(ingestWorkers)

	switch {
	case ingestCheck:
		changes, err := a.Ingestor.Changes(ctx, dir)
		if err != nil {
			return fmt.Errorf("checking %s: %w", dir, err)
		}
		return printChanges(cmd, changes)

	case ingestWatch > 0:
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s every %s (Ctrl+C to stop)\n", dir, ingestWatch)
		}
		err := a.Ingestor.Watch(ctx, dir, ingestWatch, func(report *core.IngestReport, _ *core.ChangeSet, err error) {
			if report != nil {
				if perr := printIngestReport(cmd, report); perr != nil {
					a.Logger.Warn("failed to print ingest report", "err", perr)
				}
			}
			if err == nil {
				clearAnswerCache(a)
			}
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err

	case ingestIfChanged:
		report, changes, err := a.Ingestor.RunIfChanged(ctx, dir)
		if report == nil && err == nil {
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "No changes in %s (%d document(s) up to date)\n", dir, len(changes.Unchanged))
			}
			return nil
		}
		return finishIngest(cmd, a, dir, report, err)
	}

	report, err := a.Ingestor.Run(ctx, dir)
	return finishIngest(cmd, a, dir, report, err)
}

func finishIngest(cmd *cobra.Command, a *app.App, dir string, report *core.IngestReport, err error) error {
	if report != nil {
		if perr := printIngestReport(cmd, report); perr != nil {
			return perr
		}
	}
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}
	clearAnswerCache(a)
	return nil
}

// clearAnswerCache drops answers that may cite the previous contents
func clearAnswerCache(a *app.App) {
	if err := a.AnswerCache.Clear(); err != nil {
		a.Logger.Warn("failed to clear answer cache", "err", err)
	}
}

func printChanges(cmd *cobra.Command, changes *core.ChangeSet) error {
	out := cmd.OutOrStdout()
	if jsonOutput() {
		return printJSON(out, changes)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "DOCUMENT\tSTATUS\n")
	fmt.Fprintf(w, "--------\t------\n")
	for _, group := range []struct {
		status string
		names  []string
	}{
		{"new", changes.New},
		{"modified", changes.Modified},
		{"removed", changes.Removed},
		{"unchanged", changes.Unchanged},
	} {
		for _, name := range group.names {
			fmt.Fprintf(w, "%s\t%s\n", truncate(name, 40), group.status)
		}
	}
	w.Flush()

	if !quiet {
		if changes.HasChanges() {
			fmt.Fprintln(out, "\nRun 'libqa ingest' to rebuild the vector store")
		} else {
			fmt.Fprintln(out, "\nVector store is up to date")
		}
	}
	return nil
}

func printIngestReport(cmd *cobra.Command, report *core.IngestReport) error {
	out := cmd.OutOrStdout()
	if jsonOutput() {
		return printJSON(out, report)
	}

	if len(report.Outcomes) > 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "DOCUMENT\tPAGES\tCHUNKS\tSTATUS\n")
		fmt.Fprintf(w, "--------\t-----\t------\t------\n")
		for _, o := range report.Outcomes {
			status := "ok"
			if o.Error != "" {
				status = truncate(o.Error, 50)
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", truncate(o.Source, 40), o.Pages, o.Chunks, status)
		}
		w.Flush()
	}

	if !quiet {
		fmt.Fprintf(out, "\nIngested %d document(s), %d failed, %d chunk(s) in %s\n",
			report.Documents, report.Failed, report.Chunks, report.Duration.Round(time.Millisecond))
	}
	if report.Contaminated > 0 {
		fmt.Fprintf(out, "Warning: %d vector(s) contained NaN or infinite values and were zeroed\n", report.Contaminated)
	}
	return nil
}
