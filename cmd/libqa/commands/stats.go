// ABOUTME: CLI commands reporting on and clearing the vector store
// ABOUTME: stats summarises contents, clear removes them after confirmation
package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/harper/libraryqa/internal/models"
	"github.com/harper/libraryqa/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

// statsReport is the JSON shape of the stats command
type statsReport struct {
	Store         models.Stats      `json:"store"`
	CachedAnswers int               `json:"cached_answers"`
	LastRun       *sqlite.IngestRun `json:"last_run,omitempty"`
	Database      string            `json:"database"`
}

// NewStatsCmd creates the stats command
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show vector store statistics",
		Long: `Show what the vector store holds.

Reports the number of chunks per source document and per content
category, the vector matrix shape, the answer cache size, and the most
recent ingestion run.`,
		Args: cobra.NoArgs,
		RunE: runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	report := statsReport{Store: a.Store.Stats(), Database: a.DB.Path()}
	if report.CachedAnswers, err = a.AnswerCache.Len(); err != nil {
		return fmt.Errorf("counting cached answers: %w", err)
	}
	if report.LastRun, err = a.IngestLog.LastRun(); err != nil {
		return fmt.Errorf("reading ingest history: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		return printJSON(out, report)
	}

	s := report.Store
	fmt.Fprintf(out, "Chunks:      %d\n", s.TotalChunks)
	fmt.Fprintf(out, "Vectors:     %d x %d\n", s.VectorRows, s.Dimension)
	fmt.Fprintf(out, "Loaded:      %t\n", s.Loaded)
	if s.HasNaN {
		fmt.Fprintf(out, "Warning:     vectors contain NaN values\n")
	}
	fmt.Fprintf(out, "Cached:      %d answer(s)\n", report.CachedAnswers)
	fmt.Fprintf(out, "Database:    %s\n", report.Database)
	if report.LastRun != nil {
		fmt.Fprintf(out, "Last ingest: %s (%s, %d chunks)\n",
			formatTime(report.LastRun.StartedAt), report.LastRun.Status, report.LastRun.Chunks)
	}

	if len(s.Sources) > 0 {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "SOURCE\tCHUNKS\n")
		for _, name := range sortedKeys(s.Sources) {
			fmt.Fprintf(w, "%s\t%d\n", name, s.Sources[name])
		}
		w.Flush()
	}

	if len(s.ContentTypes) > 0 {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "CATEGORY\tCHUNKS\n")
		types := make(map[string]int, len(s.ContentTypes))
		for ct, n := range s.ContentTypes {
			types[string(ct)] = n
		}
		for _, name := range sortedKeys(types) {
			fmt.Fprintf(w, "%s\t%d\n", name, types[name])
		}
		w.Flush()
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewClearCmd creates the clear command
func NewClearCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all stored passages and cached answers",
		Long: `Delete the vector store contents, its files on disk, and every
cached answer. The ingest history is kept.

Run with --confirm to proceed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !confirm {
				fmt.Fprintln(out, "This will delete ALL stored passages!")
				fmt.Fprintln(out, "Run with --confirm to proceed")
				return nil
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Store.Clear()
			if err := a.AnswerCache.Clear(); err != nil {
				return fmt.Errorf("clearing answer cache: %w", err)
			}

			if !quiet {
				fmt.Fprintln(out, "Vector store cleared")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm the clear operation")

	return cmd
}
