// ABOUTME: CLI command to search the vector store directly
// ABOUTME: Supports keyword counting and embedding similarity modes
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/harper/libraryqa/internal/models"
	"github.com/spf13/cobra"
)

const (
	modeKeyword    = "keyword"
	modeSimilarity = "similarity"
)

var (
	searchLimit int
	searchMode  string
)

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored passages",
		Long: `Search stored passages by keyword or semantic similarity.

Keyword mode ranks passages by how often the term occurs. Similarity
mode embeds the query and ranks passages by cosine similarity.

Examples:
  libqa search "renewal"
  libqa search --mode similarity --limit 10 "late return penalty"
  libqa search --format json "turnitin"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum results to return")
	cmd.Flags().StringVar(&searchMode, "mode", modeKeyword, "Search mode (keyword, similarity)")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}
	if !containsString([]string{modeKeyword, modeSimilarity}, searchMode) {
		return fmt.Errorf("unknown search mode %q", searchMode)
	}

	query := strings.Join(args, " ")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var results []models.ScoredChunk
	if searchMode == modeSimilarity {
		vectors, err := a.Embedder.Embed(cmd.Context(), []string{query})
		if err != nil {
			return fmt.Errorf("embedding query: %w", err)
		}
		results = a.Store.SimilaritySearch(vectors[0], searchLimit)
	} else {
		results = a.Store.SearchByKeyword(query, searchLimit)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		if jsonOutput() {
			return printJSON(out, []models.ScoredChunk{})
		}
		if !quiet {
			fmt.Fprintf(out, "No passages found for query: %s\n", query)
		}
		return nil
	}

	if jsonOutput() {
		return printJSON(out, results)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SCORE\tSOURCE\tSECTION\tTYPE\tPREVIEW\n")
	fmt.Fprintf(w, "-----\t------\t-------\t----\t-------\n")
	for _, r := range results {
		score := fmt.Sprintf("%d", r.KeywordScore)
		if searchMode == modeSimilarity {
			score = fmt.Sprintf("%.3f", r.Similarity)
		}
		section := r.Metadata.Section
		if section == "" {
			section = "(none)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			score,
			truncate(r.Metadata.Source, 25),
			truncate(section, 25),
			r.Metadata.ContentType,
			truncate(oneLine(r.Text), 60))
	}
	w.Flush()

	if !quiet {
		fmt.Fprintf(out, "\nFound %d result(s)\n", len(results))
	}
	return nil
}
