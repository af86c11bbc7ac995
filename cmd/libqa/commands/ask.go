// ABOUTME: CLI command to ask a question about library policy
// ABOUTME: Prints the grounded answer and its sources with colour highlighting
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/harper/libraryqa/internal/models"
	"github.com/spf13/cobra"
)

// NewAskCmd creates the ask command
func NewAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about library policy",
		Long: `Ask a question answered only from the ingested documents.

The most relevant passages are retrieved and passed to the configured
generator. If the generator is unavailable the passages themselves are
returned. Questions are answered from the cache when possible.

Examples:
  libqa ask "What is the fine for an overdue book?"
  libqa ask --format json "When does the library open on Saturday?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.Answerer.Ask(cmd.Context(), question)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	if jsonOutput() {
		return printJSON(cmd.OutOrStdout(), answer)
	}
	printAnswer(cmd.OutOrStdout(), answer)
	return nil
}

func printAnswer(w io.Writer, answer *models.Answer) {
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	if !answer.Found {
		fmt.Fprintln(w, yellow(answer.Text))
		return
	}

	if !quiet {
		fmt.Fprintf(w, "%s %s\n\n", boldCyan("Q:"), answer.Question)
	}
	if answer.Degraded {
		fmt.Fprintln(w, yellow(answer.Text))
	} else {
		fmt.Fprintln(w, answer.Text)
	}

	if quiet {
		return
	}
	fmt.Fprintf(w, "\n%s %s\n", boldCyan("Sources:"), strings.Join(answer.Sources, ", "))
	if verbose {
		fmt.Fprintln(w, faint(fmt.Sprintf("category=%s cached=%t", answer.Category, answer.Cached)))
	}
}
