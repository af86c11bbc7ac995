// ABOUTME: Root command and global flags for the libqa CLI
// ABOUTME: Registers every subcommand and builds the shared services on demand
package commands

import (
	"github.com/charmbracelet/log"
	"github.com/harper/libraryqa/internal/app"
	"github.com/harper/libraryqa/internal/config"
	"github.com/harper/libraryqa/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
)

const banner = `
██╗     ██╗██████╗  ██████╗  █████╗
██║     ██║██╔══██╗██╔═══██╗██╔══██╗
██║     ██║██████╔╝██║   ██║███████║
██║     ██║██╔══██╗██║▄▄ ██║██╔══██║
███████╗██║██████╔╝╚██████╔╝██║  ██║
╚══════╝╚═╝╚═════╝  ╚══▀▀═╝ ╚═╝  ╚═╝
`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "libqa",
		Short: "Answer questions from university library policy documents",
		Long: banner + `
libqa ingests library policy documents (PDF, text, markdown), splits them
into classified sections, and answers questions using only the retrieved
passages. Answers cite the documents they came from.

Examples:
  libqa ingest ./pdfs
  libqa ask "How many books can a postgraduate student borrow?"
  libqa search --mode similarity "overdue fines"`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results and errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format (auto, json)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(NewIngestCmd())
	cmd.AddCommand(NewAskCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewClearCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewSyncCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// openApp loads .env and the environment configuration, then builds the services
func openApp(cmd *cobra.Command) (*app.App, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.Build(cfg, newLogger(cmd, cfg.LogLevel))
}

// newLogger writes to stderr so stdout stays clean for results
func newLogger(cmd *cobra.Command, level string) *log.Logger {
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	return logging.New(cmd.ErrOrStderr(), level)
}

func jsonOutput() bool {
	return outputFormat == "json"
}
