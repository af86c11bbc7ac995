// ABOUTME: MCP command starts the Model Context Protocol server
// ABOUTME: Lets LLM agents query the library documents over stdio
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harper/libraryqa/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs libqa as an MCP (Model Context Protocol) server so LLM agents
can ask library policy questions and retrieve passages via stdio.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  libqa mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "library": {
  #       "command": "libqa",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	handlers := mcp.NewHandlers(a.Answerer, a.Retriever, a.Store, a.Logger)
	server := mcp.NewServer(versionInfo.Version, handlers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Logger.Info("MCP server starting on stdio", "chunks", a.Store.Len())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
