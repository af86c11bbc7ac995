// ABOUTME: Main entry point for the library Q&A MCP server with stdio transport
// ABOUTME: Builds the services from the environment and serves all tools
package main

import (
	"os"

	"github.com/harper/libraryqa/internal/app"
	"github.com/harper/libraryqa/internal/config"
	"github.com/harper/libraryqa/internal/logging"
	"github.com/harper/libraryqa/internal/mcp"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

var version = "dev"

func main() {
	logger := logging.New(os.Stderr, "info")

	// Load .env file if it exists (for API keys)
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))

	a, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize services", "err", err)
	}
	defer a.Close()

	if !a.Store.Loaded() {
		logger.Warn("vector store is empty, run 'libqa ingest' first", "dir", cfg.VectorStorePath)
	}

	handlers := mcp.NewHandlers(a.Answerer, a.Retriever, a.Store, logger)
	server := mcp.NewServer(version, handlers)

	logger.Info("MCP server starting on stdio")
	if err := mcpserver.ServeStdio(server); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
