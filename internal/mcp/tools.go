// ABOUTME: MCP tool definitions and registration for the library Q&A server
// ABOUTME: Defines JSON schemas for the ask, retrieve, keyword search and stats tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// ServerName is how the server introduces itself to MCP clients
const ServerName = "Library Q&A"

// NewServer creates an MCP server with every tool registered
func NewServer(version string, handlers *Handlers) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer(ServerName, version)
	RegisterTools(server, handlers)
	return server
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, handlers *Handlers) {
	// 1. ask_library - Answer a question from the library documents
	server.AddTool(mcp.Tool{
		Name:        "ask_library",
		Description: "Answer a question about library policy (borrowing, fines, hours, e-resources, membership, referencing, academic integrity) using only the ingested library documents. Returns the answer with its sources.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The patron's question",
				},
			},
			Required: []string{"question"},
		},
	}, handlers.AskLibrary)

	// 2. retrieve_context - Return the cited passages without generating an answer
	server.AddTool(mcp.Tool{
		Name:        "retrieve_context",
		Description: "Retrieve up to five category-filtered passages relevant to a question, formatted with their source and section.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The question to retrieve passages for",
				},
			},
			Required: []string{"question"},
		},
	}, handlers.RetrieveContext)

	// 3. search_keyword - Exact keyword search over stored passages
	server.AddTool(mcp.Tool{
		Name:        "search_keyword",
		Description: "Find passages containing a term, ranked by occurrence count with a bonus for matching source names.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"term": map[string]interface{}{
					"type":        "string",
					"description": "Term to search for (case-insensitive)",
				},
				"max_results": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of results to return (default: 5)",
					"default":     5,
				},
			},
			Required: []string{"term"},
		},
	}, handlers.SearchKeyword)

	// 4. store_stats - Summarize the vector store
	server.AddTool(mcp.Tool{
		Name:        "store_stats",
		Description: "Report how many passages are stored, per source and per category.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.StoreStats)
}
