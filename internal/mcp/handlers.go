// ABOUTME: MCP tool handler implementations for the library Q&A server
// ABOUTME: Tool failures are reported as tool errors, never as protocol errors
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/harper/libraryqa/internal/core"
	"github.com/harper/libraryqa/internal/logging"
	"github.com/harper/libraryqa/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

const maxKeywordResults = 50

// QuestionAnswerer answers patron questions
type QuestionAnswerer interface {
	Ask(ctx context.Context, question string) (*models.Answer, error)
}

// ContextRetriever gathers cited passages for a question
type ContextRetriever interface {
	Retrieve(ctx context.Context, question string) (*core.RetrievalResult, error)
}

// PassageStore is the read side of the vector store
type PassageStore interface {
	SearchByKeyword(term string, k int) []models.ScoredChunk
	Stats() models.Stats
}

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	answerer  QuestionAnswerer
	retriever ContextRetriever
	store     PassageStore
	logger    *log.Logger
}

// NewHandlers creates Handlers
func NewHandlers(answerer QuestionAnswerer, retriever ContextRetriever, store PassageStore, logger *log.Logger) *Handlers {
	return &Handlers{
		answerer:  answerer,
		retriever: retriever,
		store:     store,
		logger:    logging.OrDiscard(logger),
	}
}

// AskLibrary handles the ask_library tool
func (h *Handlers) AskLibrary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}

	answer, err := h.answerer.Ask(ctx, question)
	if err != nil {
		h.logger.Error("ask_library failed", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to answer: %v", err)), nil
	}

	return jsonResult(answer)
}

// RetrieveContext handles the retrieve_context tool
func (h *Handlers) RetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}

	result, err := h.retriever.Retrieve(ctx, question)
	if errors.Is(err, core.ErrNotFound) {
		return jsonResult(map[string]interface{}{
			"found":   false,
			"context": "",
			"sources": []string{},
		})
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"found":    true,
		"category": result.Category,
		"context":  result.Context,
		"sources":  result.Sources,
	})
}

// SearchKeyword handles the search_keyword tool
func (h *Handlers) SearchKeyword(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term, err := request.RequireString("term")
	if err != nil {
		return mcp.NewToolResultError("term argument is required and must be a string"), nil
	}

	maxResults := request.GetInt("max_results", 5)
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > maxKeywordResults {
		maxResults = maxKeywordResults
	}

	results := h.store.SearchByKeyword(term, maxResults)
	return jsonResult(map[string]interface{}{
		"term":    term,
		"results": results,
	})
}

// StoreStats handles the store_stats tool
func (h *Handlers) StoreStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(h.store.Stats())
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
