// ABOUTME: Ollama client for local embeddings and answer generation
// ABOUTME: Talks to /api/embeddings and /api/generate through the official Go API package
package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harper/libraryqa/internal/models"
	"github.com/harper/libraryqa/internal/util"
	"github.com/ollama/ollama/api"
)

// OllamaConfig holds configuration for the Ollama client
type OllamaConfig struct {
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// OllamaClient wraps the Ollama API client with retry logic
type OllamaClient struct {
	client         *api.Client
	chatModel      string
	embeddingModel string
	timeout        time.Duration
	maxRetries     int
	retryDelay     time.Duration
}

// NewOllamaClient creates an Ollama client from config
func NewOllamaClient(config OllamaConfig) (*OllamaClient, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL %q", config.BaseURL)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OllamaClient{
		client:         api.NewClient(base, &http.Client{Timeout: timeout}),
		chatModel:      config.ChatModel,
		embeddingModel: config.EmbeddingModel,
		timeout:        timeout,
		maxRetries:     config.MaxRetries,
		retryDelay:     config.RetryDelay,
	}, nil
}

// Name identifies the embedder in logs
func (c *OllamaClient) Name() string {
	return "ollama:" + c.embeddingModel
}

// Embed requests one embedding per text
func (c *OllamaClient) Embed(ctx context.Context, texts []string) ([]models.Vector, error) {
	vectors := make([]models.Vector, 0, len(texts))
	for _, text := range texts {
		var resp *api.EmbeddingResponse
		err := util.Retry(ctx, c.maxRetries+1, c.retryDelay, func(ctx context.Context) error {
			reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			var err error
			resp, err = c.client.Embeddings(reqCtx, &api.EmbeddingRequest{
				Model:  c.embeddingModel,
				Prompt: text,
			})
			if err != nil {
				return err
			}
			if len(resp.Embedding) == 0 {
				return fmt.Errorf("no embedding returned")
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("ollama embedding: %w", err)
		}

		vec := make(models.Vector, len(resp.Embedding))
		for i, v := range resp.Embedding {
			vec[i] = float32(v)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// Generate answers the question from retrieved context with a low-temperature completion
func (c *OllamaClient) Generate(ctx context.Context, question, retrieved string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  c.chatModel,
		Prompt: BuildPrompt(question, retrieved),
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature":    0.1,
			"num_predict":    500,
			"top_p":          0.8,
			"repeat_penalty": 1.2,
		},
	}

	var answer strings.Builder
	err := util.Retry(ctx, c.maxRetries+1, c.retryDelay, func(ctx context.Context) error {
		answer.Reset()
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.client.Generate(reqCtx, req, func(resp api.GenerateResponse) error {
			answer.WriteString(resp.Response)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return CleanAnswer(answer.String()), nil
}
