// ABOUTME: OpenAI-compatible client for embeddings and grounded answer generation
// ABOUTME: Requests 384-dimension embeddings and low-temperature chat completions with retry
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/harper/libraryqa/internal/models"
	"github.com/harper/libraryqa/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel openai.EmbeddingModel
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:         apiKey,
		ChatModel:      DefaultChatModel,
		EmbeddingModel: DefaultEmbeddingModel,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     time.Second * 2,
	}
}

// OpenAIClient wraps the OpenAI API client with retry logic
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	timeout        time.Duration
	maxRetries     int
	retryDelay     time.Duration
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration.
// A BaseURL without an APIKey is allowed for self-hosted compatible servers.
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	if config.APIKey == "" && config.BaseURL == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientConfig),
		chatModel:      config.ChatModel,
		embeddingModel: config.EmbeddingModel,
		timeout:        timeout,
		maxRetries:     config.MaxRetries,
		retryDelay:     config.RetryDelay,
	}, nil
}

// Name identifies the embedder in logs
func (c *OpenAIClient) Name() string {
	return "openai:" + string(c.embeddingModel)
}

// Embed generates one 384-dimension vector per text in a single request
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([]models.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(util.CalculateBackoff(c.retryDelay, attempt)):
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)

		resp, err := c.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequestStrings{
			Input:      texts,
			Model:      c.embeddingModel,
			Dimensions: models.Dimension,
		})

		if err != nil {
			cancel()
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}

		if len(resp.Data) != len(texts) {
			cancel()
			lastErr = fmt.Errorf("attempt %d: got %d embeddings for %d texts", attempt+1, len(resp.Data), len(texts))
			continue
		}

		vectors := make([]models.Vector, len(texts))
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(texts) {
				continue
			}
			vectors[item.Index] = item.Embedding
		}

		cancel()
		return vectors, nil
	}

	return nil, fmt.Errorf("failed to generate embeddings after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Generate answers the question using only the retrieved context
func (c *OpenAIClient) Generate(ctx context.Context, question, retrieved string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(util.CalculateBackoff(c.retryDelay, attempt)):
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)

		resp, err := c.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: BuildPrompt(question, retrieved),
				},
			},
			Temperature: 0.1, // Low temperature for factual answers
			MaxTokens:   500,
		})

		if err != nil {
			cancel()
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}

		if len(resp.Choices) == 0 {
			cancel()
			lastErr = fmt.Errorf("attempt %d: no completion choices returned", attempt+1)
			continue
		}

		cancel()
		return CleanAnswer(resp.Choices[0].Message.Content), nil
	}

	return "", fmt.Errorf("failed to generate answer after %d attempts: %w", c.maxRetries+1, lastErr)
}
