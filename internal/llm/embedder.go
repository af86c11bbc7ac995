// ABOUTME: Embedder and Generator contracts used by ingestion and retrieval
// ABOUTME: FallbackEmbedder degrades to the deterministic hash embedder on any remote failure
package llm

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/harper/libraryqa/internal/logging"
	"github.com/harper/libraryqa/internal/models"
)

// Embedder maps texts to fixed-dimension vectors
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([]models.Vector, error)
	Name() string
}

// Generator produces an answer to a question from retrieved context
type Generator interface {
	Generate(ctx context.Context, question, retrieved string) (string, error)
}

// FallbackEmbedder serves every request from Primary and falls back to
// Fallback when Primary fails or returns vectors of the wrong shape.
type FallbackEmbedder struct {
	Primary  Embedder
	Fallback Embedder
	logger   *log.Logger
}

// NewFallbackEmbedder wraps primary so that it never surfaces an error
func NewFallbackEmbedder(primary Embedder, logger *log.Logger) *FallbackEmbedder {
	return &FallbackEmbedder{
		Primary:  primary,
		Fallback: NewHashEmbedder(),
		logger:   logging.OrDiscard(logger),
	}
}

// Name reports both embedders
func (f *FallbackEmbedder) Name() string {
	if f.Primary == nil {
		return f.Fallback.Name()
	}
	return f.Primary.Name() + "+" + f.Fallback.Name()
}

// Embed never fails for non-cancelled contexts
func (f *FallbackEmbedder) Embed(ctx context.Context, texts []string) ([]models.Vector, error) {
	if f.Primary != nil {
		vectors, err := f.Primary.Embed(ctx, texts)
		if err == nil {
			err = checkShape(vectors, len(texts))
		}
		if err == nil {
			return vectors, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Warn("embedding backend failed, using hash embeddings", "backend", f.Primary.Name(), "err", err)
	}
	return f.Fallback.Embed(ctx, texts)
}

func checkShape(vectors []models.Vector, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("got %d vectors for %d texts", len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) != models.Dimension {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), models.Dimension)
		}
	}
	return nil
}
