// ABOUTME: Deterministic content-hash embedder used offline and as the fallback
// ABOUTME: Derives a unit vector from the SHA-256 hex digest of the text
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"

	"github.com/harper/libraryqa/internal/models"
)

// HashEmbedder has no semantic understanding; equal texts get equal vectors
type HashEmbedder struct{}

// NewHashEmbedder creates a hash embedder
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

// Name identifies the embedder in logs
func (h *HashEmbedder) Name() string {
	return "hash"
}

// Embed hashes each text independently
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([]models.Vector, error) {
	vectors := make([]models.Vector, len(texts))
	for i, text := range texts {
		vectors[i] = HashVector(text)
	}
	return vectors, nil
}

// HashVector computes the embedding of a single text.
// Element i is the character code of digest[i mod 64] scaled to [-0.5, 0.5],
// and the result is L2-normalized unless its norm is zero.
func HashVector(text string) models.Vector {
	sum := sha256.Sum256([]byte(text))
	digest := hex.EncodeToString(sum[:])

	vec := make(models.Vector, models.Dimension)
	for i := range vec {
		vec[i] = float32(float64(digest[i%len(digest)])/255.0 - 0.5)
	}

	// norm and division stay in float32; the explicit conversion blocks FMA fusion
	var sq float32
	for _, x := range vec {
		sq += float32(x * x)
	}
	norm := float32(math.Sqrt(float64(sq)))
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
