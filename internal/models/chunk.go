// ABOUTME: Chunk represents a retrievable fragment of a library policy document
// ABOUTME: Carries provenance metadata, a content category and an importance weight
package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinChunkLength is the shortest text a chunk may hold, in characters
const MinChunkLength = 30

// Metadata records where a chunk came from and how it was classified
type Metadata struct {
	Source      string      `json:"source"`
	Section     string      `json:"section"`
	ContentType ContentType `json:"content_type"`
	ChunkID     string      `json:"chunk_id"`
	Page        int         `json:"page,omitempty"`
}

// Chunk is the unit of retrieval
type Chunk struct {
	Text       string   `json:"text"`
	Metadata   Metadata `json:"metadata"`
	Importance float64  `json:"importance"`
}

// Validate checks the invariants every stored chunk must hold
func (c Chunk) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return errors.New("chunk text is empty")
	}
	if utf8.RuneCountInString(c.Text) < MinChunkLength {
		return fmt.Errorf("chunk text shorter than %d characters", MinChunkLength)
	}
	if c.Importance < 0 || c.Importance > 1 {
		return fmt.Errorf("importance %f outside [0, 1]", c.Importance)
	}
	if c.Metadata.ContentType != "" && !c.Metadata.ContentType.IsValid() {
		return fmt.Errorf("unknown content type %q", c.Metadata.ContentType)
	}
	return nil
}

// ScoredChunk is a copy of a stored chunk annotated by a search
type ScoredChunk struct {
	Chunk
	Similarity   float64 `json:"similarity,omitempty"`
	KeywordScore int     `json:"keyword_score,omitempty"`
}
