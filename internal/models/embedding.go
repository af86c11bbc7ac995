// ABOUTME: Vector and document types shared by embedding, storage and ingestion
// ABOUTME: Defines the fixed embedding dimension and the store statistics report
package models

// Dimension is the fixed length of every embedding vector
const Dimension = 384

// Vector is a single embedding
type Vector = []float32

// Document is extracted text from one source file, one entry per page
type Document struct {
	ID    string   `json:"id"`
	Pages []string `json:"pages"`
}

// Stats summarizes the contents of a vector store
type Stats struct {
	TotalChunks  int                 `json:"total_chunks"`
	Sources      map[string]int      `json:"sources"`
	ContentTypes map[ContentType]int `json:"content_types"`
	Loaded       bool                `json:"loaded"`
	VectorRows   int                 `json:"vector_rows"`
	Dimension    int                 `json:"dimension"`
	HasNaN       bool                `json:"has_nan"`
}
