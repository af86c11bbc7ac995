// ABOUTME: Retriever assembles answer-ready context for a single question
// ABOUTME: Merges similarity and keyword hits, filters them by category and formats cited blocks
package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/harper/libraryqa/internal/llm"
	"github.com/harper/libraryqa/internal/logging"
	"github.com/harper/libraryqa/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	// searchK is how many hits each search contributes before filtering
	searchK = 10
	// contextLimit is how many filtered chunks make it into the context
	contextLimit = 5
	// contextSeparator joins formatted chunk blocks
	contextSeparator = "\n---\n"
	// unknownSource labels chunks without a source
	unknownSource = "Document"
)

var (
	// ErrNotFound means no stored passage is relevant to the question
	ErrNotFound = errors.New("no relevant information found")
	// ErrEmptyQuestion means the question was blank
	ErrEmptyQuestion = errors.New("question is empty")
)

// ChunkSearcher is the read side of the vector store
type ChunkSearcher interface {
	SimilaritySearch(query models.Vector, k int) []models.ScoredChunk
	SearchByKeyword(term string, k int) []models.ScoredChunk
}

// RetrievalResult is the context assembled for one question
type RetrievalResult struct {
	Question string               `json:"question"`
	Category models.ContentType   `json:"category"`
	Context  string               `json:"context"`
	Sources  []string             `json:"sources"`
	Chunks   []models.ScoredChunk `json:"chunks"`
}

// Retriever classifies questions and gathers matching passages
type Retriever struct {
	store    ChunkSearcher
	embedder llm.Embedder
	rules    *Rules
	logger   *log.Logger
}

// NewRetriever creates a Retriever. A nil embedder means hash embeddings;
// nil rules means DefaultRules.
func NewRetriever(store ChunkSearcher, embedder llm.Embedder, rules *Rules, logger *log.Logger) *Retriever {
	if embedder == nil {
		embedder = llm.NewHashEmbedder()
	}
	if rules == nil {
		rules = DefaultRules()
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		rules:    rules,
		logger:   logging.OrDiscard(logger),
	}
}

// Classify returns the category of a question
func (r *Retriever) Classify(question string) models.ContentType {
	return r.rules.ClassifyQuestion(question)
}

// Retrieve gathers up to five relevant chunks and formats them as context.
// It returns ErrNotFound when nothing passes the category filter.
func (r *Retriever) Retrieve(ctx context.Context, question string) (*RetrievalResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	category := r.rules.ClassifyQuestion(question)

	var similar, keyword []models.ScoredChunk
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vectors, err := r.embedder.Embed(gctx, []string{question})
		if err != nil {
			return fmt.Errorf("failed to embed question: %w", err)
		}
		if len(vectors) != 1 {
			return fmt.Errorf("embedder returned %d vectors for one question", len(vectors))
		}
		similar = r.store.SimilaritySearch(vectors[0], searchK)
		return nil
	})
	g.Go(func() error {
		keyword = r.store.SearchByKeyword(question, searchK)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeUnique(similar, keyword)

	var kept []models.ScoredChunk
	for _, c := range merged {
		if r.rules.Accepts(category, c.Metadata.ContentType) {
			kept = append(kept, c)
			if len(kept) == contextLimit {
				break
			}
		}
	}

	r.logger.Debug("retrieval",
		"category", category,
		"similar", len(similar),
		"keyword", len(keyword),
		"merged", len(merged),
		"kept", len(kept))

	if len(kept) == 0 {
		return nil, ErrNotFound
	}

	return &RetrievalResult{
		Question: question,
		Category: category,
		Context:  FormatContext(kept),
		Sources:  distinctSources(kept),
		Chunks:   kept,
	}, nil
}

// FormatContext renders chunks as labeled blocks:
// "[Source: s, Section: t]\n<text>", omitting the section when empty
func FormatContext(chunks []models.ScoredChunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		source := c.Metadata.Source
		if source == "" {
			source = unknownSource
		}

		var b strings.Builder
		b.WriteString("[Source: ")
		b.WriteString(source)
		if c.Metadata.Section != "" {
			b.WriteString(", Section: ")
			b.WriteString(c.Metadata.Section)
		}
		b.WriteString("]\n")
		b.WriteString(strings.TrimSpace(c.Text))
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, contextSeparator)
}

// mergeUnique concatenates result lists, keeping the first chunk for each text
func mergeUnique(lists ...[]models.ScoredChunk) []models.ScoredChunk {
	seen := make(map[string]bool)
	var out []models.ScoredChunk
	for _, list := range lists {
		for _, c := range list {
			if c.Text == "" || seen[c.Text] {
				continue
			}
			seen[c.Text] = true
			out = append(out, c)
		}
	}
	return out
}

func distinctSources(chunks []models.ScoredChunk) []string {
	set := make(map[string]bool)
	var sources []string
	for _, c := range chunks {
		source := c.Metadata.Source
		if source == "" {
			source = unknownSource
		}
		if !set[source] {
			set[source] = true
			sources = append(sources, source)
		}
	}
	sort.Strings(sources)
	return sources
}
