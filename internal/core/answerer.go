// ABOUTME: Answerer turns a question into a cited answer using retrieval and generation
// ABOUTME: Falls back to passages quoted from the documents when generation fails or times out
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/harper/libraryqa/internal/llm"
	"github.com/harper/libraryqa/internal/logging"
	"github.com/harper/libraryqa/internal/models"
)

const (
	// NotFoundAnswer is shown when no document covers the question
	NotFoundAnswer = "I couldn't find any information about this in the library documents."
	// DegradedNote marks answers quoted without a language model
	DegradedNote = "Note: answer extracted directly from the library documents."

	defaultGenerateTimeout = 60 * time.Second
	degradedPassages       = 3
	degradedPassageRunes   = 400
)

// AnswerCache stores answers by question
type AnswerCache interface {
	Get(question string) (*models.Answer, bool, error)
	Put(question string, answer *models.Answer) error
}

// Answerer coordinates retrieval, the answer cache and the generator
type Answerer struct {
	retriever *Retriever
	generator llm.Generator
	cache     AnswerCache
	timeout   time.Duration
	logger    *log.Logger
}

// NewAnswerer creates an Answerer. generator and cache may be nil; without a
// generator every answer is quoted from the retrieved passages.
func NewAnswerer(retriever *Retriever, generator llm.Generator, cache AnswerCache, timeout time.Duration, logger *log.Logger) *Answerer {
	if timeout <= 0 {
		timeout = defaultGenerateTimeout
	}
	return &Answerer{
		retriever: retriever,
		generator: generator,
		cache:     cache,
		timeout:   timeout,
		logger:    logging.OrDiscard(logger),
	}
}

// Ask answers one question. A question no document covers yields an Answer
// with Found false rather than an error.
func (a *Answerer) Ask(ctx context.Context, question string) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	if a.cache != nil {
		cached, ok, err := a.cache.Get(question)
		if err != nil {
			a.logger.Warn("answer cache lookup failed", "err", err)
		} else if ok {
			a.logger.Debug("answer cache hit", "question", question)
			return cached, nil
		}
	}

	result, err := a.retriever.Retrieve(ctx, question)
	if errors.Is(err, ErrNotFound) {
		return &models.Answer{
			Question: question,
			Text:     NotFoundAnswer,
			Sources:  []string{},
			Category: a.retriever.Classify(question),
			Found:    false,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	answer := &models.Answer{
		Question: question,
		Sources:  result.Sources,
		Category: result.Category,
		Found:    true,
	}

	text, err := a.generate(ctx, question, result.Context)
	switch {
	case err == nil:
		answer.Text = text
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		a.logger.Warn("generation failed, quoting documents", "err", err)
		answer.Text = DegradedAnswer(result.Chunks)
		answer.Degraded = true
	}

	if a.cache != nil && !answer.Degraded {
		if err := a.cache.Put(question, answer); err != nil {
			a.logger.Warn("failed to cache answer", "err", err)
		}
	}

	return answer, nil
}

func (a *Answerer) generate(ctx context.Context, question, retrieved string) (string, error) {
	if a.generator == nil {
		return "", errors.New("no generator configured")
	}
	genCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.generator.Generate(genCtx, question, retrieved)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("generator returned an empty answer")
	}
	return text, nil
}

// DegradedAnswer quotes the leading passages so the patron still gets the
// relevant policy text when no model is available
func DegradedAnswer(chunks []models.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("Here is what the library documents say:\n")
	for i, c := range chunks {
		if i == degradedPassages {
			break
		}
		b.WriteString("\n- ")
		b.WriteString(truncateRunes(strings.Join(strings.Fields(c.Text), " "), degradedPassageRunes))
	}
	b.WriteString("\n\n")
	b.WriteString(DegradedNote)
	return b.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "..."
}
