// ABOUTME: Segmenter splits extracted document text into classified policy chunks
// ABOUTME: Streams lines into header-delimited sections, then sections into sentence-packed paragraphs
package core

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/harper/libraryqa/internal/logging"
	"github.com/harper/libraryqa/internal/models"
)

const (
	// maxHeaderLength is the longest line that can still be a header
	maxHeaderLength = 200
	// contextThreshold is the section length context-dependent header rules need
	contextThreshold = 100
	// minSectionLength is the length a section must exceed to be kept
	minSectionLength = 50
	// paragraphTarget is the length a paragraph must exceed before it is emitted
	paragraphTarget = 100
)

// section is a run of lines under one header
type section struct {
	title   string
	content string
	page    int
}

// Segmenter turns documents into chunks
type Segmenter struct {
	rules  *Rules
	logger *log.Logger
}

// NewSegmenter creates a Segmenter; nil rules means DefaultRules
func NewSegmenter(rules *Rules, logger *log.Logger) *Segmenter {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Segmenter{rules: rules, logger: logging.OrDiscard(logger)}
}

// Segment splits a document into chunks in reading order.
// A document without usable text yields no chunks.
func (s *Segmenter) Segment(doc models.Document) []models.Chunk {
	sections := s.sections(doc)
	if len(sections) == 0 {
		s.logger.Warn("no extractable text", "source", doc.ID)
		return nil
	}

	var chunks []models.Chunk
	for _, sec := range sections {
		for _, para := range splitParagraphs(sec.content) {
			if utf8.RuneCountInString(para) < models.MinChunkLength {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Text: para,
				Metadata: models.Metadata{
					Source:      doc.ID,
					Section:     sec.title,
					ContentType: s.rules.ClassifyContent(para),
					ChunkID:     fmt.Sprintf("%s_%d", doc.ID, len(chunks)),
					Page:        sec.page,
				},
				Importance: s.rules.Importance(para, sec.title),
			})
		}
	}

	s.logger.Debug("segmented document", "source", doc.ID, "sections", len(sections), "chunks", len(chunks))
	return chunks
}

// sections walks every line once, starting a new section at each header
func (s *Segmenter) sections(doc models.Document) []section {
	var (
		out     []section
		lines   []string
		length  int
		title   string
		curPage int
	)

	flush := func(page int) {
		if length > minSectionLength {
			out = append(out, section{title: title, content: strings.Join(lines, " "), page: page})
		}
	}

	for i, text := range doc.Pages {
		curPage = i + 1
		if strings.TrimSpace(text) == "" {
			continue
		}

		for _, raw := range strings.Split(text, "\n") {
			line := strings.TrimSpace(raw)
			if line == "" {
				continue
			}

			if _, ok := s.rules.MatchHeader(line, length); ok {
				flush(curPage)
				title = line
				lines = nil
				length = 0
				continue
			}

			if len(lines) > 0 {
				length++
			}
			lines = append(lines, line)
			length += utf8.RuneCountInString(line)
		}
	}
	flush(curPage)

	return out
}

// splitParagraphs packs sentences into paragraphs longer than paragraphTarget,
// also breaking after a sentence that ends in a colon or semicolon
func splitParagraphs(text string) []string {
	var (
		paragraphs []string
		current    []string
		length     int
	)

	for _, sentence := range splitSentences(text) {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}

		if len(current) > 0 {
			length++
		}
		current = append(current, sentence)
		length += utf8.RuneCountInString(sentence)

		if length > paragraphTarget || strings.HasSuffix(trimmed, ":") || strings.HasSuffix(trimmed, ";") {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
			length = 0
		}
	}

	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, " "))
	}
	return paragraphs
}

// splitSentences cuts text at each whitespace run that follows . ! or ?
func splitSentences(text string) []string {
	var (
		sentences []string
		start     int
		prev      rune
	)

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) && i > start && (prev == '.' || prev == '!' || prev == '?') {
			sentences = append(sentences, text[start:i])
			j := i
			for j < len(text) {
				next, n := utf8.DecodeRuneInString(text[j:])
				if !unicode.IsSpace(next) {
					break
				}
				j += n
			}
			start, i, prev = j, j, 0
			continue
		}
		prev = r
		i += size
	}

	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}
