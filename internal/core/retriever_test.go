// ABOUTME: Tests for the retrieval orchestrator
// ABOUTME: Covers merging, category filtering, context formatting and the not-found path
package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/harper/libraryqa/internal/models"
	"github.com/harper/libraryqa/internal/storage"
)

type fakeSearcher struct {
	similar []models.ScoredChunk
	keyword []models.ScoredChunk
	terms   []string
}

func (f *fakeSearcher) SimilaritySearch(_ models.Vector, k int) []models.ScoredChunk {
	if len(f.similar) > k {
		return f.similar[:k]
	}
	return f.similar
}

func (f *fakeSearcher) SearchByKeyword(term string, k int) []models.ScoredChunk {
	f.terms = append(f.terms, term)
	if len(f.keyword) > k {
		return f.keyword[:k]
	}
	return f.keyword
}

type failingEmbedder struct{}

func (failingEmbedder) Name() string { return "failing" }

func (failingEmbedder) Embed(context.Context, []string) ([]models.Vector, error) {
	return nil, errors.New("embedding backend down")
}

func scored(text, source, section string, ct models.ContentType) models.ScoredChunk {
	return models.ScoredChunk{Chunk: models.Chunk{
		Text:     text,
		Metadata: models.Metadata{Source: source, Section: section, ContentType: ct},
	}}
}

func TestRetriever_BorrowingQuestionExcludesHours(t *testing.T) {
	store, err := storage.NewVectorStore(storage.Options{})
	if err != nil {
		t.Fatalf("NewVectorStore() error = %v", err)
	}

	chunks := []models.Chunk{
		{Text: "Undergraduate students may borrow up to three books for two weeks.", Metadata: models.Metadata{Source: "policy.pdf", Section: "Borrowing", ContentType: models.ContentBorrowing}},
		{Text: "Overdue books attract a fine of ten shillings per day.", Metadata: models.Metadata{Source: "fines.pdf", ContentType: models.ContentFines}},
		{Text: "The library is open from 8am to 10pm on weekdays.", Metadata: models.Metadata{Source: "hours.pdf", ContentType: models.ContentHours}},
	}
	if err := store.Add(chunks, nil); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	r := NewRetriever(store, nil, nil, nil)
	result, err := r.Retrieve(context.Background(), "How many books can I borrow?")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	if result.Category != models.ContentBorrowing {
		t.Errorf("Category = %s, want borrowing", result.Category)
	}
	if !strings.Contains(result.Context, "borrow up to three books") {
		t.Errorf("context missing borrowing chunk: %q", result.Context)
	}
	if strings.Contains(result.Context, "8am to 10pm") {
		t.Errorf("context contains hours chunk: %q", result.Context)
	}
	for _, c := range result.Chunks {
		if c.Metadata.ContentType == models.ContentHours {
			t.Errorf("hours chunk retrieved for borrowing question")
		}
	}
	if len(result.Sources) != 1 || result.Sources[0] != "policy.pdf" {
		t.Errorf("Sources = %v, want [policy.pdf]", result.Sources)
	}
}

func TestRetriever_MergeAndFilter(t *testing.T) {
	searcher := &fakeSearcher{
		similar: []models.ScoredChunk{
			scored("Fines are charged daily.", "b.pdf", "Fines", models.ContentFines),
			scored("Opening hours vary in December.", "c.pdf", "", models.ContentHours),
			scored("Library cards are issued at the desk.", "a.pdf", "", models.ContentGeneral),
		},
		keyword: []models.ScoredChunk{
			scored("Fines are charged daily.", "b.pdf", "Fines", models.ContentFines),
			scored("Lost books must be replaced and returned items are checked.", "", "", models.ContentBorrowing),
		},
	}

	r := NewRetriever(searcher, nil, nil, nil)
	result, err := r.Retrieve(context.Background(), "  What is the overdue fine?  ")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	if result.Category != models.ContentFines {
		t.Fatalf("Category = %s, want fines", result.Category)
	}
	if len(searcher.terms) != 1 || searcher.terms[0] != "What is the overdue fine?" {
		t.Errorf("keyword terms = %q, want trimmed question", searcher.terms)
	}

	// fines, general, then borrowing (cross-accepted); hours filtered; duplicate dropped
	want := []string{
		"Fines are charged daily.",
		"Library cards are issued at the desk.",
		"Lost books must be replaced and returned items are checked.",
	}
	if len(result.Chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(result.Chunks), len(want))
	}
	for i, text := range want {
		if result.Chunks[i].Text != text {
			t.Errorf("chunk %d = %q, want %q", i, result.Chunks[i].Text, text)
		}
	}

	wantSources := []string{"Document", "a.pdf", "b.pdf"}
	if strings.Join(result.Sources, ",") != strings.Join(wantSources, ",") {
		t.Errorf("Sources = %v, want %v", result.Sources, wantSources)
	}
}

func TestRetriever_KeepsAtMostFive(t *testing.T) {
	searcher := &fakeSearcher{}
	for i := 0; i < 8; i++ {
		searcher.similar = append(searcher.similar,
			scored(strings.Repeat("x", i+1)+" general guidance", "doc.pdf", "", models.ContentGeneral))
	}

	r := NewRetriever(searcher, nil, nil, nil)
	result, err := r.Retrieve(context.Background(), "Tell me something")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(result.Chunks) != contextLimit {
		t.Errorf("got %d chunks, want %d", len(result.Chunks), contextLimit)
	}
	if got := strings.Count(result.Context, contextSeparator); got != contextLimit-1 {
		t.Errorf("context has %d separators, want %d", got, contextLimit-1)
	}
}

func TestRetriever_NotFound(t *testing.T) {
	tests := []struct {
		name     string
		searcher *fakeSearcher
	}{
		{"empty store", &fakeSearcher{}},
		{"only other categories", &fakeSearcher{
			similar: []models.ScoredChunk{scored("Open until late in exam season.", "h.pdf", "", models.ContentHours)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRetriever(tt.searcher, nil, nil, nil)
			result, err := r.Retrieve(context.Background(), "How do I renew a loan?")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("Retrieve() error = %v, want ErrNotFound", err)
			}
			if result != nil {
				t.Errorf("result = %+v, want nil", result)
			}
		})
	}
}

func TestRetriever_Errors(t *testing.T) {
	r := NewRetriever(&fakeSearcher{}, nil, nil, nil)
	if _, err := r.Retrieve(context.Background(), "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("Retrieve(blank) error = %v, want ErrEmptyQuestion", err)
	}

	r = NewRetriever(&fakeSearcher{}, failingEmbedder{}, nil, nil)
	if _, err := r.Retrieve(context.Background(), "How do I borrow?"); err == nil {
		t.Error("Retrieve() with failing embedder should return error")
	}
}

func TestFormatContext(t *testing.T) {
	chunks := []models.ScoredChunk{
		scored("  First passage.  ", "guide.pdf", "Loans", models.ContentBorrowing),
		scored("Second passage.", "", "", models.ContentGeneral),
	}

	got := FormatContext(chunks)
	want := "[Source: guide.pdf, Section: Loans]\nFirst passage.\n---\n[Source: Document]\nSecond passage."
	if got != want {
		t.Errorf("FormatContext() = %q, want %q", got, want)
	}

	if FormatContext(nil) != "" {
		t.Error("FormatContext(nil) should be empty")
	}
}
