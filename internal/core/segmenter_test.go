// ABOUTME: Tests for document segmentation into sections, paragraphs and chunks
// ABOUTME: Verifies header handling, paragraph packing, chunk ids and minimum lengths
package core

import (
	"math"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/harper/libraryqa/internal/models"
)

const policyPage = `LIBRARY RULES
Undergraduate students may borrow up to three books for fourteen days.
Books can be renewed once at the circulation desk.
FINES AND PENALTIES
Overdue books attract a fine of Ksh 5 per book per day. The fine starts immediately after the due date.
ok`

func TestSegmenter_Segment(t *testing.T) {
	seg := NewSegmenter(nil, nil)
	chunks := seg.Segment(models.Document{ID: "policy.pdf", Pages: []string{policyPage}})

	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2: %+v", len(chunks), chunks)
	}

	first := chunks[0]
	if first.Text != "Undergraduate students may borrow up to three books for fourteen days. Books can be renewed once at the circulation desk." {
		t.Errorf("first text = %q", first.Text)
	}
	if first.Metadata.Section != "LIBRARY RULES" {
		t.Errorf("first section = %q", first.Metadata.Section)
	}
	if first.Metadata.ContentType != models.ContentBorrowing {
		t.Errorf("first content type = %q, want borrowing", first.Metadata.ContentType)
	}
	if first.Metadata.ChunkID != "policy.pdf_0" || first.Metadata.Source != "policy.pdf" || first.Metadata.Page != 1 {
		t.Errorf("first metadata = %+v", first.Metadata)
	}
	if math.Abs(first.Importance-0.8) > 1e-9 {
		t.Errorf("first importance = %v, want 0.8", first.Importance)
	}

	second := chunks[1]
	if second.Metadata.Section != "FINES AND PENALTIES" || second.Metadata.ContentType != models.ContentFines {
		t.Errorf("second metadata = %+v", second.Metadata)
	}
	if second.Metadata.ChunkID != "policy.pdf_1" {
		t.Errorf("second chunk id = %q", second.Metadata.ChunkID)
	}
	if second.Importance != 1.0 {
		t.Errorf("second importance = %v, want 1.0", second.Importance)
	}
	if strings.HasSuffix(second.Text, "ok") {
		t.Errorf("short trailing paragraph should be dropped: %q", second.Text)
	}
}

func TestSegmenter_EmptyDocument(t *testing.T) {
	seg := NewSegmenter(nil, nil)

	tests := []struct {
		name  string
		pages []string
	}{
		{"no pages", nil},
		{"blank pages", []string{"  ", "\n\n"}},
		{"only headers", []string{"SECTION 1\nSECTION 2\nOPENING HOURS:"}},
		{"section too short", []string{"Short text only."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := seg.Segment(models.Document{ID: "empty.pdf", Pages: tt.pages})
			if len(chunks) != 0 {
				t.Errorf("len(chunks) = %d, want 0", len(chunks))
			}
		})
	}
}

func TestSegmenter_PageTracking(t *testing.T) {
	seg := NewSegmenter(nil, nil)
	doc := models.Document{
		ID: "hours.pdf",
		Pages: []string{
			"OPENING HOURS:\nThe library is open from eight in the morning until ten at night on weekdays.",
			"",
			"The library is also open on Saturday mornings for students preparing for exams.\nSECTION 2\nBorrowing privileges are suspended for members with unpaid fines on their account.",
		},
	}

	chunks := seg.Segment(doc)
	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want at least 2", len(chunks))
	}
	// the first section is flushed when SECTION 2 appears on page 3
	if chunks[0].Metadata.Page != 3 || chunks[0].Metadata.Section != "OPENING HOURS:" {
		t.Errorf("first chunk metadata = %+v", chunks[0].Metadata)
	}
	last := chunks[len(chunks)-1]
	if last.Metadata.Section != "SECTION 2" || last.Metadata.Page != 3 {
		t.Errorf("last chunk metadata = %+v", last.Metadata)
	}
}

func TestSegmenter_ContextHeaders(t *testing.T) {
	seg := NewSegmenter(nil, nil)
	long := "Registered members may use every reading room and all of the computer terminals in the library building."
	doc := models.Document{
		ID: "faq.txt",
		Pages: []string{strings.Join([]string{
			"What is a library card and who issues it to new members each term",
			long,
			"What is the loan period for reference material held at the main desk",
			"Reference material may not leave the building under any circumstances at all.",
		}, "\n")},
	}

	chunks := seg.Segment(doc)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2: %+v", len(chunks), chunks)
	}
	// the first question is body text because nothing precedes it
	if chunks[0].Metadata.Section != "" || !strings.HasPrefix(chunks[0].Text, "What is a library card") {
		t.Errorf("first chunk = %+v", chunks[0])
	}
	if chunks[1].Metadata.Section != "What is the loan period for reference material held at the main desk" {
		t.Errorf("second section = %q", chunks[1].Metadata.Section)
	}
}

func TestSegmenter_MinimumLength(t *testing.T) {
	seg := NewSegmenter(nil, nil)
	text := strings.Repeat("Tiny. Short one! Is this it? ", 20) +
		"\nA longer sentence that describes how to renew borrowed material online."

	for _, c := range seg.Segment(models.Document{ID: "noise.txt", Pages: []string{text}}) {
		if utf8.RuneCountInString(c.Text) < models.MinChunkLength {
			t.Errorf("chunk shorter than minimum: %q", c.Text)
		}
		if err := c.Validate(); err != nil {
			t.Errorf("Validate() error = %v for %q", err, c.Text)
		}
	}
}

func TestSegmenter_UniqueChunkIDs(t *testing.T) {
	seg := NewSegmenter(nil, nil)
	text := strings.Repeat("Members must show an identity card at the entrance every single day. ", 12)
	chunks := seg.Segment(models.Document{ID: "ids.txt", Pages: []string{text}})
	if len(chunks) < 3 {
		t.Fatalf("len(chunks) = %d, want several", len(chunks))
	}

	seen := make(map[string]bool)
	for _, c := range chunks {
		if seen[c.Metadata.ChunkID] {
			t.Errorf("duplicate chunk id %s", c.Metadata.ChunkID)
		}
		seen[c.Metadata.ChunkID] = true
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"basic", "One. Two! Three? Four", []string{"One.", "Two!", "Three?", "Four"}},
		{"whitespace run", "One.   Two.", []string{"One.", "Two."}},
		{"no split inside number", "Fines are 2.5 per day.", []string{"Fines are 2.5 per day."}},
		{"trailing whitespace", "End.  ", []string{"End."}},
		{"no punctuation", "no punctuation here", []string{"no punctuation here"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitSentences(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitSentences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "short text stays together",
			in:   "One sentence. Another sentence.",
			want: []string{"One sentence. Another sentence."},
		},
		{
			name: "breaks after exceeding target",
			in:   strings.Repeat("a", 60) + ". " + strings.Repeat("b", 50) + ". Tail.",
			want: []string{strings.Repeat("a", 60) + ". " + strings.Repeat("b", 50) + ".", "Tail."},
		},
		{
			name: "breaks after trailing colon",
			in:   "Requirements are listed. You need the following:",
			want: []string{"Requirements are listed. You need the following:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitParagraphs(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitParagraphs() = %q, want %q", got, tt.want)
			}
		})
	}
}
