// ABOUTME: Tests for document listing and text extraction
// ABOUTME: Covers plain text pages, unsupported files and unreadable PDFs
package docs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"policy.pdf", true},
		{"POLICY.PDF", true},
		{"notes.txt", true},
		{"guide.md", true},
		{"scan.docx", false},
		{"README", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Supported(tt.path); got != tt.want {
				t.Errorf("Supported(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestLoader_List(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "b")
	writeFile(t, dir, "a.pdf", "a")
	writeFile(t, dir, "c.docx", "c")
	writeFile(t, dir, ".hidden.txt", "h")
	if err := os.Mkdir(filepath.Join(dir, "sub.md"), 0755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	paths, err := NewLoader(nil).List(dir)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "b.txt")}
	if len(paths) != len(want) {
		t.Fatalf("List() = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %s, want %s", i, paths[i], want[i])
		}
	}

	if _, err := NewLoader(nil).List(filepath.Join(dir, "missing")); err == nil {
		t.Error("List() on missing directory should fail")
	}
}

func TestLoader_LoadText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.txt", "Page one text.\r\nSecond line.\fPage two text.")

	doc, err := NewLoader(nil).Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.ID != "rules.txt" {
		t.Errorf("ID = %q, want rules.txt", doc.ID)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(doc.Pages))
	}
	if doc.Pages[0] != "Page one text.\nSecond line." {
		t.Errorf("page 1 = %q", doc.Pages[0])
	}
	if doc.Pages[1] != "Page two text." {
		t.Errorf("page 2 = %q", doc.Pages[1])
	}
}

func TestLoader_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(nil)

	docx := writeFile(t, dir, "scan.docx", "binary")
	if _, err := loader.Load(docx); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Load(docx) error = %v, want ErrUnsupported", err)
	}

	broken := writeFile(t, dir, "broken.pdf", "this is not a pdf")
	doc, err := loader.Load(broken)
	if err == nil {
		t.Error("Load() of a malformed pdf should fail")
	}
	if doc.ID != "broken.pdf" {
		t.Errorf("ID = %q, want broken.pdf even on failure", doc.ID)
	}

	if _, err := loader.Load(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}
