// ABOUTME: Loader lists policy documents in a directory and extracts their text page by page
// ABOUTME: PDFs are read with ledongthuc/pdf; plain text and markdown split pages on form feeds
package docs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/harper/libraryqa/internal/logging"
	"github.com/harper/libraryqa/internal/models"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupported is returned for files the loader cannot extract
var ErrUnsupported = errors.New("unsupported document type")

var supported = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// Supported reports whether path has an extension the loader reads
func Supported(path string) bool {
	return supported[strings.ToLower(filepath.Ext(path))]
}

// Loader reads documents from disk
type Loader struct {
	logger *log.Logger
}

// NewLoader creates a Loader
func NewLoader(logger *log.Logger) *Loader {
	return &Loader{logger: logging.OrDiscard(logger)}
}

// List returns the supported files directly inside dir, sorted by name
func (l *Loader) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !Supported(e.Name()) {
			l.logger.Debug("skipping unsupported file", "file", e.Name())
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Load extracts a document. The document ID is the file name.
func (l *Loader) Load(path string) (models.Document, error) {
	doc := models.Document{ID: filepath.Base(path)}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		doc.Pages, err = readPDF(path)
	case ".txt", ".md":
		doc.Pages, err = readText(path)
	default:
		return doc, fmt.Errorf("%w: %s", ErrUnsupported, doc.ID)
	}
	if err != nil {
		return doc, fmt.Errorf("failed to extract %s: %w", doc.ID, err)
	}

	l.logger.Debug("loaded document", "source", doc.ID, "pages", len(doc.Pages))
	return doc, nil
}

func readText(path string) ([]string, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.Split(text, "\f"), nil
}

// readPDF returns one entry per page; pages without a text layer are empty
func readPDF(path string) (pages []string, err error) {
	// The parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	total := r.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
