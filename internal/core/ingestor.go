// ABOUTME: Ingestor rebuilds the vector store from a directory of policy documents
// ABOUTME: Builds a fresh snapshot off to the side, swaps it in, persists it and logs each document
package core

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/libraryqa/internal/llm"
	"github.com/harper/libraryqa/internal/logging"
	"github.com/harper/libraryqa/internal/models"
	"github.com/harper/libraryqa/internal/storage"
	"github.com/harper/libraryqa/internal/storage/sqlite"
	"golang.org/x/sync/errgroup"
)

const (
	defaultIngestWorkers = 4
	embedBatchSize       = 32
)

var (
	// ErrNoDocuments means the directory held nothing the loader can read
	ErrNoDocuments = errors.New("no supported documents found")
	// ErrNoChunks means no document produced a usable chunk
	ErrNoChunks = errors.New("no chunks extracted from documents")
)

// DocumentSource lists and extracts documents
type DocumentSource interface {
	List(dir string) ([]string, error)
	Load(path string) (models.Document, error)
}

// SnapshotStore receives a finished snapshot
type SnapshotStore interface {
	Replace(snap *storage.Snapshot)
	Save() error
}

// IngestRecorder keeps the audit trail of ingestion runs
type IngestRecorder interface {
	StartRun(dir string) (string, error)
	RecordDocument(runID string, outcome sqlite.DocumentOutcome) error
	FinishRun(runID string, documents, chunks int, runErr error) error
	TrackedHashes() (map[string]string, error)
}

// IngestReport summarizes one run
type IngestReport struct {
	RunID     string `json:"run_id,omitempty"`
	Dir       string `json:"dir"`
	Documents int    `json:"documents"`
	Failed    int    `json:"failed"`
	Chunks    int    `json:"chunks"`
	// Contaminated counts vectors that had NaN or infinite values zeroed
	Contaminated int                      `json:"contaminated,omitempty"`
	Outcomes     []sqlite.DocumentOutcome `json:"outcomes"`
	Duration     time.Duration            `json:"duration"`
}

// Ingestor wires the loader, segmenter, embedder and store together
type Ingestor struct {
	source    DocumentSource
	segmenter *Segmenter
	embedder  llm.Embedder
	store     SnapshotStore
	recorder  IngestRecorder
	workers   int
	hashFile  func(path string) (string, error)
	logger    *log.Logger
}

// NewIngestor creates an Ingestor. recorder may be nil.
func NewIngestor(source DocumentSource, segmenter *Segmenter, embedder llm.Embedder, store SnapshotStore, recorder IngestRecorder, logger *log.Logger) *Ingestor {
	if segmenter == nil {
		segmenter = NewSegmenter(nil, logger)
	}
	if embedder == nil {
		embedder = llm.NewHashEmbedder()
	}
	return &Ingestor{
		source:    source,
		segmenter: segmenter,
		embedder:  embedder,
		store:     store,
		recorder:  recorder,
		workers:   defaultIngestWorkers,
		hashFile:  FileHash,
		logger:    logging.OrDiscard(logger),
	}
}

// SetWorkers bounds how many documents are processed at once
func (in *Ingestor) SetWorkers(n int) {
	if n > 0 {
		in.workers = n
	}
}

type documentResult struct {
	chunks  []models.Chunk
	vectors []models.Vector
	outcome sqlite.DocumentOutcome
}

// Run ingests every supported document in dir. The store keeps serving its
// previous contents until the new snapshot is complete; a run that yields
// no chunks leaves it untouched.
func (in *Ingestor) Run(ctx context.Context, dir string) (*IngestReport, error) {
	start := time.Now()
	report := &IngestReport{Dir: dir}

	if in.recorder != nil {
		runID, err := in.recorder.StartRun(dir)
		if err != nil {
			in.logger.Warn("ingest log unavailable", "err", err)
		} else {
			report.RunID = runID
		}
	}

	err := in.run(ctx, dir, report)
	report.Duration = time.Since(start)

	if in.recorder != nil && report.RunID != "" {
		if ferr := in.recorder.FinishRun(report.RunID, report.Documents, report.Chunks, err); ferr != nil {
			in.logger.Warn("failed to close ingest run", "run", report.RunID, "err", ferr)
		}
	}

	if err != nil {
		return report, err
	}

	in.logger.Info("ingestion complete",
		"documents", report.Documents,
		"failed", report.Failed,
		"chunks", report.Chunks,
		"duration", report.Duration.Round(time.Millisecond))
	return report, nil
}

func (in *Ingestor) run(ctx context.Context, dir string, report *IngestReport) error {
	paths, err := in.source.List(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}

	results := make([]documentResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)
	for i, path := range paths {
		g.Go(func() error {
			res, err := in.processDocument(gctx, path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	snap := storage.NewSnapshot()
	for _, res := range results {
		if res.outcome.Error == "" {
			if err := snap.Append(res.chunks, res.vectors); err != nil {
				res.outcome.Error = err.Error()
				res.outcome.Chunks = 0
			}
		}

		if res.outcome.Error != "" {
			report.Failed++
			in.logger.Warn("document skipped", "source", res.outcome.Source, "err", res.outcome.Error)
		} else {
			report.Documents++
		}
		report.Outcomes = append(report.Outcomes, res.outcome)

		if in.recorder != nil && report.RunID != "" {
			if err := in.recorder.RecordDocument(report.RunID, res.outcome); err != nil {
				in.logger.Warn("failed to record document", "source", res.outcome.Source, "err", err)
			}
		}
	}

	if snap.Len() == 0 {
		return ErrNoChunks
	}

	in.store.Replace(snap)
	report.Chunks = snap.Len()
	report.Contaminated = snap.Contaminated()

	if err := in.store.Save(); err != nil {
		return fmt.Errorf("failed to save vector store: %w", err)
	}
	return nil
}

// processDocument extracts, segments and embeds one document. Only
// cancellation is returned as an error; anything else becomes the outcome.
func (in *Ingestor) processDocument(ctx context.Context, path string) (documentResult, error) {
	res := documentResult{outcome: sqlite.DocumentOutcome{Source: filepath.Base(path)}}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	if hash, err := in.hashFile(path); err != nil {
		in.logger.Debug("document not hashed", "path", path, "err", err)
	} else {
		res.outcome.Hash = hash
	}

	doc, err := in.source.Load(path)
	if err != nil {
		res.outcome.Error = err.Error()
		return res, nil
	}
	res.outcome.Source = doc.ID
	res.outcome.Pages = len(doc.Pages)

	chunks := in.segmenter.Segment(doc)
	if len(chunks) == 0 {
		res.outcome.Error = "no extractable text"
		return res, nil
	}

	vectors := make([]models.Vector, 0, len(chunks))
	for startIdx := 0; startIdx < len(chunks); startIdx += embedBatchSize {
		end := min(startIdx+embedBatchSize, len(chunks))
		texts := make([]string, 0, end-startIdx)
		for _, c := range chunks[startIdx:end] {
			texts = append(texts, c.Text)
		}

		batch, err := in.embedder.Embed(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.outcome.Error = fmt.Sprintf("embedding failed: %v", err)
			return res, nil
		}
		vectors = append(vectors, batch...)
	}

	res.chunks = chunks
	res.vectors = vectors
	res.outcome.Chunks = len(chunks)
	return res, nil
}

// ChangeSet compares a document directory against the latest successful run
type ChangeSet struct {
	Dir       string   `json:"dir"`
	New       []string `json:"new,omitempty"`
	Modified  []string `json:"modified,omitempty"`
	Removed   []string `json:"removed,omitempty"`
	Unchanged []string `json:"unchanged,omitempty"`
}

// HasChanges reports whether a re-ingest would see different documents
func (c *ChangeSet) HasChanges() bool {
	return len(c.New) > 0 || len(c.Modified) > 0 || len(c.Removed) > 0
}

// Changes hashes every supported document in dir and compares the result
// with the hashes recorded by the latest successful run. Without a recorder
// every document counts as new.
func (in *Ingestor) Changes(ctx context.Context, dir string) (*ChangeSet, error) {
	paths, err := in.source.List(dir)
	if err != nil {
		return nil, err
	}

	tracked := map[string]string{}
	if in.recorder != nil {
		if tracked, err = in.recorder.TrackedHashes(); err != nil {
			return nil, err
		}
	}

	changes := &ChangeSet{Dir: dir}
	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := filepath.Base(path)
		seen[name] = true

		hash, err := in.hashFile(path)
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", name, err)
		}
		previous, ok := tracked[name]
		switch {
		case !ok:
			changes.New = append(changes.New, name)
		case previous != hash:
			changes.Modified = append(changes.Modified, name)
		default:
			changes.Unchanged = append(changes.Unchanged, name)
		}
	}
	for name := range tracked {
		if !seen[name] {
			changes.Removed = append(changes.Removed, name)
		}
	}
	sort.Strings(changes.Removed)
	return changes, nil
}

// RunIfChanged rebuilds the store only when Changes finds new, modified or
// removed documents. The report is nil when the run was skipped.
func (in *Ingestor) RunIfChanged(ctx context.Context, dir string) (*IngestReport, *ChangeSet, error) {
	changes, err := in.Changes(ctx, dir)
	if err != nil {
		return nil, nil, err
	}
	if !changes.HasChanges() {
		in.logger.Debug("documents unchanged, skipping ingest", "dir", dir, "documents", len(changes.Unchanged))
		return nil, changes, nil
	}

	in.logger.Info("documents changed",
		"new", len(changes.New),
		"modified", len(changes.Modified),
		"removed", len(changes.Removed))
	report, err := in.Run(ctx, dir)
	return report, changes, err
}

// Watch calls RunIfChanged every interval until ctx is done. Failed checks
// are logged and retried on the next tick. onRun receives every run that
// was not skipped.
func (in *Ingestor) Watch(ctx context.Context, dir string, interval time.Duration, onRun func(*IngestReport, *ChangeSet, error)) error {
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, changes, err := in.RunIfChanged(ctx, dir)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			in.logger.Warn("ingest check failed", "dir", dir, "err", err)
		}
		if (report != nil || err != nil) && onRun != nil {
			onRun(report, changes, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// FileHash is the md5 hex digest of a file's contents
func FileHash(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() // #nosec G401
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
