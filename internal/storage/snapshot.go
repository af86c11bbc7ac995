// ABOUTME: Snapshot building and durable persistence for the vector store
// ABOUTME: Writes chunks.json and embeddings.npy atomically and regenerates lost vectors on load
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harper/libraryqa/internal/llm"
	"github.com/harper/libraryqa/internal/models"
)

// Artifact names inside a store directory
const (
	ChunksFile  = "chunks.json"
	VectorsFile = "embeddings.npy"
)

const chunksFormat = "2.1"

// chunkRecords is the on-disk layout of chunks.json
type chunkRecords struct {
	Chunks  []models.Chunk `json:"chunks"`
	Count   int            `json:"count"`
	Version string         `json:"version"`
}

// Snapshot accumulates chunks and vectors off to the side before being
// swapped into a store with Replace. It is not safe for concurrent use.
type Snapshot struct {
	chunks  []models.Chunk
	vectors []models.Vector

	// contaminated counts vectors that had non-finite values zeroed
	contaminated int
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Append adds aligned chunks and vectors; on error the snapshot is unchanged
func (sn *Snapshot) Append(chunks []models.Chunk, vectors []models.Vector) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrAlignment, len(chunks), len(vectors))
	}
	clean := make([]models.Vector, len(vectors))
	contaminated := 0
	for i, v := range vectors {
		if len(v) != models.Dimension {
			return fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrAlignment, i, len(v), models.Dimension)
		}
		var dirty bool
		clean[i], dirty = sanitize(v)
		if dirty {
			contaminated++
		}
	}
	sn.chunks = append(sn.chunks, chunks...)
	sn.vectors = append(sn.vectors, clean...)
	sn.contaminated += contaminated
	return nil
}

// Contaminated returns how many appended vectors had NaN or infinite values zeroed
func (sn *Snapshot) Contaminated() int {
	return sn.contaminated
}

// Len returns the number of chunks collected so far
func (sn *Snapshot) Len() int {
	return len(sn.chunks)
}

func (sn *Snapshot) contents() ([]models.Chunk, []models.Vector) {
	chunks := make([]models.Chunk, len(sn.chunks))
	copy(chunks, sn.chunks)
	vectors := make([]models.Vector, len(sn.vectors))
	copy(vectors, sn.vectors)
	return chunks, vectors
}

// Save writes both artifacts. Each file is written to a temp file and renamed
// so readers never observe a partial artifact.
func (s *VectorStore) Save() error {
	if s.dir == "" {
		return errors.New("vector store has no directory")
	}

	s.mu.RLock()
	records := chunkRecords{
		Chunks:  append([]models.Chunk{}, s.chunks...),
		Count:   len(s.chunks),
		Version: chunksFormat,
	}
	var npy bytes.Buffer
	err := WriteNPY(&npy, s.vectors, models.Dimension)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode embeddings: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode chunks: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}
	if err := WriteFileAtomic(s.chunksPath(), data); err != nil {
		return err
	}
	if err := WriteFileAtomic(s.vectorsPath(), npy.Bytes()); err != nil {
		return err
	}

	s.logger.Info("saved vector store", "chunks", records.Count, "dir", s.dir)
	return nil
}

// Load restores the store from its directory. Missing or corrupt chunk
// records leave an empty, unloaded store without error; other read failures
// also leave it empty but are returned. A missing, corrupt or misaligned
// vector artifact is replaced by hash vectors derived from the chunk text.
func (s *VectorStore) Load() error {
	chunks, err := s.readChunks()
	if err != nil {
		s.mu.Lock()
		s.chunks, s.vectors, s.loaded = nil, nil, false
		s.cache.Purge()
		s.mu.Unlock()

		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("no vector store data found", "dir", s.dir)
			return nil
		}
		if errors.Is(err, ErrCorruptArtifact) {
			s.logger.Warn("vector store chunks unreadable, starting empty", "err", err)
			return nil
		}
		return fmt.Errorf("failed to read chunks: %w", err)
	}

	vectors, err := s.readVectors(len(chunks))
	if err != nil {
		s.logger.Warn("regenerating vectors from chunk text", "err", err)
		vectors = make([]models.Vector, len(chunks))
		for i, c := range chunks {
			vectors[i] = llm.HashVector(c.Text)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = chunks
	s.vectors = vectors
	s.loaded = len(chunks) > 0
	s.cache.Purge()

	s.logger.Info("loaded vector store", "chunks", len(chunks))
	return nil
}

func (s *VectorStore) readChunks() ([]models.Chunk, error) {
	if s.dir == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(s.chunksPath())
	if err != nil {
		return nil, err
	}
	var records chunkRecords
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	return records.Chunks, nil
}

func (s *VectorStore) readVectors(want int) ([]models.Vector, error) {
	f, err := os.Open(s.vectorsPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	defer f.Close()

	rows, err := ReadNPY(f, want, models.Dimension)
	if err != nil {
		return nil, err
	}

	vectors := make([]models.Vector, len(rows))
	contaminated := 0
	for i, row := range rows {
		var dirty bool
		vectors[i], dirty = sanitize(row)
		if dirty {
			contaminated++
		}
	}
	if contaminated > 0 {
		s.logger.Warn("replaced non-finite values in loaded vectors", "vectors", contaminated)
	}
	return vectors, nil
}

func (s *VectorStore) chunksPath() string {
	return filepath.Join(s.dir, ChunksFile)
}

func (s *VectorStore) vectorsPath() string {
	return filepath.Join(s.dir, VectorsFile)
}

// WriteFileAtomic writes data to a temp file beside path and renames it into place
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
