// ABOUTME: In-memory vector store of policy chunks with file-backed snapshots
// ABOUTME: Provides cosine similarity search, keyword search and a bounded search cache
package storage

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/harper/libraryqa/internal/llm"
	"github.com/harper/libraryqa/internal/logging"
	"github.com/harper/libraryqa/internal/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSearchCacheSize bounds the similarity search cache
const DefaultSearchCacheSize = 50

var (
	// ErrAlignment means chunks and vectors would no longer line up
	ErrAlignment = errors.New("chunks and vectors are not aligned")
	// ErrCorruptArtifact means a persisted artifact could not be decoded
	ErrCorruptArtifact = errors.New("corrupt vector store artifact")
)

type searchKey struct {
	digest [sha256.Size]byte
	k      int
}

// Options configures a VectorStore
type Options struct {
	// Dir holds chunks.json and embeddings.npy; empty means memory only
	Dir       string
	CacheSize int
	Logger    *log.Logger
}

// VectorStore holds chunks and their vectors in lockstep.
// Reads may run concurrently; writes are exclusive.
type VectorStore struct {
	dir    string
	logger *log.Logger

	mu      sync.RWMutex
	chunks  []models.Chunk
	vectors []models.Vector
	loaded  bool

	cache *lru.Cache[searchKey, []models.ScoredChunk]
}

// NewVectorStore creates an empty store
func NewVectorStore(opts Options) (*VectorStore, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultSearchCacheSize
	}
	cache, err := lru.New[searchKey, []models.ScoredChunk](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create search cache: %w", err)
	}

	return &VectorStore{
		dir:    opts.Dir,
		logger: logging.OrDiscard(opts.Logger),
		cache:  cache,
	}, nil
}

// Dir returns the snapshot directory
func (s *VectorStore) Dir() string {
	return s.dir
}

// Add appends chunks and vectors in lockstep. A nil vectors slice asks the
// store to derive vectors from the chunk text with the hash embedder.
// On error the store is unchanged.
func (s *VectorStore) Add(chunks []models.Chunk, vectors []models.Vector) error {
	prepared, err := s.prepare(chunks, vectors)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = append(s.chunks, chunks...)
	s.vectors = append(s.vectors, prepared...)
	s.loaded = len(s.chunks) > 0
	s.cache.Purge()
	return nil
}

// Replace swaps in a fully built snapshot in one step
func (s *VectorStore) Replace(snap *Snapshot) {
	chunks, vectors := snap.contents()
	if snap.contaminated > 0 {
		s.logger.Warn("replaced non-finite values in vectors", "vectors", snap.contaminated)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = chunks
	s.vectors = vectors
	s.loaded = len(chunks) > 0
	s.cache.Purge()
}

// Clear empties memory and deletes the on-disk artifacts.
// Deletion failures are logged, never returned.
func (s *VectorStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = nil
	s.vectors = nil
	s.loaded = false
	s.cache.Purge()

	if s.dir == "" {
		return
	}
	for _, path := range []string{s.chunksPath(), s.vectorsPath()} {
		if err := removeIfExists(path); err != nil {
			s.logger.Warn("failed to delete vector store artifact", "path", path, "err", err)
		}
	}
}

// Loaded reports whether the store holds any data
func (s *VectorStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Len returns the number of stored chunks
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Chunks returns a copy of the stored chunks in insertion order
func (s *VectorStore) Chunks() []models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// Vectors returns a deep copy of the stored vectors in insertion order
func (s *VectorStore) Vectors() []models.Vector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Vector, len(s.vectors))
	for i, v := range s.vectors {
		out[i] = append(models.Vector(nil), v...)
	}
	return out
}

// SimilaritySearch returns up to k chunks ranked by cosine similarity.
// An empty or unloaded store yields an empty slice.
func (s *VectorStore) SimilaritySearch(query models.Vector, k int) []models.ScoredChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded || len(s.chunks) == 0 || k <= 0 {
		return []models.ScoredChunk{}
	}

	q, dirty := sanitize(query)
	if dirty {
		s.logger.Warn("replaced non-finite values in query vector")
	}
	key := searchKey{digest: vectorDigest(q), k: k}
	if cached, ok := s.cache.Get(key); ok {
		return append([]models.ScoredChunk(nil), cached...)
	}

	if len(q) != models.Dimension {
		s.logger.Warn("query vector has wrong dimension", "got", len(q), "want", models.Dimension)
		return []models.ScoredChunk{}
	}
	normalize(q)

	type hit struct {
		index int
		score float64
	}
	hits := make([]hit, 0, len(s.vectors))
	for i, v := range s.vectors {
		score := cosine(q, v)
		if math.IsNaN(score) {
			continue
		}
		hits = append(hits, hit{index: i, score: score})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].score > hits[b].score
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]models.ScoredChunk, len(hits))
	for i, h := range hits {
		results[i] = models.ScoredChunk{Chunk: s.chunks[h.index], Similarity: h.score}
	}

	s.cache.Add(key, results)
	return append([]models.ScoredChunk(nil), results...)
}

// SearchByKeyword scores chunks by case-insensitive occurrences of term:
// 3 per occurrence in the text plus 2 when the source name contains it.
// Chunks scoring zero are excluded.
func (s *VectorStore) SearchByKeyword(term string, k int) []models.ScoredChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(term)
	if !s.loaded || needle == "" || k <= 0 {
		return []models.ScoredChunk{}
	}

	var results []models.ScoredChunk
	for _, c := range s.chunks {
		score := strings.Count(strings.ToLower(c.Text), needle) * 3
		if strings.Contains(strings.ToLower(c.Metadata.Source), needle) {
			score += 2
		}
		if score > 0 {
			results = append(results, models.ScoredChunk{Chunk: c, KeywordScore: score})
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].KeywordScore > results[b].KeywordScore
	})
	if len(results) > k {
		results = results[:k]
	}
	if results == nil {
		return []models.ScoredChunk{}
	}
	return results
}

// Stats summarizes the store contents
func (s *VectorStore) Stats() models.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.Stats{
		TotalChunks:  len(s.chunks),
		Sources:      make(map[string]int),
		ContentTypes: make(map[models.ContentType]int),
		Loaded:       s.loaded,
		VectorRows:   len(s.vectors),
		Dimension:    models.Dimension,
	}
	for _, c := range s.chunks {
		stats.Sources[c.Metadata.Source]++
		ct := c.Metadata.ContentType
		if ct == "" {
			ct = models.ContentGeneral
		}
		stats.ContentTypes[ct]++
	}
	for _, v := range s.vectors {
		if hasNaN(v) {
			stats.HasNaN = true
			break
		}
	}
	return stats
}

// prepare validates alignment and returns sanitized copies of the vectors
func (s *VectorStore) prepare(chunks []models.Chunk, vectors []models.Vector) ([]models.Vector, error) {
	if vectors == nil {
		out := make([]models.Vector, len(chunks))
		for i, c := range chunks {
			out[i] = llm.HashVector(c.Text)
		}
		return out, nil
	}

	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", ErrAlignment, len(chunks), len(vectors))
	}

	out := make([]models.Vector, len(vectors))
	contaminated := 0
	for i, v := range vectors {
		if len(v) != models.Dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrAlignment, i, len(v), models.Dimension)
		}
		var dirty bool
		out[i], dirty = sanitize(v)
		if dirty {
			contaminated++
		}
	}
	if contaminated > 0 {
		s.logger.Warn("replaced non-finite values in vectors", "vectors", contaminated)
	}
	return out, nil
}

// sanitize copies v replacing NaN and infinities with zero and reports
// whether any value was replaced
func sanitize(v models.Vector) (models.Vector, bool) {
	out := make(models.Vector, len(v))
	dirty := false
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			dirty = true
			continue
		}
		out[i] = x
	}
	return out, dirty
}

func hasNaN(v models.Vector) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
	}
	return false
}

// normalize scales v to unit length in place; zero vectors are left alone
func normalize(v models.Vector) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// cosine returns the dot product of unit vector q with v scaled to unit length
func cosine(q, v models.Vector) float64 {
	if len(q) != len(v) {
		return math.NaN()
	}
	var dot, sum float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
		sum += float64(v[i]) * float64(v[i])
	}
	if sum == 0 {
		return 0
	}
	return dot / math.Sqrt(sum)
}

func vectorDigest(v models.Vector) [sha256.Size]byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return sha256.Sum256(buf)
}
