// ABOUTME: Persistent answer cache keyed by normalized question
// ABOUTME: Entries expire after a TTL and the oldest are evicted past a size limit
package sqlite

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harper/libraryqa/internal/models"
)

// AnswerCache handles cached answer persistence
type AnswerCache struct {
	db         *DB
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewAnswerCache creates an AnswerCache. A maxEntries of zero disables caching.
func NewAnswerCache(db *DB, ttl time.Duration, maxEntries int) *AnswerCache {
	return &AnswerCache{
		db:         db,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// CacheKey is the md5 of the trimmed, lowercased question
func CacheKey(question string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(question))))
	return hex.EncodeToString(sum[:])
}

// Get returns a cached answer. Expired entries are removed and reported as misses.
func (c *AnswerCache) Get(question string) (*models.Answer, bool, error) {
	if c.maxEntries <= 0 {
		return nil, false, nil
	}
	key := CacheKey(question)

	var (
		answer      models.Answer
		sourcesJSON sql.NullString
		category    sql.NullString
		degraded    int
		createdAt   int64
	)
	err := c.db.QueryRow(`
		SELECT question, answer, sources, category, degraded, created_at
		FROM answer_cache
		WHERE key = ?
	`, key).Scan(&answer.Question, &answer.Text, &sourcesJSON, &category, &degraded, &createdAt)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached answer: %w", err)
	}

	if c.ttl > 0 && c.now().Sub(time.Unix(0, createdAt)) > c.ttl {
		if _, err := c.db.Exec("DELETE FROM answer_cache WHERE key = ?", key); err != nil {
			return nil, false, fmt.Errorf("failed to expire cached answer: %w", err)
		}
		return nil, false, nil
	}

	if sourcesJSON.Valid && sourcesJSON.String != "" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &answer.Sources); err != nil {
			return nil, false, fmt.Errorf("failed to decode cached sources: %w", err)
		}
	}
	answer.Category = models.ContentType(category.String)
	answer.Degraded = degraded != 0
	answer.Found = true
	answer.Cached = true

	return &answer, true, nil
}

// Put stores an answer and evicts the oldest entries past the size limit
func (c *AnswerCache) Put(question string, answer *models.Answer) error {
	if c.maxEntries <= 0 || answer == nil {
		return nil
	}

	sourcesJSON, err := json.Marshal(answer.Sources)
	if err != nil {
		return err
	}
	degraded := 0
	if answer.Degraded {
		degraded = 1
	}

	_, err = c.db.Exec(`
		INSERT INTO answer_cache (key, question, answer, sources, category, degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			question = excluded.question,
			answer = excluded.answer,
			sources = excluded.sources,
			category = excluded.category,
			degraded = excluded.degraded,
			created_at = excluded.created_at
	`, CacheKey(question), question, answer.Text, string(sourcesJSON), string(answer.Category),
		degraded, c.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to cache answer: %w", err)
	}

	_, err = c.db.Exec(`
		DELETE FROM answer_cache
		WHERE key NOT IN (
			SELECT key FROM answer_cache ORDER BY created_at DESC LIMIT ?
		)
	`, c.maxEntries)
	if err != nil {
		return fmt.Errorf("failed to evict cached answers: %w", err)
	}
	return nil
}

// Len returns the number of cached answers, expired or not
func (c *AnswerCache) Len() (int, error) {
	var n int
	err := c.db.QueryRow("SELECT COUNT(*) FROM answer_cache").Scan(&n)
	return n, err
}

// Clear removes every cached answer
func (c *AnswerCache) Clear() error {
	_, err := c.db.Exec("DELETE FROM answer_cache")
	return err
}
