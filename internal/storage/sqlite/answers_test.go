// ABOUTME: Tests for the persistent answer cache
// ABOUTME: Verifies key normalization, TTL expiry and oldest-first eviction
package sqlite

import (
	"fmt"
	"testing"
	"time"

	"github.com/harper/libraryqa/internal/models"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestCache(t *testing.T, ttl time.Duration, max int) (*AnswerCache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	cache := NewAnswerCache(openTestDB(t), ttl, max)
	cache.now = clock.now
	return cache, clock
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("How many books can I borrow?")
	b := CacheKey("  HOW MANY BOOKS CAN I BORROW?  ")
	if a != b {
		t.Errorf("CacheKey() differs for case/space variants: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("CacheKey() length = %d, want 32", len(a))
	}
	if a == CacheKey("How many books can I renew?") {
		t.Error("CacheKey() collides for different questions")
	}
}

func TestAnswerCache_PutGet(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour, 10)

	if _, ok, err := cache.Get("unknown"); err != nil || ok {
		t.Fatalf("Get(unknown) = ok %v, err %v; want miss", ok, err)
	}

	answer := &models.Answer{
		Question: "What is the overdue fine?",
		Text:     "Ten shillings per day.",
		Sources:  []string{"fines.pdf", "policy.pdf"},
		Category: models.ContentFines,
		Found:    true,
		Degraded: true,
	}
	if err := cache.Put(answer.Question, answer); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := cache.Get("what is the overdue fine?")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() missed a cached answer")
	}
	if got.Text != answer.Text {
		t.Errorf("Text = %q, want %q", got.Text, answer.Text)
	}
	if len(got.Sources) != 2 || got.Sources[1] != "policy.pdf" {
		t.Errorf("Sources = %v", got.Sources)
	}
	if got.Category != models.ContentFines {
		t.Errorf("Category = %s, want fines", got.Category)
	}
	if !got.Cached || !got.Found || !got.Degraded {
		t.Errorf("flags = cached %v found %v degraded %v, want all true", got.Cached, got.Found, got.Degraded)
	}
}

func TestAnswerCache_Expiry(t *testing.T) {
	cache, clock := newTestCache(t, 24*time.Hour, 10)

	if err := cache.Put("When does the library open?", &models.Answer{Text: "At 8am."}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	clock.t = clock.t.Add(23 * time.Hour)
	if _, ok, _ := cache.Get("When does the library open?"); !ok {
		t.Fatal("Get() missed an unexpired entry")
	}

	clock.t = clock.t.Add(2 * time.Hour)
	if _, ok, err := cache.Get("When does the library open?"); err != nil || ok {
		t.Fatalf("Get() after TTL = ok %v, err %v; want miss", ok, err)
	}
	if n, _ := cache.Len(); n != 0 {
		t.Errorf("Len() = %d after expiry, want 0", n)
	}
}

func TestAnswerCache_EvictsOldest(t *testing.T) {
	cache, clock := newTestCache(t, 0, 3)

	for i := 0; i < 5; i++ {
		clock.t = clock.t.Add(time.Minute)
		q := fmt.Sprintf("question %d", i)
		if err := cache.Put(q, &models.Answer{Text: q}); err != nil {
			t.Fatalf("Put(%s) error = %v", q, err)
		}
	}

	if n, _ := cache.Len(); n != 3 {
		t.Errorf("Len() = %d, want 3", n)
	}
	for i := 0; i < 2; i++ {
		if _, ok, _ := cache.Get(fmt.Sprintf("question %d", i)); ok {
			t.Errorf("question %d should have been evicted", i)
		}
	}
	for i := 2; i < 5; i++ {
		if _, ok, _ := cache.Get(fmt.Sprintf("question %d", i)); !ok {
			t.Errorf("question %d should still be cached", i)
		}
	}
}

func TestAnswerCache_DisabledAndClear(t *testing.T) {
	disabled, _ := newTestCache(t, time.Hour, 0)
	if err := disabled.Put("q", &models.Answer{Text: "a"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok, _ := disabled.Get("q"); ok {
		t.Error("disabled cache returned a hit")
	}

	cache, _ := newTestCache(t, time.Hour, 5)
	_ = cache.Put("q1", &models.Answer{Text: "a1"})
	_ = cache.Put("q2", &models.Answer{Text: "a2"})
	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n, _ := cache.Len(); n != 0 {
		t.Errorf("Len() = %d after Clear, want 0", n)
	}
}
