package redis_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	wordcache "live-quiz-service/internal/infra/redis"
)

type countingLoader struct {
	inner memory.WordLoader
	calls int32
}

func (l *countingLoader) LoadWords(ctx context.Context, lessonIDs []int64) ([]domain.Word, error) {
	atomic.AddInt32(&l.calls, 1)
	return l.inner.LoadWords(ctx, lessonIDs)
}

func newTestRepo(t *testing.T) (*wordcache.WordRepository, *countingLoader, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	loader := &countingLoader{inner: memory.NewStaticWordLoader(map[int64][]domain.Word{
		1: {
			{ID: 1, Term: "apple", Meaning: "olma"},
			{ID: 2, Term: "bread", Meaning: "non"},
		},
		2: {
			{ID: 3, Term: "water", Meaning: "suv"},
		},
	})}
	return wordcache.NewWordRepository(client, loader, time.Minute), loader, mr
}

func TestWordRepositoryFillsCacheOnMiss(t *testing.T) {
	repo, loader, mr := newTestRepo(t)
	ctx := context.Background()

	pool, err := repo.GetWords(ctx, []int64{1, 2})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(pool) != 3 {
		t.Fatalf("expected 3 words, got %d", len(pool))
	}
	if got := atomic.LoadInt32(&loader.calls); got != 2 {
		t.Fatalf("expected one load per lesson, got %d", got)
	}

	blob, err := mr.Get("lesson:1:words")
	if err != nil {
		t.Fatalf("expected lesson:1:words to be cached: %v", err)
	}
	var words []domain.Word
	if err := json.Unmarshal([]byte(blob), &words); err != nil {
		t.Fatalf("cached blob is not valid json: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("expected 2 cached words for lesson 1, got %d", len(words))
	}
}

func TestWordRepositoryServesFromCache(t *testing.T) {
	repo, loader, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetWords(ctx, []int64{1}); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if _, err := repo.GetWords(ctx, []int64{1}); err != nil {
		t.Fatalf("cached: %v", err)
	}
	if got := atomic.LoadInt32(&loader.calls); got != 1 {
		t.Fatalf("expected warm read to skip the loader, got %d calls", got)
	}
}

func TestWordRepositoryPartialHit(t *testing.T) {
	repo, loader, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetWords(ctx, []int64{1}); err != nil {
		t.Fatalf("warm lesson 1: %v", err)
	}

	pool, err := repo.GetWords(ctx, []int64{1, 2})
	if err != nil {
		t.Fatalf("combined get: %v", err)
	}
	if len(pool) != 3 {
		t.Fatalf("expected 3 words, got %d", len(pool))
	}
	// Lesson 1 was served from Redis; only lesson 2 hit the loader.
	if got := atomic.LoadInt32(&loader.calls); got != 2 {
		t.Fatalf("expected 2 loader calls total, got %d", got)
	}
}

func TestWordRepositoryRefillsCorruptEntry(t *testing.T) {
	repo, loader, mr := newTestRepo(t)
	ctx := context.Background()

	mr.Set("lesson:1:words", "{not json")

	pool, err := repo.GetWords(ctx, []int64{1})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(pool) != 2 {
		t.Fatalf("expected the refilled pool, got %d words", len(pool))
	}
	if got := atomic.LoadInt32(&loader.calls); got != 1 {
		t.Fatalf("expected the corrupt entry to trigger one load, got %d", got)
	}
}
