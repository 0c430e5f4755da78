package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

type countingLoader struct {
	inner memory.WordLoader
	calls int32
	err   error
}

func (l *countingLoader) LoadWords(ctx context.Context, lessonIDs []int64) ([]domain.Word, error) {
	atomic.AddInt32(&l.calls, 1)
	if l.err != nil {
		return nil, l.err
	}
	return l.inner.LoadWords(ctx, lessonIDs)
}

func sampleLessons() map[int64][]domain.Word {
	return map[int64][]domain.Word{
		1: {
			{ID: 1, Term: "apple", Meaning: "olma"},
			{ID: 2, Term: "bread", Meaning: "non"},
		},
		2: {
			{ID: 3, Term: "water", Meaning: "suv"},
		},
	}
}

func TestWordRepositoryCachesPools(t *testing.T) {
	loader := &countingLoader{inner: memory.NewStaticWordLoader(sampleLessons())}
	repo := memory.NewWordRepository(loader, time.Minute)
	ctx := context.Background()

	first, err := repo.GetWords(ctx, []int64{1, 2})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 words, got %d", len(first))
	}

	second, err := repo.GetWords(ctx, []int64{1, 2})
	if err != nil {
		t.Fatalf("get cached: %v", err)
	}
	if len(second) != 3 {
		t.Fatalf("expected 3 words from cache, got %d", len(second))
	}
	if got := atomic.LoadInt32(&loader.calls); got != 1 {
		t.Fatalf("expected a single loader call, got %d", got)
	}

	// Same lessons in a different order hit the same cache entry.
	if _, err := repo.GetWords(ctx, []int64{2, 1}); err != nil {
		t.Fatalf("get reordered: %v", err)
	}
	if got := atomic.LoadInt32(&loader.calls); got != 1 {
		t.Fatalf("expected key to be order-insensitive, got %d loader calls", got)
	}

	// A different lesson set is a separate entry.
	if _, err := repo.GetWords(ctx, []int64{1}); err != nil {
		t.Fatalf("get subset: %v", err)
	}
	if got := atomic.LoadInt32(&loader.calls); got != 2 {
		t.Fatalf("expected a second loader call for the new key, got %d", got)
	}
}

func TestWordRepositoryPropagatesLoaderErrors(t *testing.T) {
	wantErr := errors.New("db down")
	loader := &countingLoader{inner: memory.NewStaticWordLoader(nil), err: wantErr}
	repo := memory.NewWordRepository(loader, time.Minute)

	if _, err := repo.GetWords(context.Background(), []int64{1}); !errors.Is(err, wantErr) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestWordRepositorySingleflight(t *testing.T) {
	loader := &countingLoader{inner: &slowLoader{inner: memory.NewStaticWordLoader(sampleLessons())}}
	repo := memory.NewWordRepository(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.GetWords(context.Background(), []int64{1}); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&loader.calls); got != 1 {
		t.Fatalf("expected concurrent gets to share one load, got %d", got)
	}
}

type slowLoader struct {
	inner memory.WordLoader
}

func (l *slowLoader) LoadWords(ctx context.Context, lessonIDs []int64) ([]domain.Word, error) {
	time.Sleep(20 * time.Millisecond)
	return l.inner.LoadWords(ctx, lessonIDs)
}
