package memory

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
)

// WordLoader fetches lesson word pools from a backing store (e.g. Postgres).
type WordLoader interface {
	LoadWords(ctx context.Context, lessonIDs []int64) ([]domain.Word, error)
}

// WordRepository caches combined lesson pools with TTL to avoid repeated DB
// hits when teachers create several rooms from the same lessons.
type WordRepository struct {
	loader WordLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	words     []domain.Word
	expiresAt time.Time
}

func NewWordRepository(loader WordLoader, ttl time.Duration) *WordRepository {
	return &WordRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
	}
}

func (r *WordRepository) GetWords(ctx context.Context, lessonIDs []int64) ([]domain.Word, error) {
	key := poolKey(lessonIDs)
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.words, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.words, nil
		}
		r.mu.RUnlock()

		words, err := r.loader.LoadWords(ctx, lessonIDs)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cachedPool{
			words:     words,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return words, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Word), nil
}

func (r *WordRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func poolKey(lessonIDs []int64) string {
	ids := append([]int64(nil), lessonIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// StaticWordLoader serves word pools from an in-memory map (tests/demos).
type StaticWordLoader struct {
	lessons map[int64][]domain.Word
}

func NewStaticWordLoader(lessons map[int64][]domain.Word) *StaticWordLoader {
	return &StaticWordLoader{lessons: lessons}
}

func (l *StaticWordLoader) LoadWords(_ context.Context, lessonIDs []int64) ([]domain.Word, error) {
	var pool []domain.Word
	for _, id := range lessonIDs {
		pool = append(pool, l.lessons[id]...)
	}
	return pool, nil
}
