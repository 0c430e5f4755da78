package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

// WordRepository caches each lesson's word pool in Redis and falls back to a
// loader on cache miss. Pools are stored as JSON blobs keyed per lesson:
// SET lesson:{id}:words {json}. Combined pools are assembled with one MGET.
type WordRepository struct {
	client *redis.Client
	loader memory.WordLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewWordRepository(client *redis.Client, loader memory.WordLoader, ttl time.Duration) *WordRepository {
	return &WordRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *WordRepository) GetWords(ctx context.Context, lessonIDs []int64) ([]domain.Word, error) {
	keys := make([]string, len(lessonIDs))
	for i, id := range lessonIDs {
		keys[i] = lessonKey(id)
	}

	var pool []domain.Word
	cached, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		cached = make([]interface{}, len(keys))
	}
	for i, raw := range cached {
		blob, ok := raw.(string)
		if !ok {
			words, err := r.loadLesson(ctx, lessonIDs[i])
			if err != nil {
				return nil, err
			}
			pool = append(pool, words...)
			continue
		}
		var words []domain.Word
		if err := json.Unmarshal([]byte(blob), &words); err != nil {
			// Treat a corrupt entry as a miss and refill it.
			words, err = r.loadLesson(ctx, lessonIDs[i])
			if err != nil {
				return nil, err
			}
		}
		pool = append(pool, words...)
	}
	return pool, nil
}

// loadLesson fetches one lesson's pool through the loader and fills the cache.
// singleflight keeps concurrent room creations from stampeding the store.
func (r *WordRepository) loadLesson(ctx context.Context, lessonID int64) ([]domain.Word, error) {
	key := lessonKey(lessonID)
	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if blob, err := r.client.Get(ctx, key).Result(); err == nil {
			var words []domain.Word
			if err := json.Unmarshal([]byte(blob), &words); err == nil {
				return words, nil
			}
		}

		words, err := r.loader.LoadWords(ctx, []int64{lessonID})
		if err != nil {
			return nil, err
		}

		blob, err := json.Marshal(words)
		if err != nil {
			return nil, err
		}
		// Cache write failures are not fatal; the pool is already loaded.
		_ = r.client.Set(ctx, key, blob, r.ttlWithJitter()).Err()
		return words, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Word), nil
}

func lessonKey(lessonID int64) string {
	return "lesson:" + strconv.FormatInt(lessonID, 10) + ":words"
}

func (r *WordRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
